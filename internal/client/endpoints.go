package client

import (
	"fmt"
	"net/url"
	"strings"

	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
)

// Endpoints resolves REST and origin URLs from the configured API base URL.
// Report downloads and WhatsApp triggers live on the origin, outside the API prefix.
type Endpoints struct {
	API    string
	Origin string
}

// NewEndpoints derives the API root and server origin from baseURL.
func NewEndpoints(baseURL string) (Endpoints, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		if err == nil {
			err = fmt.Errorf("missing scheme or host")
		}
		return Endpoints{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid API base URL")
	}
	return Endpoints{
		API:    trimmed,
		Origin: parsed.Scheme + "://" + parsed.Host,
	}, nil
}

// Collection returns the canonical list URL of a resource.
func (e Endpoints) Collection(resource string) string {
	return fmt.Sprintf("%s/%s/", e.API, resource)
}

// Item returns the URL of one record.
func (e Endpoints) Item(resource string, id int64) string {
	return fmt.Sprintf("%s/%s/%d/", e.API, resource, id)
}

// Action returns a sub-path of the resource collection, e.g. import/.
func (e Endpoints) Action(resource, action string) string {
	return fmt.Sprintf("%s/%s/%s/", e.API, resource, strings.Trim(action, "/"))
}

// OriginPath joins a path onto the server origin.
func (e Endpoints) OriginPath(path string) string {
	return e.Origin + "/" + strings.TrimLeft(path, "/")
}
