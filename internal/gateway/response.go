package gateway

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"

	"github.com/noah-isme/tutor-admin/internal/models"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
)

const maxErrorBody = 64 << 10

// errorFromResponse turns a non-2xx response into an HTTP error, preferring
// the structured message of the body and falling back to the status text.
func errorFromResponse(resp *http.Response) *appErrors.Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := messageFromBody(raw)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	err := appErrors.HTTP(resp.StatusCode, message)
	if len(raw) > 0 && json.Valid(raw) {
		err.Details = json.RawMessage(raw)
	}
	return err
}

func messageFromBody(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "message", "error"} {
		switch v := body[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]interface{}:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return ""
}

var dispositionFilename = regexp.MustCompile(`filename="(.+)"`)

// FilenameFromDisposition extracts the filename of a Content-Disposition
// header value.
func FilenameFromDisposition(header string) string {
	if header == "" {
		return models.DefaultDownloadName
	}
	if _, params, err := mime.ParseMediaType(header); err == nil {
		if name := strings.TrimSpace(params["filename"]); name != "" {
			return name
		}
	}
	if m := dispositionFilename.FindStringSubmatch(header); len(m) > 1 && m[1] != "" {
		return m[1]
	}
	return models.DefaultDownloadName
}

// EndpointLabel collapses numeric path segments so metrics labels stay bounded.
func EndpointLabel(path string) string {
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg != "" && isDigits(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
