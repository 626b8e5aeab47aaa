package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-admin/internal/gateway"
	"github.com/noah-isme/tutor-admin/internal/models"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
)

// Transport performs authenticated calls. *gateway.Gateway satisfies it.
type Transport interface {
	Do(ctx context.Context, req gateway.Request, out interface{}) error
	Download(ctx context.Context, url string) (*models.Download, error)
}

// ImportMode selects how a batch import is sent.
type ImportMode int

const (
	// ImportMultipart posts a multipart form to <resource>/import/ whose file
	// field holds the JSON array of records.
	ImportMultipart ImportMode = iota
	// ImportJSON posts the records as a JSON body to <resource>/import_json/.
	ImportJSON
)

// Resource is a typed accessor over one REST collection.
type Resource[T models.Entity] struct {
	transport  Transport
	endpoints  Endpoints
	name       string
	importMode ImportMode
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewResource constructs a resource client for the named collection.
func NewResource[T models.Entity](transport Transport, endpoints Endpoints, name string, mode ImportMode, validate *validator.Validate, logger *zap.Logger) *Resource[T] {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resource[T]{
		transport:  transport,
		endpoints:  endpoints,
		name:       name,
		importMode: mode,
		validator:  validate,
		logger:     logger.With(zap.String("resource", name)),
	}
}

// NewStudents returns the student client.
func NewStudents(transport Transport, endpoints Endpoints, validate *validator.Validate, logger *zap.Logger) *Resource[models.Student] {
	return NewResource[models.Student](transport, endpoints, "students", ImportMultipart, validate, logger)
}

// NewGroups returns the group client.
func NewGroups(transport Transport, endpoints Endpoints, validate *validator.Validate, logger *zap.Logger) *Resource[models.Group] {
	return NewResource[models.Group](transport, endpoints, "groups", ImportJSON, validate, logger)
}

// NewLessons returns the lesson client.
func NewLessons(transport Transport, endpoints Endpoints, validate *validator.Validate, logger *zap.Logger) *Resource[models.Lesson] {
	return NewResource[models.Lesson](transport, endpoints, "lessons", ImportMultipart, validate, logger)
}

// Name returns the collection path segment.
func (r *Resource[T]) Name() string {
	return r.name
}

// CollectionURL returns the canonical first-page URL.
func (r *Resource[T]) CollectionURL() string {
	return r.endpoints.Collection(r.name)
}

// ListPage fetches one page. An empty cursor fetches the first page.
func (r *Resource[T]) ListPage(ctx context.Context, cursor string) (*models.Page[T], error) {
	target := cursor
	if target == "" {
		target = r.CollectionURL()
	}
	var page models.Page[T]
	if err := r.transport.Do(ctx, gateway.Request{Method: http.MethodGet, URL: target}, &page); err != nil {
		return nil, err
	}
	if page.Results == nil {
		page.Results = []T{}
	}
	return &page, nil
}

// GetAll follows every continuation and returns the full collection in
// server order. Meant for small reference lists such as selectors.
func (r *Resource[T]) GetAll(ctx context.Context) ([]T, error) {
	all := make([]T, 0)
	seen := make(map[string]struct{})
	cursor := ""
	for {
		page, err := r.ListPage(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Results...)
		if page.Terminal() {
			return all, nil
		}
		cursor = page.Cursor()
		if _, dup := seen[cursor]; dup {
			return nil, appErrors.New(appErrors.CodeParse, http.StatusOK, fmt.Sprintf("%s pagination loops on %s", r.name, cursor))
		}
		seen[cursor] = struct{}{}
	}
}

// GetByID fetches one record.
func (r *Resource[T]) GetByID(ctx context.Context, id int64) (*T, error) {
	var out T
	if err := r.transport.Do(ctx, gateway.Request{Method: http.MethodGet, URL: r.endpoints.Item(r.name, id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create validates and posts a new record, returning the server copy.
func (r *Resource[T]) Create(ctx context.Context, payload T) (*T, error) {
	return r.write(ctx, http.MethodPost, r.CollectionURL(), payload)
}

// Update validates and replaces the record with the given id.
func (r *Resource[T]) Update(ctx context.Context, id int64, payload T) (*T, error) {
	return r.write(ctx, http.MethodPut, r.endpoints.Item(r.name, id), payload)
}

// Delete removes the record with the given id.
func (r *Resource[T]) Delete(ctx context.Context, id int64) error {
	if err := r.transport.Do(ctx, gateway.Request{Method: http.MethodDelete, URL: r.endpoints.Item(r.name, id)}, nil); err != nil {
		return err
	}
	r.logger.Info("record deleted", zap.Int64("id", id))
	return nil
}

// ImportBatch sends parsed records for bulk creation. The server result is
// returned verbatim; when it lists rejected rows the returned error carries
// CodeImportPartial with the row errors as details, alongside the result.
func (r *Resource[T]) ImportBatch(ctx context.Context, records []models.ImportRecord) (*models.ImportResult, error) {
	if records == nil {
		records = []models.ImportRecord{}
	}
	encoded, err := json.Marshal(records)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, "failed to encode import records")
	}

	var req gateway.Request
	switch r.importMode {
	case ImportJSON:
		req = gateway.Request{Method: http.MethodPost, URL: r.endpoints.Action(r.name, "import_json"), Body: encoded, ContentType: "application/json"}
	default:
		body, contentType, err := multipartFile(encoded)
		if err != nil {
			return nil, err
		}
		req = gateway.Request{Method: http.MethodPost, URL: r.endpoints.Action(r.name, "import"), Body: body, ContentType: contentType}
	}

	var result models.ImportResult
	if err := r.transport.Do(ctx, req, &result); err != nil {
		return nil, err
	}
	if result.Errors == nil {
		result.Errors = []models.ImportRowError{}
	}
	r.logger.Info("import finished",
		zap.Int("records", len(records)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("errors", len(result.Errors)),
	)
	if result.HasErrors() {
		partial := appErrors.Clone(appErrors.ErrImportPartial, fmt.Sprintf("%d of %d %s rows were rejected", len(result.Errors), len(records), r.name))
		partial.Details = result.Errors
		return &result, partial
	}
	return &result, nil
}

func (r *Resource[T]) write(ctx context.Context, method, url string, payload T) (*T, error) {
	if err := r.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid %s payload", r.name))
	}
	req, err := gateway.JSONRequest(method, url, payload)
	if err != nil {
		return nil, err
	}
	var out T
	if err := r.transport.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func multipartFile(encoded []byte) ([]byte, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	if err := writer.WriteField("file", string(encoded)); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build import form")
	}
	if err := writer.Close(); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build import form")
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}
