package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-admin/internal/models"
	"github.com/noah-isme/tutor-admin/internal/service"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
	"github.com/noah-isme/tutor-admin/pkg/response"
)

const maxImportBytes = 10 << 20

type recordService[T models.Entity] interface {
	Name() string
	List(ctx context.Context, page, pageSize int) (*service.RecordPage[T], error)
	Get(ctx context.Context, id int64) (*T, error)
	Create(ctx context.Context, item T) (*T, error)
	Update(ctx context.Context, id int64, item T) (*T, error)
	Delete(ctx context.Context, id int64) error
	Import(ctx context.Context, records []models.ImportRecord) *models.ImportResult
}

type importRecorder interface {
	ObserveImport(resource string, created, updated, failed int)
}

// ResourceHandler serves list, CRUD and import endpoints for one resource.
type ResourceHandler[T models.Entity] struct {
	service  recordService[T]
	pageSize int
	imports  importRecorder
	logger   *zap.Logger
}

// NewResourceHandler constructs a resource handler.
func NewResourceHandler[T models.Entity](svc recordService[T], pageSize int, imports importRecorder, logger *zap.Logger) *ResourceHandler[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	return &ResourceHandler[T]{service: svc, pageSize: pageSize, imports: imports, logger: logger}
}

// List returns one page and the absolute URL of the next.
func (h *ResourceHandler[T]) List(c *gin.Context) {
	page, err := pageParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.List(c.Request.Context(), page, h.pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	var next *string
	if res.HasNext {
		u := absoluteURL(c, page+1)
		next = &u
	}
	response.Page(c, res.Results, res.Count, next)
}

// Get returns one record.
func (h *ResourceHandler[T]) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	item, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Create stores a new record.
func (h *ResourceHandler[T]) Create(c *gin.Context) {
	var payload T
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "JSON parse error"))
		return
	}
	created, err := h.service.Create(c.Request.Context(), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update replaces a record.
func (h *ResourceHandler[T]) Update(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var payload T
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "JSON parse error"))
		return
	}
	updated, err := h.service.Update(c.Request.Context(), id, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, updated)
}

// Delete removes a record.
func (h *ResourceHandler[T]) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Import reads the multipart field "file". It holds either a JSON array of
// records or an uploaded CSV file.
func (h *ResourceHandler[T]) Import(c *gin.Context) {
	raw, err := importPayload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := decodeRecords(raw)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.runImport(c, records)
}

// ImportJSON reads a JSON array of records from the request body.
func (h *ResourceHandler[T]) ImportJSON(c *gin.Context) {
	var records []models.ImportRecord
	if err := c.ShouldBindJSON(&records); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrParse.Code, http.StatusBadRequest, "Expected a list of items."))
		return
	}
	h.runImport(c, records)
}

func (h *ResourceHandler[T]) runImport(c *gin.Context, records []models.ImportRecord) {
	h.logger.Debug("import requested", zap.String("resource", h.service.Name()), zap.Int("records", len(records)))
	result := h.service.Import(c.Request.Context(), records)
	if h.imports != nil {
		h.imports.ObserveImport(h.service.Name(), result.Created, result.Updated, len(result.Errors))
	}
	response.OK(c, result)
}

func importPayload(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	if value := c.PostForm("file"); value != "" {
		return []byte(value), nil
	}
	header, err := c.FormFile("file")
	if err != nil {
		return nil, appErrors.New(appErrors.CodeParse, http.StatusBadRequest, "No file was submitted.")
	}
	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, http.StatusBadRequest, "The submitted file could not be read.")
	}
	defer file.Close() //nolint:errcheck
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, http.StatusBadRequest, "The submitted file could not be read.")
	}
	return data, nil
}

func decodeRecords(raw []byte) ([]models.ImportRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		var records []models.ImportRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, http.StatusBadRequest, "Expected a list of items.")
		}
		return records, nil
	}
	records, err := service.ReadImportCSV(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return records, nil
}
