package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-admin/internal/models"
	"github.com/noah-isme/tutor-admin/internal/repository"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
)

type recordRepository[T models.Entity] interface {
	List(ctx context.Context, offset, limit int) ([]T, int, error)
	All(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id int64) (*T, error)
	Insert(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, id int64, item T) (T, error)
	Delete(ctx context.Context, id int64) error
	Exists(ctx context.Context, id int64) bool
}

// RecordPage is one page of a record listing.
type RecordPage[T models.Entity] struct {
	Results []T
	Count   int
	HasNext bool
}

// RecordService implements list, CRUD and batch import for one resource of
// the development backend.
type RecordService[T models.Entity] struct {
	name      string
	repo      recordRepository[T]
	validator *validator.Validate
	logger    *zap.Logger
	prepare   func(ctx context.Context, item *T) error
}

// NewValidator returns a validator reporting fields by their JSON names.
func NewValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// NewRecordService constructs a RecordService. prepare, when set, runs on
// every record before it is stored and may reject it.
func NewRecordService[T models.Entity](name string, repo recordRepository[T], validate *validator.Validate, logger *zap.Logger, prepare func(ctx context.Context, item *T) error) *RecordService[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &RecordService[T]{name: name, repo: repo, validator: validate, logger: logger.With(zap.String("resource", name)), prepare: prepare}
}

// Name returns the resource name.
func (s *RecordService[T]) Name() string {
	return s.name
}

// List returns the 1-based page of size pageSize.
func (s *RecordService[T]) List(ctx context.Context, page, pageSize int) (*RecordPage[T], error) {
	if page < 1 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Invalid page.")
	}
	items, total, err := s.repo.List(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list records")
	}
	if page > 1 && len(items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Invalid page.")
	}
	return &RecordPage[T]{Results: items, Count: total, HasNext: page*pageSize < total}, nil
}

// All returns every record.
func (s *RecordService[T]) All(ctx context.Context) ([]T, error) {
	items, err := s.repo.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list records")
	}
	return items, nil
}

// Get returns one record.
func (s *RecordService[T]) Get(ctx context.Context, id int64) (*T, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.mapError(err)
	}
	return item, nil
}

// Create validates and stores a new record.
func (s *RecordService[T]) Create(ctx context.Context, item T) (*T, error) {
	if err := s.check(ctx, &item); err != nil {
		return nil, err
	}
	created, err := s.repo.Insert(ctx, item)
	if err != nil {
		return nil, s.mapError(err)
	}
	s.logger.Debug("record created", zap.Int64("id", created.EntityID()))
	return &created, nil
}

// Update validates and replaces a record.
func (s *RecordService[T]) Update(ctx context.Context, id int64, item T) (*T, error) {
	if !s.repo.Exists(ctx, id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Not found.")
	}
	if err := s.check(ctx, &item); err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, id, item)
	if err != nil {
		return nil, s.mapError(err)
	}
	return &updated, nil
}

// Delete removes a record.
func (s *RecordService[T]) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapError(err)
	}
	return nil
}

// Import stores each record independently. A record whose id matches an
// existing record updates it; others are created. Rejected rows are reported
// with their 1-based position and do not stop the batch.
func (s *RecordService[T]) Import(ctx context.Context, records []models.ImportRecord) *models.ImportResult {
	result := &models.ImportResult{Errors: []models.ImportRowError{}}
	for i, record := range records {
		row := i + 1
		item, fieldErrs := DecodeImportRecord[T](record)
		if len(fieldErrs) > 0 {
			result.Errors = append(result.Errors, rowError(row, "invalid values", fieldErrs))
			continue
		}

		id := item.EntityID()
		if id > 0 && s.repo.Exists(ctx, id) {
			if _, err := s.Update(ctx, id, item); err != nil {
				result.Errors = append(result.Errors, rowErrorFrom(row, err))
				continue
			}
			result.Updated++
			continue
		}
		if _, err := s.Create(ctx, item); err != nil {
			result.Errors = append(result.Errors, rowErrorFrom(row, err))
			continue
		}
		result.Created++
	}
	s.logger.Info("import processed",
		zap.Int("rows", len(records)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

func (s *RecordService[T]) check(ctx context.Context, item *T) error {
	if err := s.validator.Struct(item); err != nil {
		appErr := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Invalid input.")
		appErr.Details = FieldErrors(err)
		return appErr
	}
	if s.prepare != nil {
		if err := s.prepare(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *RecordService[T]) mapError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return appErrors.Clone(appErrors.ErrNotFound, "Not found.")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store record")
}

// FieldErrors converts validator output into field -> messages.
func FieldErrors(err error) map[string][]string {
	out := map[string][]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["non_field_errors"] = []string{err.Error()}
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = append(out[fe.Field()], fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "url":
		return "Enter a valid URL."
	case "oneof":
		return fmt.Sprintf("\"%v\" is not a valid choice.", fe.Value())
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	default:
		return fmt.Sprintf("Failed %s validation.", fe.Tag())
	}
}

func rowError(row int, message string, fields map[string][]string) models.ImportRowError {
	raw, _ := json.Marshal(fields)
	return models.ImportRowError{Row: row, Message: message, Errors: raw}
}

func rowErrorFrom(row int, err error) models.ImportRowError {
	appErr := appErrors.FromError(err)
	if fields, ok := appErr.Details.(map[string][]string); ok {
		return rowError(row, appErr.Message, fields)
	}
	return models.ImportRowError{Row: row, Message: appErr.Message}
}

// DecodeImportRecord converts string cells into a typed record by matching
// keys against JSON field names. Unknown keys are ignored. Integer lists
// accept comma or semicolon separated ids.
func DecodeImportRecord[T any](record models.ImportRecord) (T, map[string][]string) {
	var out T
	fields := jsonFieldKinds(reflect.TypeOf(out))
	values := make(map[string]interface{}, len(record))
	errs := map[string][]string{}

	for key, raw := range record {
		key = strings.TrimSpace(key)
		typ, ok := fields[key]
		if !ok {
			continue
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		value, err := coerce(typ, raw)
		if err != nil {
			errs[key] = append(errs[key], err.Error())
			continue
		}
		values[key] = value
	}
	if len(errs) > 0 {
		return out, errs
	}

	encoded, err := json.Marshal(values)
	if err == nil {
		err = json.Unmarshal(encoded, &out)
	}
	if err != nil {
		errs["non_field_errors"] = []string{err.Error()}
	}
	return out, errs
}

var (
	dateType    = reflect.TypeOf(models.Date{})
	rawJSONType = reflect.TypeOf(json.RawMessage{})
)

func jsonFieldKinds(t reflect.Type) map[string]reflect.Type {
	out := make(map[string]reflect.Type)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" || f.Type == rawJSONType {
			continue
		}
		out[name] = f.Type
	}
	return out
}

func coerce(t reflect.Type, raw string) (interface{}, error) {
	if t == dateType {
		if _, err := models.NewDate(raw); err != nil {
			return nil, errors.New("Date has wrong format. Use YYYY-MM-DD.")
		}
		return raw, nil
	}
	switch t.Kind() {
	case reflect.String:
		return raw, nil
	case reflect.Bool:
		switch strings.ToLower(raw) {
		case "true", "1", "yes", "y":
			return true, nil
		case "false", "0", "no", "n":
			return false, nil
		}
		return nil, errors.New("Must be a valid boolean.")
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.New("A valid integer is required.")
		}
		return n, nil
	case reflect.Slice:
		if t.Elem().Kind() != reflect.Int64 {
			return nil, errors.New("unsupported list value")
		}
		parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
		ids := make([]int64, 0, len(parts))
		for _, p := range parts {
			n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
			if err != nil {
				return nil, errors.New("Incorrect type. Expected pk value.")
			}
			ids = append(ids, n)
		}
		return ids, nil
	}
	return nil, errors.New("unsupported value")
}
