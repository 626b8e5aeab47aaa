package service

import (
	"context"
	"fmt"
	"io"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-admin/internal/listing"
	"github.com/noah-isme/tutor-admin/internal/models"
	"github.com/noah-isme/tutor-admin/internal/view"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
)

type resourceClient[T models.Entity] interface {
	Name() string
	ListPage(ctx context.Context, cursor string) (*models.Page[T], error)
	GetByID(ctx context.Context, id int64) (*T, error)
	Create(ctx context.Context, payload T) (*T, error)
	Update(ctx context.Context, id int64, payload T) (*T, error)
	Delete(ctx context.Context, id int64) error
	ImportBatch(ctx context.Context, records []models.ImportRecord) (*models.ImportResult, error)
}

type importRecorder interface {
	ObserveImport(resource string, created, updated, failed int)
}

// WorkspaceOptions configures a Workspace.
type WorkspaceOptions struct {
	// Label is the singular display name, e.g. "Student".
	Label          string
	CreatePosition listing.Position
	Debounce       time.Duration
	Notifier       Notifier
	Recorder       listing.Recorder
	Imports        importRecorder
	Logger         *zap.Logger
}

// Workspace ties one resource to its list controller and view: it is what a
// list page of the admin UI does, without the rendering.
type Workspace[T models.Entity] struct {
	resource   resourceClient[T]
	controller *listing.Controller[T]
	view       *view.View[T]
	debouncer  *view.Debouncer
	notifier   Notifier
	imports    importRecorder
	label      string
	createAt   listing.Position
	changed    chan struct{}
	logger     *zap.Logger
}

// NewWorkspace builds a workspace over resource using cfg for search and sort.
func NewWorkspace[T models.Entity](resource resourceClient[T], cfg view.Config[T], opts WorkspaceOptions) *Workspace[T] {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	label := opts.Label
	if label == "" {
		label = capitalize(cfg.Entity)
	}

	w := &Workspace[T]{
		resource:   resource,
		controller: listing.NewController[T](resource, resource.Name(), opts.Recorder, logger),
		view:       view.New(cfg),
		notifier:   notifier,
		imports:    opts.Imports,
		label:      label,
		createAt:   opts.CreatePosition,
		changed:    make(chan struct{}, 1),
		logger:     logger.With(zap.String("workspace", resource.Name())),
	}
	w.controller.OnChange(func(st listing.State[T]) { w.view.SetSource(st.Items) })
	w.view.OnChange(func([]T) {
		select {
		case w.changed <- struct{}{}:
		default:
		}
	})
	w.debouncer = view.NewDebouncer(opts.Debounce, w.view.SetTerm)
	return w
}

// Controller exposes the list controller.
func (w *Workspace[T]) Controller() *listing.Controller[T] {
	return w.controller
}

// View exposes the derived projection.
func (w *Workspace[T]) View() *view.View[T] {
	return w.view
}

// Mount performs the initial load.
func (w *Workspace[T]) Mount(ctx context.Context) error {
	if err := w.controller.LoadInitial(ctx); err != nil {
		w.notifier.Error(err)
		return err
	}
	return nil
}

// LoadMore fetches the next page if allowed.
func (w *Workspace[T]) LoadMore(ctx context.Context) (bool, error) {
	fetched, err := w.controller.LoadMore(ctx)
	if err != nil {
		w.notifier.Error(err)
	}
	return fetched, err
}

// Boundary returns the trigger for scroll-proximity loading.
func (w *Workspace[T]) Boundary(ctx context.Context) *listing.Boundary {
	return w.controller.BindBoundary(ctx, w.notifier.Error)
}

// Search feeds one keystroke's worth of input through the debouncer.
func (w *Workspace[T]) Search(term string) {
	w.debouncer.Push(term)
}

// Changed signals after the projection is recomputed. Signals coalesce.
func (w *Workspace[T]) Changed() <-chan struct{} {
	return w.changed
}

// Settle discards pending change signals.
func (w *Workspace[T]) Settle() {
	for {
		select {
		case <-w.changed:
		default:
			return
		}
	}
}

// WaitIdle blocks until the projection changes and no page load is pending.
func (w *Workspace[T]) WaitIdle(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.changed:
		}
		if st := w.controller.State(); !st.IsLoadingInitial && !st.IsLoadingMore {
			return nil
		}
	}
}

// SearchNow applies a term immediately.
func (w *Workspace[T]) SearchNow(term string) {
	w.view.SetTerm(term)
}

// SortBy toggles the sort on key.
func (w *Workspace[T]) SortBy(key string) (view.SortSpec, error) {
	spec, err := w.view.ToggleSort(key)
	if err != nil {
		return spec, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return spec, nil
}

// Rows returns the filtered and sorted items.
func (w *Workspace[T]) Rows() []T {
	return w.view.Projection()
}

// State returns the controller snapshot.
func (w *Workspace[T]) State() listing.State[T] {
	return w.controller.State()
}

// Get fetches one record without touching the list.
func (w *Workspace[T]) Get(ctx context.Context, id int64) (*T, error) {
	item, err := w.resource.GetByID(ctx, id)
	if err != nil {
		w.notifier.Error(err)
		return nil, err
	}
	return item, nil
}

// Create posts payload and inserts the confirmed record locally.
func (w *Workspace[T]) Create(ctx context.Context, payload T) (*T, error) {
	created, err := w.resource.Create(ctx, payload)
	if err != nil {
		w.notifier.Error(err)
		return nil, err
	}
	w.controller.Insert(*created, w.createAt)
	w.notifier.Success(fmt.Sprintf("%s created successfully.", w.label))
	return created, nil
}

// Update replaces the record after the server confirms.
func (w *Workspace[T]) Update(ctx context.Context, id int64, payload T) (*T, error) {
	updated, err := w.resource.Update(ctx, id, payload)
	if err != nil {
		w.notifier.Error(err)
		return nil, err
	}
	w.controller.Replace(*updated)
	w.notifier.Success(fmt.Sprintf("%s updated successfully.", w.label))
	return updated, nil
}

// Delete removes the record after the server confirms.
func (w *Workspace[T]) Delete(ctx context.Context, id int64) error {
	if err := w.resource.Delete(ctx, id); err != nil {
		w.notifier.Error(err)
		return err
	}
	w.controller.Remove(id)
	w.notifier.Success(fmt.Sprintf("%s deleted successfully.", w.label))
	return nil
}

// Import sends records, reports the summary and reloads the list. Rejected
// rows are reported in the summary and do not make Import fail.
func (w *Workspace[T]) Import(ctx context.Context, records []models.ImportRecord) (*models.ImportResult, error) {
	result, err := w.resource.ImportBatch(ctx, records)
	if err != nil && !appErrors.IsCode(err, appErrors.CodeImportPartial) {
		w.notifier.Error(err)
		return nil, err
	}
	if w.imports != nil {
		w.imports.ObserveImport(w.resource.Name(), result.Created, result.Updated, len(result.Errors))
	}
	w.notifier.Success(ImportSummary(w.label, result))
	for _, rowErr := range result.Errors {
		w.logger.Warn("import row rejected", zap.Int("row", rowErr.Row), zap.String("detail", rowErr.String()))
	}

	if err := w.controller.Reload(ctx); err != nil {
		w.notifier.Error(err)
	}
	return result, nil
}

// ImportCSV parses r and imports its rows. A malformed file aborts before
// any request is sent.
func (w *Workspace[T]) ImportCSV(ctx context.Context, r io.Reader) (*models.ImportResult, error) {
	records, err := ReadImportCSV(r)
	if err != nil {
		w.notifier.Error(err)
		return nil, err
	}
	return w.Import(ctx, records)
}

// Unmount stops loading and pending search input.
func (w *Workspace[T]) Unmount() {
	w.debouncer.Stop()
	w.controller.Unmount()
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// ImportSummary formats the message shown after an import.
func ImportSummary(label string, result *models.ImportResult) string {
	msg := fmt.Sprintf("%s import finished. Created: %d, Updated: %d.", label, result.Created, result.Updated)
	if result.HasErrors() {
		msg += fmt.Sprintf(" Errors: %d.", len(result.Errors))
	}
	return msg
}

// LogNotifier reports outcomes through the logger only.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Success logs message at info level.
func (n *LogNotifier) Success(message string) {
	n.logger.Info(message)
}

// Error logs err at warn level.
func (n *LogNotifier) Error(err error) {
	n.logger.Warn("operation failed", zap.Error(err))
}
