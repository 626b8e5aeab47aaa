package listing

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-admin/internal/models"
)

// PageSource fetches one page of a collection. An empty cursor means the
// canonical first page.
type PageSource[T models.Entity] interface {
	ListPage(ctx context.Context, cursor string) (*models.Page[T], error)
}

// Recorder receives page-load outcomes.
type Recorder interface {
	ObservePageLoad(resource, phase string, success bool)
}

// Load phases reported to the Recorder.
const (
	PhaseInitial = "initial"
	PhaseMore    = "more"
	PhaseReload  = "reload"
)

// Position says where a created record is placed.
type Position int

const (
	Append Position = iota
	Prepend
)

// State is a snapshot of the accumulated collection.
type State[T models.Entity] struct {
	Items            []T
	Cursor           *string
	IsLoadingInitial bool
	IsLoadingMore    bool
	HasMore          bool
	Loaded           bool
}

// Controller owns one paginated collection: the initial load, guarded
// load-more, and local application of confirmed mutations. Responses that
// arrive after Unmount or a Reload are discarded.
type Controller[T models.Entity] struct {
	source   PageSource[T]
	name     string
	recorder Recorder
	logger   *zap.Logger

	mu         sync.Mutex
	state      State[T]
	started    bool
	unmounted  bool
	generation uint64
	boundary   *Boundary
	listener   func(State[T])
}

// NewController builds a controller over source. name labels logs and metrics.
func NewController[T models.Entity](source PageSource[T], name string, recorder Recorder, logger *zap.Logger) *Controller[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller[T]{
		source:   source,
		name:     name,
		recorder: recorder,
		logger:   logger.With(zap.String("list", name)),
		state:    State[T]{Items: []T{}},
	}
}

// OnChange registers the function called with a fresh snapshot after every
// state change. It runs outside the controller lock.
func (c *Controller[T]) OnChange(fn func(State[T])) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = fn
}

// State returns a snapshot copy.
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// LoadInitial fetches the first page. Only the first call per mount fetches;
// later calls are no-ops. A failed initial load may be retried.
func (c *Controller[T]) LoadInitial(ctx context.Context) error {
	c.mu.Lock()
	if c.started || c.unmounted {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.state.IsLoadingInitial = true
	gen := c.generation
	c.mu.Unlock()
	c.notify()

	page, err := c.source.ListPage(ctx, "")

	c.mu.Lock()
	if gen != c.generation || c.unmounted {
		c.mu.Unlock()
		c.logger.Debug("discarding stale initial page")
		return nil
	}
	c.state.IsLoadingInitial = false
	if err != nil {
		c.started = false
		c.mu.Unlock()
		c.observe(PhaseInitial, false)
		c.logger.Warn("initial page load failed", zap.Error(err))
		c.notify()
		return err
	}
	c.applyFirstPageLocked(page)
	c.mu.Unlock()

	c.observe(PhaseInitial, true)
	c.notify()
	return nil
}

// LoadMore fetches the next page when the controller is idle, has a cursor
// and more data exists. It reports whether a fetch was performed. Concurrent
// calls while a fetch is outstanding return immediately.
func (c *Controller[T]) LoadMore(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.unmounted || c.state.IsLoadingInitial || c.state.IsLoadingMore || !c.state.HasMore || c.state.Cursor == nil {
		c.mu.Unlock()
		return false, nil
	}
	c.state.IsLoadingMore = true
	cursor := *c.state.Cursor
	gen := c.generation
	c.mu.Unlock()
	c.notify()

	page, err := c.source.ListPage(ctx, cursor)

	c.mu.Lock()
	if gen != c.generation || c.unmounted {
		c.mu.Unlock()
		c.logger.Debug("discarding stale page", zap.String("cursor", cursor))
		return true, nil
	}
	c.state.IsLoadingMore = false
	if err != nil {
		c.mu.Unlock()
		c.observe(PhaseMore, false)
		c.logger.Warn("next page load failed", zap.String("cursor", cursor), zap.Error(err))
		c.notify()
		return true, err
	}
	c.state.Items = append(c.state.Items, page.Results...)
	c.setCursorLocked(page)
	c.mu.Unlock()

	c.observe(PhaseMore, true)
	c.notify()
	return true, nil
}

// Reload discards in-flight fetches and loads the first page again. The
// current items stay visible until the new page arrives and are kept when
// the reload fails.
func (c *Controller[T]) Reload(ctx context.Context) error {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return nil
	}
	c.generation++
	gen := c.generation
	c.started = true
	c.state.IsLoadingInitial = true
	c.state.IsLoadingMore = false
	c.mu.Unlock()
	c.notify()

	page, err := c.source.ListPage(ctx, "")

	c.mu.Lock()
	if gen != c.generation || c.unmounted {
		c.mu.Unlock()
		return nil
	}
	c.state.IsLoadingInitial = false
	if err != nil {
		c.mu.Unlock()
		c.observe(PhaseReload, false)
		c.logger.Warn("reload failed", zap.Error(err))
		c.notify()
		return err
	}
	c.applyFirstPageLocked(page)
	c.mu.Unlock()

	c.observe(PhaseReload, true)
	c.notify()
	return nil
}

// Insert places a server-confirmed record at the front or back of the list.
func (c *Controller[T]) Insert(item T, pos Position) {
	c.mu.Lock()
	if pos == Prepend {
		items := make([]T, 0, len(c.state.Items)+1)
		items = append(items, item)
		c.state.Items = append(items, c.state.Items...)
	} else {
		c.state.Items = append(c.state.Items, item)
	}
	c.mu.Unlock()
	c.notify()
}

// Replace swaps the record sharing item's id in place. It reports whether a
// record was found.
func (c *Controller[T]) Replace(item T) bool {
	c.mu.Lock()
	found := false
	for i := range c.state.Items {
		if c.state.Items[i].EntityID() == item.EntityID() {
			c.state.Items[i] = item
			found = true
			break
		}
	}
	c.mu.Unlock()
	if found {
		c.notify()
	}
	return found
}

// Remove drops the record with the given id. Removing an absent id is a no-op.
func (c *Controller[T]) Remove(id int64) bool {
	c.mu.Lock()
	idx := -1
	for i := range c.state.Items {
		if c.state.Items[i].EntityID() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	items := make([]T, 0, len(c.state.Items)-1)
	items = append(items, c.state.Items[:idx]...)
	c.state.Items = append(items, c.state.Items[idx+1:]...)
	c.mu.Unlock()
	c.notify()
	return true
}

// BindBoundary returns a boundary whose crossings trigger LoadMore in the
// background. Errors go to onError. Unmount stops the boundary.
func (c *Controller[T]) BindBoundary(ctx context.Context, onError func(error)) *Boundary {
	b := NewBoundary(func() {
		go func() {
			if _, err := c.LoadMore(ctx); err != nil && onError != nil {
				onError(err)
			}
		}()
	})
	c.mu.Lock()
	if c.boundary != nil {
		c.boundary.Stop()
	}
	c.boundary = b
	if c.unmounted {
		b.Stop()
	}
	c.mu.Unlock()
	return b
}

// Unmount stops the boundary trigger and makes every in-flight response a no-op.
func (c *Controller[T]) Unmount() {
	c.mu.Lock()
	c.unmounted = true
	c.generation++
	c.state.IsLoadingInitial = false
	c.state.IsLoadingMore = false
	b := c.boundary
	c.listener = nil
	c.mu.Unlock()
	if b != nil {
		b.Stop()
	}
}

func (c *Controller[T]) applyFirstPageLocked(page *models.Page[T]) {
	items := make([]T, 0, len(page.Results))
	c.state.Items = append(items, page.Results...)
	c.state.Loaded = true
	c.setCursorLocked(page)
}

func (c *Controller[T]) setCursorLocked(page *models.Page[T]) {
	if page.Terminal() {
		c.state.Cursor = nil
		c.state.HasMore = false
		return
	}
	next := page.Cursor()
	c.state.Cursor = &next
	c.state.HasMore = true
}

func (c *Controller[T]) snapshotLocked() State[T] {
	snap := c.state
	snap.Items = append([]T(nil), c.state.Items...)
	if snap.Items == nil {
		snap.Items = []T{}
	}
	if c.state.Cursor != nil {
		cursor := *c.state.Cursor
		snap.Cursor = &cursor
	}
	return snap
}

func (c *Controller[T]) notify() {
	c.mu.Lock()
	fn := c.listener
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func (c *Controller[T]) observe(phase string, success bool) {
	if c.recorder != nil {
		c.recorder.ObservePageLoad(c.name, phase, success)
	}
}
