package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-admin/internal/models"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
)

// Authenticator exchanges credentials for a token pair.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (models.TokenPair, error)
}

// EventKind enumerates session lifecycle transitions.
type EventKind int

const (
	EventEstablished EventKind = iota + 1
	EventRestored
	EventRefreshed
	EventCleared
)

func (k EventKind) String() string {
	switch k {
	case EventEstablished:
		return "established"
	case EventRestored:
		return "restored"
	case EventRefreshed:
		return "refreshed"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event is delivered to observers after each lifecycle transition.
type Event struct {
	Kind    EventKind
	Session *models.Session
}

// Observer receives session events.
type Observer func(Event)

// Store owns the current session. Claims are always derived from the stored
// access token; they cannot be set on their own.
type Store struct {
	persister Persister
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.RWMutex
	current *models.Session

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObsID int
}

// NewStore constructs an empty store backed by the given persister.
func NewStore(persister Persister, logger *zap.Logger) *Store {
	if persister == nil {
		persister = NewMemoryPersister()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		persister: persister,
		logger:    logger,
		now:       time.Now,
		observers: make(map[int]Observer),
	}
}

// SetClock overrides the time source used by IsExpired.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Subscribe registers an observer and returns a function removing it.
func (s *Store) Subscribe(fn Observer) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = fn
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

// Restore loads the persisted session at startup. A token that cannot be
// decoded is treated as absent and the persisted copy is removed.
func (s *Store) Restore(ctx context.Context) (*models.Session, error) {
	pair, err := s.persister.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNotPersisted) {
			return nil, nil
		}
		s.logger.Warn("persisted session unreadable, clearing", zap.Error(err))
		s.dropPersisted(ctx)
		return nil, nil
	}

	sess, err := newSession(pair)
	if err != nil {
		s.logger.Warn("persisted access token invalid, clearing", zap.Error(err))
		s.dropPersisted(ctx)
		return nil, nil
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.emit(Event{Kind: EventRestored, Session: sess.Clone()})
	return sess.Clone(), nil
}

// Establish exchanges credentials for a new session. On failure any prior
// session is left untouched.
func (s *Store) Establish(ctx context.Context, auth Authenticator, username, password string) (*models.Session, error) {
	pair, err := auth.Login(ctx, username, password)
	if err != nil {
		status := appErrors.StatusOf(err)
		if status == http.StatusUnauthorized || status == http.StatusBadRequest || status == http.StatusForbidden {
			return nil, appErrors.Wrap(err, appErrors.ErrAuthentication.Code, appErrors.ErrAuthentication.Status, appErrors.ErrAuthentication.Message)
		}
		return nil, err
	}

	sess, err := newSession(pair)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrAuthentication.Code, appErrors.ErrAuthentication.Status, "server issued an unreadable access token")
	}

	if err := s.persister.Save(ctx, pair); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.logger.Info("session established", zap.String("username", sess.Claims.Username), zap.Int64("expires_at", sess.ExpiresAt))
	s.emit(Event{Kind: EventEstablished, Session: sess.Clone()})
	return sess.Clone(), nil
}

// Replace swaps the whole session after a successful refresh. A refresh
// response without a refresh token keeps the previous one.
func (s *Store) Replace(ctx context.Context, pair models.TokenPair) (*models.Session, error) {
	s.mu.RLock()
	prev := s.current
	s.mu.RUnlock()
	if pair.Refresh == "" && prev != nil {
		pair.Refresh = prev.RefreshToken
	}

	sess, err := newSession(pair)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrSessionExpired.Code, appErrors.ErrSessionExpired.Status, "refreshed access token unreadable")
	}
	if err := s.persister.Save(ctx, pair); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.emit(Event{Kind: EventRefreshed, Session: sess.Clone()})
	return sess.Clone(), nil
}

// Clear wipes the in-memory and persisted session and notifies observers.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	s.dropPersisted(ctx)
	s.emit(Event{Kind: EventCleared})
}

// Current returns a copy of the active session, or nil.
func (s *Store) Current() *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// IsExpired reports whether the current instant is at or past the claims expiry.
// An absent session is not expired.
func (s *Store) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiredLocked()
}

// Snapshot returns a copy of the active session together with its expiry
// verdict, both read under one lock.
func (s *Store) Snapshot() (*models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone(), s.expiredLocked()
}

func (s *Store) expiredLocked() bool {
	if s.current == nil {
		return false
	}
	return !s.now().Before(time.Unix(s.current.ExpiresAt, 0))
}

func (s *Store) dropPersisted(ctx context.Context) {
	if err := s.persister.Remove(ctx); err != nil {
		s.logger.Warn("failed to remove persisted session", zap.Error(err))
	}
}

func (s *Store) emit(evt Event) {
	s.obsMu.Lock()
	observers := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range observers {
		fn(evt)
	}
}

func newSession(pair models.TokenPair) (*models.Session, error) {
	claims, err := DecodeClaims(pair.Access)
	if err != nil {
		return nil, err
	}
	return &models.Session{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		ExpiresAt:    claims.ExpiresAt.Unix(),
		Claims:       claims,
	}, nil
}
