package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-admin/internal/models"
	"github.com/noah-isme/tutor-admin/internal/session"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
)

// SessionService exposes login and logout on top of the session store.
type SessionService struct {
	store     *session.Store
	auth      session.Authenticator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService constructs a SessionService.
func NewSessionService(store *session.Store, auth session.Authenticator, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SessionService{store: store, auth: auth, validator: validate, logger: logger}
}

// Login validates the credentials and establishes a new session.
func (s *SessionService) Login(ctx context.Context, req models.LoginRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "username and password are required")
	}
	sess, err := s.store.Establish(ctx, s.auth, req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	s.logger.Info("logged in", zap.String("username", req.Username))
	return sess, nil
}

// Logout discards the session locally. There is no server-side revocation.
func (s *SessionService) Logout(ctx context.Context) {
	s.store.Clear(ctx)
}

// Restore loads a persisted session, if any.
func (s *SessionService) Restore(ctx context.Context) (*models.Session, error) {
	return s.store.Restore(ctx)
}

// WhoAmI returns the current session or an Unauthorized error.
func (s *SessionService) WhoAmI() (*models.Session, error) {
	sess := s.store.Current()
	if sess == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not logged in")
	}
	return sess, nil
}
