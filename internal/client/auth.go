package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-admin/internal/models"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
	"github.com/noah-isme/tutor-admin/pkg/middleware/requestid"
)

// AuthClient talks to the token endpoints. It uses its own HTTP client so it
// can serve as both the session Authenticator and the gateway Refresher.
type AuthClient struct {
	http      *http.Client
	endpoints Endpoints
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuthClient constructs the token client.
func NewAuthClient(httpClient *http.Client, endpoints Endpoints, validate *validator.Validate, logger *zap.Logger) *AuthClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthClient{http: httpClient, endpoints: endpoints, validator: validate, logger: logger}
}

// Login exchanges credentials for a token pair.
func (c *AuthClient) Login(ctx context.Context, username, password string) (models.TokenPair, error) {
	req := models.LoginRequest{Username: username, Password: password}
	if err := c.validator.Struct(req); err != nil {
		return models.TokenPair{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "username and password are required")
	}
	return c.post(ctx, c.endpoints.API+"/token/", req)
}

// Refresh exchanges a refresh token for a new pair. The response may omit
// the refresh token.
func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	req := models.RefreshRequest{Refresh: refreshToken}
	if err := c.validator.Struct(req); err != nil {
		return models.TokenPair{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "refresh token is required")
	}
	return c.post(ctx, c.endpoints.API+"/token/refresh/", req)
}

func (c *AuthClient) post(ctx context.Context, url string, payload interface{}) (models.TokenPair, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return models.TokenPair{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode token request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.TokenPair{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid token request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	reqID := requestid.Stamp(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Error("token request failed", zap.String("url", url), zap.String("request_id", reqID), zap.Error(err))
		return models.TokenPair{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusBadGateway, "network request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		message := http.StatusText(resp.StatusCode)
		var body struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(raw, &body) == nil && body.Detail != "" {
			message = body.Detail
		}
		c.logger.Warn("token request rejected", zap.String("url", url), zap.Int("status", resp.StatusCode), zap.String("request_id", reqID))
		return models.TokenPair{}, appErrors.HTTP(resp.StatusCode, message)
	}

	var pair models.TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return models.TokenPair{}, appErrors.Wrap(err, appErrors.ErrParse.Code, resp.StatusCode, "failed to decode token response")
	}
	if pair.Access == "" {
		return models.TokenPair{}, appErrors.New(appErrors.CodeParse, resp.StatusCode, "token response without access token")
	}
	return pair, nil
}
