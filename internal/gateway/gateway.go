package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/tutor-admin/internal/models"
	"github.com/noah-isme/tutor-admin/internal/session"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
	"github.com/noah-isme/tutor-admin/pkg/middleware/requestid"
)

// Refresher exchanges a refresh token for a new pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
}

// Recorder receives per-call instrumentation.
type Recorder interface {
	ObserveGatewayRequest(method, endpoint string, status int, duration time.Duration)
	ObserveRefresh(result string)
}

// Refresh outcomes reported to the Recorder.
const (
	RefreshSucceeded   = "success"
	RefreshFailed      = "failure"
	RefreshInterrupted = "interrupted"
)

const defaultRefreshTimeout = 30 * time.Second

// Request describes one outbound call. Body is kept as bytes so the call can
// be replayed once after a refresh.
type Request struct {
	Method      string
	URL         string
	Body        []byte
	ContentType string
	Header      http.Header
}

// JSONRequest marshals payload into a request body.
func JSONRequest(method, url string, payload interface{}) (Request, error) {
	req := Request{Method: method, URL: url}
	if payload == nil {
		return req, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Request{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to encode request body")
	}
	req.Body = body
	req.ContentType = "application/json"
	return req, nil
}

// Gateway wraps every outbound call with the session lifecycle: bearer
// injection, refresh of an expired access token, and session teardown when
// the refresh fails.
type Gateway struct {
	client    *http.Client
	store     *session.Store
	refresher Refresher
	recorder  Recorder
	logger    *zap.Logger

	refreshes singleflight.Group
}

// New constructs a Gateway.
func New(client *http.Client, store *session.Store, refresher Refresher, recorder Recorder, logger *zap.Logger) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{client: client, store: store, refresher: refresher, recorder: recorder, logger: logger}
}

// Do performs the request and decodes a 2xx JSON body into out when out is non-nil.
// A 204 yields no decoding.
func (g *Gateway) Do(ctx context.Context, req Request, out interface{}) error {
	resp, err := g.execute(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNoContent || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrParse.Code, resp.StatusCode, "failed to decode response body")
	}
	return nil
}

// Download fetches a binary document. The filename comes from the
// Content-Disposition header, falling back to models.DefaultDownloadName.
func (g *Gateway) Download(ctx context.Context, url string) (*models.Download, error) {
	resp, err := g.execute(ctx, Request{Method: http.MethodGet, URL: url})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read download")
	}
	return &models.Download{
		Filename:    FilenameFromDisposition(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// execute runs the two-state protocol: attempt with the current (possibly
// refreshed) credential; on a 401 from a call that has not refreshed yet,
// refresh once and retry once. Non-2xx responses become HTTP errors.
func (g *Gateway) execute(ctx context.Context, req Request) (*http.Response, error) {
	token, refreshed, err := g.credential(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := g.send(ctx, req, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && token != "" && !refreshed {
		drain(resp)
		sess := g.store.Current()
		if sess == nil {
			return nil, appErrors.Clone(appErrors.ErrSessionExpired, "")
		}
		token, err = g.refresh(ctx, sess.RefreshToken)
		if err != nil {
			return nil, err
		}
		resp, err = g.send(ctx, req, token)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer drain(resp)
		return nil, errorFromResponse(resp)
	}
	return resp, nil
}

// credential returns the bearer token to use, refreshing it first when the
// stored access token has expired. An absent session yields an empty token.
func (g *Gateway) credential(ctx context.Context) (string, bool, error) {
	if g.store == nil {
		return "", false, nil
	}
	sess, expired := g.store.Snapshot()
	if sess == nil {
		return "", false, nil
	}
	if !expired {
		return sess.AccessToken, false, nil
	}
	token, err := g.refresh(ctx, sess.RefreshToken)
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

// refresh coalesces concurrent refreshes into one call to the refresh
// endpoint. The shared call is detached from the caller that started it and
// bounded by the client timeout, so one cancelled caller cannot fail the
// others. A caller whose own context ends stops waiting with ctx.Err().
func (g *Gateway) refresh(ctx context.Context, refreshToken string) (string, error) {
	detached := context.WithoutCancel(ctx)
	ch := g.refreshes.DoChan("refresh", func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(detached, g.refreshTimeout())
		defer cancel()
		return g.doRefresh(rctx, refreshToken)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			g.logger.Debug("joined in-flight token refresh")
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "request cancelled during token refresh")
	}
}

func (g *Gateway) refreshTimeout() time.Duration {
	if g.client.Timeout > 0 {
		return g.client.Timeout
	}
	return defaultRefreshTimeout
}

func (g *Gateway) doRefresh(ctx context.Context, refreshToken string) (string, error) {
	if g.refresher == nil || refreshToken == "" {
		g.expire(ctx, fmt.Errorf("no refresh token available"))
		return "", appErrors.Clone(appErrors.ErrSessionExpired, "")
	}

	pair, err := g.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		if interrupted(err) {
			// the refresh token was never rejected; keep the session for the next call
			if g.recorder != nil {
				g.recorder.ObserveRefresh(RefreshInterrupted)
			}
			g.logger.Warn("token refresh interrupted, keeping session", zap.Error(err))
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusGatewayTimeout, "token refresh did not complete")
		}
		g.expire(ctx, err)
		return "", appErrors.Wrap(err, appErrors.ErrSessionExpired.Code, appErrors.ErrSessionExpired.Status, appErrors.ErrSessionExpired.Message)
	}

	sess, err := g.store.Replace(ctx, pair)
	if err != nil {
		g.expire(ctx, err)
		return "", appErrors.Wrap(err, appErrors.ErrSessionExpired.Code, appErrors.ErrSessionExpired.Status, appErrors.ErrSessionExpired.Message)
	}

	if g.recorder != nil {
		g.recorder.ObserveRefresh(RefreshSucceeded)
	}
	g.logger.Info("access token refreshed", zap.Int64("expires_at", sess.ExpiresAt))
	return sess.AccessToken, nil
}

// interrupted reports cancellations and timeouts, as opposed to a refresh
// the server answered.
func interrupted(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (g *Gateway) expire(ctx context.Context, cause error) {
	if g.recorder != nil {
		g.recorder.ObserveRefresh(RefreshFailed)
	}
	g.logger.Warn("token refresh failed, clearing session", zap.Error(cause))
	g.store.Clear(ctx)
}

func (g *Gateway) send(ctx context.Context, req Request, token string) (*http.Response, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request")
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	reqID := requestid.Stamp(httpReq)

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	duration := time.Since(start)
	endpoint := EndpointLabel(httpReq.URL.Path)
	if err != nil {
		if g.recorder != nil {
			g.recorder.ObserveGatewayRequest(method, endpoint, 0, duration)
		}
		g.logger.Error("request failed", zap.String("method", method), zap.String("url", req.URL), zap.String("request_id", reqID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusBadGateway, "network request failed")
	}

	if g.recorder != nil {
		g.recorder.ObserveGatewayRequest(method, endpoint, resp.StatusCode, duration)
	}
	g.logger.Debug("http_request",
		zap.String("method", method),
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", duration),
		zap.String("request_id", reqID),
	)
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
