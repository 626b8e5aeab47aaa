package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-admin/internal/models"
	"github.com/noah-isme/tutor-admin/internal/session"
	"github.com/noah-isme/tutor-admin/internal/testutil"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
)

type fakeRefresher struct {
	mu      sync.Mutex
	calls   int
	pair    models.TokenPair
	err     error
	release chan struct{}
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return models.TokenPair{}, ctx.Err()
		}
	}
	return f.pair, f.err
}

func (f *fakeRefresher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRecorder struct {
	mu        sync.Mutex
	requests  int
	refreshes []string
}

func (r *fakeRecorder) ObserveGatewayRequest(method, endpoint string, status int, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests++
}

func (r *fakeRecorder) ObserveRefresh(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshes = append(r.refreshes, result)
}

type backend struct {
	hits       int64
	lastAuth   atomic.Value
	lastReqID  atomic.Value
	status     int
	body       gin.H
	rawHeaders map[string]string
}

func (b *backend) server(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Any("/*path", func(c *gin.Context) {
		atomic.AddInt64(&b.hits, 1)
		b.lastAuth.Store(c.GetHeader("Authorization"))
		b.lastReqID.Store(c.GetHeader("X-Request-ID"))
		for k, v := range b.rawHeaders {
			c.Header(k, v)
		}
		status := b.status
		if status == 0 {
			status = http.StatusOK
		}
		if status == http.StatusNoContent {
			c.Status(status)
			return
		}
		if b.body == nil {
			c.Status(status)
			return
		}
		c.JSON(status, b.body)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func storeWithToken(t *testing.T, exp time.Time) *session.Store {
	t.Helper()
	persister := session.NewMemoryPersister()
	require.NoError(t, persister.Save(context.Background(), models.TokenPair{Access: testutil.SignToken(t, "admin", exp), Refresh: "refresh-1"}))
	store := session.NewStore(persister, zap.NewNop())
	_, err := store.Restore(context.Background())
	require.NoError(t, err)
	return store
}

func TestGatewayWithoutSessionSendsUnauthenticated(t *testing.T) {
	b := &backend{body: gin.H{"ok": true}}
	srv := b.server(t)
	gw := New(srv.Client(), session.NewStore(nil, nil), &fakeRefresher{}, nil, nil)

	var out map[string]bool
	require.NoError(t, gw.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL + "/token/"}, &out))
	assert.True(t, out["ok"])
	assert.Equal(t, "", b.lastAuth.Load())
	assert.NotEmpty(t, b.lastReqID.Load())
}

func TestGatewayAttachesBearer(t *testing.T) {
	b := &backend{body: gin.H{"results": []int{}, "next": nil}}
	srv := b.server(t)
	store := storeWithToken(t, time.Now().Add(time.Hour))
	refresher := &fakeRefresher{}
	gw := New(srv.Client(), store, refresher, nil, nil)

	var page models.Page[models.Student]
	require.NoError(t, gw.Do(context.Background(), Request{URL: srv.URL + "/students/"}, &page))
	assert.Equal(t, "Bearer "+store.Current().AccessToken, b.lastAuth.Load())
	assert.True(t, page.Terminal())
	assert.Equal(t, 0, refresher.count())
}

func TestGatewayRefreshesExpiredTokenOnceBeforeRequest(t *testing.T) {
	b := &backend{body: gin.H{"id": 1}}
	srv := b.server(t)
	store := storeWithToken(t, time.Now().Add(-time.Minute))
	fresh := testutil.SignToken(t, "admin", time.Now().Add(time.Hour))
	refresher := &fakeRefresher{pair: models.TokenPair{Access: fresh, Refresh: "refresh-2"}}
	recorder := &fakeRecorder{}
	gw := New(srv.Client(), store, refresher, recorder, nil)

	require.NoError(t, gw.Do(context.Background(), Request{URL: srv.URL + "/students/1/"}, nil))
	assert.Equal(t, 1, refresher.count())
	assert.Equal(t, int64(1), atomic.LoadInt64(&b.hits))
	assert.Equal(t, "Bearer "+fresh, b.lastAuth.Load())
	assert.Equal(t, "refresh-2", store.Current().RefreshToken)
	assert.Equal(t, []string{RefreshSucceeded}, recorder.refreshes)
}

func TestGatewayFailedRefreshClearsSessionAndSkipsNetwork(t *testing.T) {
	b := &backend{body: gin.H{"id": 1}}
	srv := b.server(t)
	store := storeWithToken(t, time.Now().Add(-time.Minute))
	refresher := &fakeRefresher{err: appErrors.HTTP(http.StatusUnauthorized, "Token is invalid or expired")}
	gw := New(srv.Client(), store, refresher, nil, nil)

	cleared := 0
	store.Subscribe(func(evt session.Event) {
		if evt.Kind == session.EventCleared {
			cleared++
		}
	})

	err := gw.Do(context.Background(), Request{URL: srv.URL + "/students/"}, nil)
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.CodeSessionExpired))
	assert.Equal(t, 1, refresher.count())
	assert.Equal(t, int64(0), atomic.LoadInt64(&b.hits))
	assert.Nil(t, store.Current())
	assert.Equal(t, 1, cleared)
}

func TestGatewayConcurrentExpiredCallersShareOneRefresh(t *testing.T) {
	b := &backend{body: gin.H{"ok": true}}
	srv := b.server(t)
	store := storeWithToken(t, time.Now().Add(-time.Minute))
	fresh := testutil.SignToken(t, "admin", time.Now().Add(time.Hour))
	refresher := &fakeRefresher{pair: models.TokenPair{Access: fresh, Refresh: "r2"}, release: make(chan struct{})}
	gw := New(srv.Client(), store, refresher, nil, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- gw.Do(context.Background(), Request{URL: srv.URL + "/groups/"}, nil)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(refresher.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, refresher.count())
	assert.Equal(t, int64(5), atomic.LoadInt64(&b.hits))
}

func TestGatewayCancelledCallerDoesNotFailSharedRefresh(t *testing.T) {
	b := &backend{body: gin.H{"ok": true}}
	srv := b.server(t)
	store := storeWithToken(t, time.Now().Add(-time.Minute))
	fresh := testutil.SignToken(t, "admin", time.Now().Add(time.Hour))
	refresher := &fakeRefresher{pair: models.TokenPair{Access: fresh, Refresh: "r2"}, release: make(chan struct{})}
	gw := New(srv.Client(), store, refresher, nil, nil)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() { leaderErr <- gw.Do(leaderCtx, Request{URL: srv.URL + "/groups/"}, nil) }()
	require.Eventually(t, func() bool { return refresher.count() == 1 }, time.Second, time.Millisecond)

	followerErr := make(chan error, 1)
	go func() { followerErr <- gw.Do(context.Background(), Request{URL: srv.URL + "/groups/"}, nil) }()
	time.Sleep(10 * time.Millisecond)

	cancel()
	err := <-leaderErr
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, appErrors.IsCode(err, appErrors.CodeSessionExpired))

	close(refresher.release)
	require.NoError(t, <-followerErr)
	assert.Equal(t, 1, refresher.count())

	sess := store.Current()
	require.NotNil(t, sess)
	assert.Equal(t, fresh, sess.AccessToken)
	assert.Equal(t, "Bearer "+fresh, b.lastAuth.Load())
}

func TestGatewayInterruptedRefreshKeepsSession(t *testing.T) {
	b := &backend{body: gin.H{"ok": true}}
	srv := b.server(t)
	store := storeWithToken(t, time.Now().Add(-time.Minute))
	rec := &fakeRecorder{}
	refresher := &fakeRefresher{err: fmt.Errorf("refresh call: %w", context.DeadlineExceeded)}
	gw := New(srv.Client(), store, refresher, rec, nil)

	cleared := false
	store.Subscribe(func(evt session.Event) { cleared = cleared || evt.Kind == session.EventCleared })

	err := gw.Do(context.Background(), Request{URL: srv.URL + "/groups/"}, nil)
	require.Error(t, err)
	assert.False(t, appErrors.IsCode(err, appErrors.CodeSessionExpired))
	assert.Equal(t, http.StatusGatewayTimeout, appErrors.StatusOf(err))
	assert.False(t, cleared)
	require.NotNil(t, store.Current())
	assert.Equal(t, "refresh-1", store.Current().RefreshToken)
	assert.Equal(t, int64(0), atomic.LoadInt64(&b.hits))
	assert.Equal(t, []string{RefreshInterrupted}, rec.refreshes)
}

func TestGatewayRetriesOnceAfterUnauthorizedResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fresh := testutil.SignToken(t, "admin", time.Now().Add(time.Hour))
	var hits int64
	r := gin.New()
	r.GET("/lessons/", func(c *gin.Context) {
		atomic.AddInt64(&hits, 1)
		if c.GetHeader("Authorization") != "Bearer "+fresh {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Given token not valid for any token type"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": []gin.H{{"id": 3, "title": "Intro"}}, "next": nil})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	store := storeWithToken(t, time.Now().Add(time.Hour))
	refresher := &fakeRefresher{pair: models.TokenPair{Access: fresh}}
	gw := New(srv.Client(), store, refresher, nil, nil)

	var page models.Page[models.Lesson]
	require.NoError(t, gw.Do(context.Background(), Request{URL: srv.URL + "/lessons/"}, &page))
	require.Len(t, page.Results, 1)
	assert.Equal(t, "Intro", page.Results[0].Title)
	assert.Equal(t, 1, refresher.count())
	assert.Equal(t, int64(2), atomic.LoadInt64(&hits))
}

func TestGatewayHTTPErrorUsesStructuredMessage(t *testing.T) {
	b := &backend{status: http.StatusBadRequest, body: gin.H{"detail": "username already taken"}}
	srv := b.server(t)
	gw := New(srv.Client(), nil, nil, nil, nil)

	err := gw.Do(context.Background(), Request{Method: http.MethodPost, URL: srv.URL + "/students/"}, nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.CodeHTTP, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "username already taken", appErr.Message)
}

func TestGatewayHTTPErrorFallsBackToStatusText(t *testing.T) {
	b := &backend{status: http.StatusServiceUnavailable}
	srv := b.server(t)
	gw := New(srv.Client(), nil, nil, nil, nil)

	err := gw.Do(context.Background(), Request{URL: srv.URL + "/groups/"}, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusText(http.StatusServiceUnavailable), appErrors.FromError(err).Message)
}

func TestGatewayNoContentSkipsDecoding(t *testing.T) {
	b := &backend{status: http.StatusNoContent}
	srv := b.server(t)
	gw := New(srv.Client(), nil, nil, nil, nil)

	out := map[string]string{"untouched": "yes"}
	require.NoError(t, gw.Do(context.Background(), Request{Method: http.MethodDelete, URL: srv.URL + "/students/4/"}, &out))
	assert.Equal(t, "yes", out["untouched"])
}

func TestGatewayDownloadFilename(t *testing.T) {
	b := &backend{rawHeaders: map[string]string{"Content-Disposition": `attachment; filename="Group A.pdf"`, "Content-Type": "application/pdf"}, body: gin.H{}}
	srv := b.server(t)
	gw := New(srv.Client(), nil, nil, nil, nil)

	dl, err := gw.Download(context.Background(), srv.URL+"/feedback/download/2/")
	require.NoError(t, err)
	assert.Equal(t, "Group A.pdf", dl.Filename)
}

func TestFilenameFromDisposition(t *testing.T) {
	assert.Equal(t, models.DefaultDownloadName, FilenameFromDisposition(""))
	assert.Equal(t, "report.pdf", FilenameFromDisposition(`attachment; filename="report.pdf"`))
	assert.Equal(t, models.DefaultDownloadName, FilenameFromDisposition("inline"))
}

func TestEndpointLabel(t *testing.T) {
	assert.Equal(t, "/api/students/:id/", EndpointLabel("/api/students/42/"))
	assert.Equal(t, "/api/students/import/", EndpointLabel("/api/students/import/"))
}
