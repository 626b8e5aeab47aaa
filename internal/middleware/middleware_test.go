package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-admin/internal/models"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
	"github.com/noah-isme/tutor-admin/pkg/logger"
)

type stubValidator struct {
	valid string
}

func (s stubValidator) ValidateToken(token string) (*models.Claims, error) {
	if token != s.valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Given token not valid for any token type")
	}
	return &models.Claims{UserID: 1, Username: "admin", TokenType: "access"}, nil
}

type recordedRequest struct {
	method, path string
	status       int
}

type stubRecorder struct {
	seen []recordedRequest
}

func (s *stubRecorder) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	s.seen = append(s.seen, recordedRequest{method: method, path: path, status: status})
}

func newProtected(rec HTTPRecorder) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(rec))
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/students/:id/", JWT(stubValidator{valid: "good"}), func(c *gin.Context) {
		claims, _ := c.Get(ContextUserKey)
		c.JSON(http.StatusOK, gin.H{"user": claims.(*models.Claims).Username, "log_user": c.GetString(logger.UserKey)})
	})
	return r
}

func call(r http.Handler, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAcceptsBearerToken(t *testing.T) {
	w := call(newProtected(nil), "/api/students/1/", "bearer  good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"admin","log_user":"admin"}`, w.Body.String())
}

func TestJWTRejections(t *testing.T) {
	r := newProtected(nil)

	w := call(r, "/api/students/1/", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Authentication credentials were not provided.")
	assert.Equal(t, `Bearer realm="api"`, w.Header().Get("WWW-Authenticate"))

	w = call(r, "/api/students/1/", "Token good")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Authorization header must be")

	w = call(r, "/api/students/1/", "Bearer stale")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "not valid")
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	rec := &stubRecorder{}
	r := newProtected(rec)

	call(r, "/api/students/7/", "Bearer good")
	call(r, "/api/students/8/", "")
	call(r, "/nowhere", "")
	call(r, "/metrics", "")

	require.Len(t, rec.seen, 3)
	assert.Equal(t, recordedRequest{http.MethodGet, "/api/students/:id/", http.StatusOK}, rec.seen[0])
	assert.Equal(t, recordedRequest{http.MethodGet, "/api/students/:id/", http.StatusUnauthorized}, rec.seen[1])
	assert.Equal(t, recordedRequest{http.MethodGet, unmatchedRoute, http.StatusNotFound}, rec.seen[2])
}
