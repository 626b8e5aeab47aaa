package requestid

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderKey carries the correlation id on both inbound and outbound calls.
	HeaderKey = "X-Request-ID"

	ginKey = "request_id"
	maxLen = 128
)

type ctxKey struct{}

// Middleware tags every request with a correlation id. A well-formed id sent
// by the caller is kept; anything else is replaced.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderKey)
		if !valid(id) {
			id = Generate()
		}

		c.Set(ginKey, id)
		c.Request = c.Request.WithContext(WithID(c.Request.Context(), id))
		c.Writer.Header().Set(HeaderKey, id)
		c.Next()
	}
}

// Value returns the id assigned by Middleware.
func Value(c *gin.Context) string {
	return c.GetString(ginKey)
}

// WithID attaches a correlation id to ctx so outbound calls made with it
// share the id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the id stored by WithID.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Stamp makes sure an outbound request carries an id. An explicit header
// wins, then the id on the request context, then a fresh one.
func Stamp(req *http.Request) string {
	if id := req.Header.Get(HeaderKey); id != "" {
		return id
	}
	id := FromContext(req.Context())
	if id == "" {
		id = Generate()
	}
	req.Header.Set(HeaderKey, id)
	return id
}

// Generate returns a new random request identifier.
func Generate() string {
	return uuid.NewString()
}

func valid(id string) bool {
	if id == "" || len(id) > maxLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
