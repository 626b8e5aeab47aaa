package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type metricsExporter interface {
	Handler() http.Handler
}

// MetricsHandler exposes the scrape endpoint and the liveness probe.
type MetricsHandler struct {
	exporter metricsExporter
	started  time.Time
	counts   func() map[string]int
}

// NewMetricsHandler constructs a metrics handler. counts, when set, reports
// record totals in the health payload.
func NewMetricsHandler(exporter metricsExporter, counts func() map[string]int) *MetricsHandler {
	return &MetricsHandler{exporter: exporter, started: time.Now(), counts: counts}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.exporter == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.exporter.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health reports liveness, uptime and the size of each collection.
func (h *MetricsHandler) Health(c *gin.Context) {
	body := gin.H{"status": "ok", "uptime_seconds": int64(time.Since(h.started).Seconds())}
	if h.counts != nil {
		body["records"] = h.counts()
	}
	c.JSON(http.StatusOK, body)
}
