package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry shared by the gateway, the
// list controllers and the development backend.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	gatewayDuration *prometheus.HistogramVec
	gatewayTotal    *prometheus.CounterVec
	refreshTotal    *prometheus.CounterVec
	pageLoads       *prometheus.CounterVec
	importRows      *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Duration of outbound API calls in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	gatewayTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Total number of outbound API calls",
	}, []string{"method", "endpoint", "status"})

	refreshTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_refresh_total",
		Help: "Access token refresh attempts by outcome",
	}, []string{"result"})

	pageLoads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "list_page_loads_total",
		Help: "Paginated list fetches by resource, phase and outcome",
	}, []string{"resource", "phase", "result"})

	importRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_rows_total",
		Help: "Imported rows by resource and outcome",
	}, []string{"resource", "outcome"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests served by the development backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests served by the development backend",
	}, []string{"method", "path", "status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(gatewayDuration, gatewayTotal, refreshTotal, pageLoads, importRows, requestDuration, requestTotal, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		gatewayDuration: gatewayDuration,
		gatewayTotal:    gatewayTotal,
		refreshTotal:    refreshTotal,
		pageLoads:       pageLoads,
		importRows:      importRows,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}
}

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveGatewayRequest records one outbound call. Status 0 marks a network failure.
func (m *MetricsService) ObserveGatewayRequest(method, endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.gatewayDuration.WithLabelValues(method, endpoint, labelStatus).Observe(duration.Seconds())
	m.gatewayTotal.WithLabelValues(method, endpoint, labelStatus).Inc()
}

// ObserveRefresh counts a token refresh outcome.
func (m *MetricsService) ObserveRefresh(result string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(result).Inc()
}

// ObservePageLoad counts a list fetch.
func (m *MetricsService) ObservePageLoad(resource, phase string, success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.pageLoads.WithLabelValues(resource, phase, result).Inc()
}

// ObserveImport records the row outcomes of one batch import.
func (m *MetricsService) ObserveImport(resource string, created, updated, failed int) {
	if m == nil {
		return
	}
	m.importRows.WithLabelValues(resource, "created").Add(float64(created))
	m.importRows.WithLabelValues(resource, "updated").Add(float64(updated))
	m.importRows.WithLabelValues(resource, "failed").Add(float64(failed))
}

// ObserveHTTPRequest records a request served by the development backend.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}
