package middleware

import (
	"net/http"
	"sync/atomic"
)

// MetricsCollector counts requests and error responses in memory.
type MetricsCollector struct {
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// Requests returns the total number of requests observed.
func (mc *MetricsCollector) Requests() int64 { return mc.requestCount.Load() }

// Errors returns the number of 4xx and 5xx responses observed.
func (mc *MetricsCollector) Errors() int64 { return mc.errorCount.Load() }

// Middleware returns middleware that counts requests and errors.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.requestCount.Add(1)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		if rw.statusCode >= 400 {
			mc.errorCount.Add(1)
		}
	})
}
