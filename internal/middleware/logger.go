package middleware

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/liamwears/reeldiary/internal/metrics"
	"github.com/liamwears/reeldiary/internal/telemetry"
)

// CorrelationIDContextKey is the key for the request correlation id
const CorrelationIDContextKey ContextKey = "correlationID"

// CorrelationHeader carries the correlation id on requests and responses
const CorrelationHeader = "X-Correlation-Id"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// CorrelationID returns the correlation id of the request, if any
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(CorrelationIDContextKey).(string)
	return id
}

// Logger assigns a correlation id, traces and times each request, and logs
// one line per request. m may be nil.
func Logger(logger *log.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	tracer := telemetry.Tracer()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			correlationID := r.Header.Get(CorrelationHeader)
			if correlationID == "" {
				correlationID = uuid.New().String()
			}
			w.Header().Set(CorrelationHeader, correlationID)

			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path, trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("correlation.id", correlationID),
			))
			defer span.End()
			ctx = context.WithValue(ctx, CorrelationIDContextKey, correlationID)
			r = r.WithContext(ctx)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			span.SetAttributes(attribute.Int("http.status_code", rec.status))
			logger.Printf("%s %s %d %s [%s]", r.Method, r.URL.Path, rec.status, duration.Round(time.Microsecond), correlationID)

			if m == nil {
				return
			}
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.HTTPRequestTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())
		})
	}
}
