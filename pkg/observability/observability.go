// Package observability collects RED (Rate, Errors, Duration) metrics
// for the HTTP surface through the OpenTelemetry metric API. Instruments
// are registered against the global meter provider, so a deployment can
// plug in any SDK exporter without touching this package.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Provider holds the registered instruments.
type Provider struct {
	meter metric.Meter

	requestCounter metric.Int64Counter
	errorCounter   metric.Int64Counter
	durationHist   metric.Float64Histogram
	activeRequests metric.Int64UpDownCounter
}

// New registers the RED instruments under the given service name.
func New(serviceName string) (*Provider, error) {
	p := &Provider{meter: otel.Meter(serviceName)}

	var err error
	p.requestCounter, err = p.meter.Int64Counter("http.server.requests",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create request counter: %w", err)
	}
	p.errorCounter, err = p.meter.Int64Counter("http.server.errors",
		metric.WithDescription("HTTP requests answered with a 5xx status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create error counter: %w", err)
	}
	p.durationHist, err = p.meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	p.activeRequests, err = p.meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("In-flight HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create active requests counter: %w", err)
	}
	return p, nil
}

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments every request with the RED metrics. A nil
// provider is a no-op, so metrics can be disabled in tests.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	if p == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()
		p.activeRequests.Add(ctx, 1)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		attrs := metric.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("url.path", r.URL.Path),
			attribute.Int("http.response.status_code", rec.status),
		)
		p.requestCounter.Add(ctx, 1, attrs)
		if rec.status >= http.StatusInternalServerError {
			p.errorCounter.Add(ctx, 1, attrs)
		}
		p.durationHist.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
		p.activeRequests.Add(ctx, -1)
	})
}
