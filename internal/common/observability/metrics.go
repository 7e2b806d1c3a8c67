package observability

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	opCounter     otelmetric.Int64Counter
	opDuration    otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	opCounter, _ := meter.Int64Counter(
		"operations.processed",
		otelmetric.WithDescription("Number of service operations processed"),
	)

	opDuration, _ := meter.Float64Histogram(
		"operations.duration",
		otelmetric.WithDescription("Service operation duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		opCounter:     opCounter,
		opDuration:    opDuration,
	}
}

func (o *Observability) RecordOperation(ctx context.Context, operation, status string) {
	if o.opCounter != nil {
		o.opCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordDuration(ctx context.Context, operation string, duration time.Duration) {
	if o.opDuration != nil {
		o.opDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("operation", operation),
		))
	}
}

// InstrumentHandler wraps an http.Handler, recording one operation count and
// duration sample per request.
func (o *Observability) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		operation := r.Method + " " + r.URL.Path
		o.RecordOperation(r.Context(), operation, strconv.Itoa(rec.status))
		o.RecordDuration(r.Context(), operation, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
