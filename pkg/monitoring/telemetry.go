package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

var (
	meterProvider          *sdkmetric.MeterProvider
	requestCounter         metric.Int64Counter
	latencyHist            metric.Float64Histogram
	externalCallCounter    metric.Int64Counter
	externalCallLatency    metric.Float64Histogram
	externalCallErrCounter metric.Int64Counter
	lifecycleEventCounter  metric.Int64Counter
	cleanupStepCounter     metric.Int64Counter
	initOnce               sync.Once
	httpHandler            http.Handler
)

// Metrics exporter types
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterNone       = "none"
)

const otlpExportInterval = 15 * time.Second

// Config captures the minimal setup parameters for telemetry.
// An empty ExporterType selects Prometheus.
type Config struct {
	ServiceName   string
	ResourceAttrs map[string]string
	ExporterType  string
	OTLPEndpoint  string
	OTLPInsecure  bool
	OTLPHeaders   map[string]string
}

func newResource(cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	for k, v := range cfg.ResourceAttrs {
		attrs = append(attrs, attribute.String(k, v))
	}
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}

// newReader builds the metric reader for the configured exporter and the handler served on /metrics
func newReader(ctx context.Context, cfg Config) (sdkmetric.Reader, http.Handler, error) {
	switch strings.ToLower(cfg.ExporterType) {
	case "", ExporterPrometheus:
		exp, err := prometheus.New(prometheus.WithoutUnits())
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Initialized metrics with Prometheus exporter", "service", cfg.ServiceName)
		return exp, promhttp.Handler(), nil

	case ExporterOTLP:
		if cfg.OTLPEndpoint == "" {
			return nil, nil, fmt.Errorf("OTLP endpoint is required when using OTLP exporter")
		}
		endpoint, err := url.Parse(cfg.OTLPEndpoint)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid OTLP endpoint URL: %w", err)
		}
		if endpoint.Scheme != "https" && !cfg.OTLPInsecure {
			return nil, nil, fmt.Errorf("OTLP endpoint must use https (got %q) unless OTEL_EXPORTER_OTLP_INSECURE=true", endpoint.Scheme)
		}

		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint.Host)}
		if endpoint.Scheme == "http" {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if len(cfg.OTLPHeaders) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(cfg.OTLPHeaders))
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		slog.Info("Initialized metrics with OTLP exporter", "service", cfg.ServiceName, "endpoint", endpoint.Host)
		return sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(otlpExportInterval)),
			staticHandler("# Metrics exported via OTLP\n"), nil

	case ExporterNone:
		slog.Info("Metrics export disabled", "service", cfg.ServiceName)
		return sdkmetric.NewManualReader(), staticHandler("# Metrics disabled\n"), nil

	default:
		return nil, nil, fmt.Errorf("unknown metrics exporter %q (supported: prometheus, otlp, none)", cfg.ExporterType)
	}
}

func staticHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
}

// Setup configures OpenTelemetry metrics with the selected exporter and runtime instrumentation.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "unknown-service"
	}

	var initErr error

	initOnce.Do(func() {
		reader, handler, err := newReader(ctx, cfg)
		if err != nil {
			initErr = err
			return
		}

		res, err := newResource(cfg)
		if err != nil {
			initErr = err
			return
		}

		meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
		)

		otel.SetMeterProvider(meterProvider)
		httpHandler = handler

		meter := meterProvider.Meter(cfg.ServiceName)
		if initErr = registerInstruments(meter); initErr != nil {
			return
		}

		// Start Go runtime metrics (goroutines, GC, etc.)
		_ = runtime.Start(
			runtime.WithMinimumReadMemStatsInterval(10*time.Second),
			runtime.WithMeterProvider(meterProvider),
		)
	})

	if initErr != nil {
		return nil, initErr
	}

	return func(ctx context.Context) error {
		if meterProvider != nil {
			return meterProvider.Shutdown(ctx)
		}
		return nil
	}, nil
}

func registerInstruments(meter metric.Meter) error {
	var err error

	requestCounter, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests processed"),
	)
	if err != nil {
		return err
	}

	latencyHist, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return err
	}

	externalCallCounter, err = meter.Int64Counter(
		"external_calls_total",
		metric.WithDescription("Total number of external calls (identity provider, event stream)"),
	)
	if err != nil {
		return err
	}

	externalCallLatency, err = meter.Float64Histogram(
		"external_call_duration_seconds",
		metric.WithDescription("Duration of external calls in seconds"),
	)
	if err != nil {
		return err
	}

	externalCallErrCounter, err = meter.Int64Counter(
		"external_call_errors_total",
		metric.WithDescription("Number of failed external calls"),
	)
	if err != nil {
		return err
	}

	lifecycleEventCounter, err = meter.Int64Counter(
		"member_lifecycle_actions_total",
		metric.WithDescription("Administrative lifecycle actions by action and outcome"),
	)
	if err != nil {
		return err
	}

	cleanupStepCounter, err = meter.Int64Counter(
		"member_cleanup_steps_total",
		metric.WithDescription("Permanent-delete cleanup steps by relation and outcome"),
	)
	return err
}

// Handler returns the Prometheus /metrics handler.
func Handler() http.Handler {
	if httpHandler != nil {
		return httpHandler
	}
	return http.NotFoundHandler()
}

// HTTPMetricsMiddleware records request counts and latency.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestCounter == nil || latencyHist == nil {
			next.ServeHTTP(w, r)
			return
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		attrs := attributeSet(r.Method, r.URL.Path, recorder.status)
		requestCounter.Add(r.Context(), 1, metric.WithAttributes(attrs...))
		latencyHist.Record(r.Context(), time.Since(start).Seconds(), metric.WithAttributes(attrs...))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(statusCode int) {
	s.status = statusCode
	s.ResponseWriter.WriteHeader(statusCode)
}

func attributeSet(method, route string, status int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	}
}

// RecordExternalCall tracks latency and errors for downstream dependencies.
func RecordExternalCall(ctx context.Context, target, operation string, duration time.Duration, err error) {
	if externalCallCounter == nil || externalCallLatency == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("external.target", target),
		attribute.String("external.operation", operation),
		attribute.Bool("external.success", err == nil),
	}

	externalCallCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	externalCallLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil && externalCallErrCounter != nil {
		externalCallErrCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordLifecycleAction counts an administrative action by outcome.
func RecordLifecycleAction(ctx context.Context, action string, success bool) {
	if lifecycleEventCounter == nil {
		return
	}

	lifecycleEventCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("lifecycle.action", action),
		attribute.String("lifecycle.outcome", outcomeLabel(success)),
	))
}

// RecordCleanupStep counts a cleanup step outcome: deleted, nulled, skipped or failed.
func RecordCleanupStep(ctx context.Context, relation, outcome string) {
	if cleanupStepCounter == nil {
		return
	}

	cleanupStepCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cleanup.relation", relation),
		attribute.String("cleanup.outcome", outcome),
	))
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
