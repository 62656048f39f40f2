package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/debris-tracking-scene/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	defaultServiceName  = "debris-tracking-scene"
	defaultOTLPEndpoint = "localhost:4317"

	// Resource attribute keys describing the running scene.
	AttrSceneBinary   = attribute.Key("scene.binary")
	AttrSceneScenario = attribute.Key("scene.scenario")
	AttrSceneSeed     = attribute.Key("scene.seed")
	AttrSceneMode     = attribute.Key("scene.frame_mode")
)

// SceneInfo identifies the scene a process animates. It is attached to every
// exported span as resource attributes.
type SceneInfo struct {
	Binary   string
	Scenario string // file path; empty means the stock scene
	Seed     uint64
	Mode     string // timectrl mode name
}

// ScenarioName is the scenario path, or "stock" when none was given.
func (s SceneInfo) ScenarioName() string {
	if s.Scenario == "" {
		return "stock"
	}
	return s.Scenario
}

// Attributes returns the resource attributes for s. Empty binary and mode
// fields are omitted.
func (s SceneInfo) Attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttrSceneScenario.String(s.ScenarioName()),
		AttrSceneSeed.String(strconv.FormatUint(s.Seed, 10)),
	}
	if s.Binary != "" {
		attrs = append(attrs, AttrSceneBinary.String(s.Binary))
	}
	if s.Mode != "" {
		attrs = append(attrs, AttrSceneMode.String(s.Mode))
	}
	return attrs
}

// TracingConfig governs how frame tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // stdout | otlp
	Endpoint    string // otlp collector address
	SampleRatio float64

	// Output receives stdout-exporter spans. Nil means os.Stdout; the terminal
	// viewer points it at its log file.
	Output io.Writer

	Scene SceneInfo
}

// TracingConfigFromEnv reads the SCENE_TRACING_* and SCENE_OTLP_ENDPOINT
// variables. The caller fills in Scene and Output.
func TracingConfigFromEnv() TracingConfig {
	cfg := TracingConfig{
		Enabled:     strings.EqualFold(os.Getenv("SCENE_TRACING_ENABLED"), "true"),
		ServiceName: envOr("SCENE_TRACING_SERVICE_NAME", defaultServiceName),
		Exporter:    strings.ToLower(envOr("SCENE_TRACING_EXPORTER", "stdout")),
		Endpoint:    os.Getenv("SCENE_OTLP_ENDPOINT"),
		SampleRatio: 1,
	}
	if raw := os.Getenv("SCENE_TRACING_SAMPLE_RATIO"); raw != "" {
		if r, err := strconv.ParseFloat(raw, 64); err == nil && r >= 0 && r <= 1 {
			cfg.SampleRatio = r
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// InitTracing installs the global tracer provider used for scene.frame spans
// and returns a shutdown function that flushes them. With tracing disabled a
// noop provider is installed and shutdown does nothing.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Debug(ctx, "frame tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	service := cfg.ServiceName
	if service == "" {
		service = defaultServiceName
	}
	attrs := append([]attribute.KeyValue{
		attribute.String("service.name", service),
		attribute.String("service.namespace", "scene"),
	}, cfg.Scene.Attributes()...)
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(ctx, "frame tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", service),
		logging.String("scenario", cfg.Scene.ScenarioName()),
		logging.Float("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

func newSpanExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "stdout", "":
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithoutTimestamps())
	case "otlp", "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
}

// ShutdownWithTimeout flushes spans within five seconds and logs, rather than
// returns, any failure.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
