// Package observability предоставляет distributed tracing и propagation
// correlation ID между сервисами платформы.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const correlationIDKey = "X-Correlation-ID"

// TracingConfig конфигурация для distributed tracing
type TracingConfig struct {
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	Exporter         string // "jaeger", "zipkin", "otlp", "stdout"
	ExporterEndpoint string
	SamplingRate     float64 // 0.0 - 1.0
	Environment      string  // "development", "staging", "production"
}

// TracingManager менеджер для distributed tracing
type TracingManager struct {
	config   TracingConfig
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	running  bool
	mu       sync.RWMutex
}

// NewTracingManager создает новый TracingManager
func NewTracingManager(config TracingConfig) (*TracingManager, error) {
	if !config.Enabled {
		return &TracingManager{config: config}, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := createExporter(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	sampler := sdktrace.TraceIDRatioBased(config.SamplingRate)
	if config.SamplingRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if config.SamplingRate <= 0.0 {
		sampler = sdktrace.NeverSample()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracingManager{
		config:   config,
		tracer:   tp.Tracer(config.ServiceName),
		provider: tp,
	}, nil
}

// createExporter создает exporter на основе конфигурации
func createExporter(config TracingConfig) (sdktrace.SpanExporter, error) {
	switch config.Exporter {
	case "jaeger":
		return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(config.ExporterEndpoint)))
	case "zipkin":
		return zipkin.New(config.ExporterEndpoint)
	case "otlp":
		client := otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(config.ExporterEndpoint),
			otlptracehttp.WithInsecure(),
		)
		return otlptrace.New(context.Background(), client)
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
}

// Start запускает tracing (lifecycle)
func (tm *TracingManager) Start(ctx context.Context) error {
	tm.mu.Lock()
	tm.running = true
	tm.mu.Unlock()
	return nil
}

// Stop останавливает tracing с graceful shutdown
func (tm *TracingManager) Stop(ctx context.Context) error {
	tm.mu.Lock()
	tm.running = false
	tm.mu.Unlock()

	if tm.provider != nil {
		return tm.provider.Shutdown(ctx)
	}
	return nil
}

// IsRunning проверяет статус
func (tm *TracingManager) IsRunning() bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.running
}

// Tracer возвращает tracer для создания spans
func (tm *TracingManager) Tracer() trace.Tracer {
	return tm.tracer
}

// HTTPTracingMiddleware Gin middleware для автоматической инструментации HTTP requests
func HTTPTracingMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(c.Request.Header))

		tracer := otel.Tracer(serviceName)
		ctx, span := tracer.Start(ctx, fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path))
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.url", c.Request.URL.String()),
			attribute.String("http.route", c.FullPath()),
		)

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last())
		}

		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(c.Writer.Header()))
	}
}

// ExtractCorrelationID извлекает correlation ID из context
func ExtractCorrelationID(ctx context.Context) string {
	b := baggage.FromContext(ctx)
	if b.Len() > 0 {
		if member := b.Member(correlationIDKey); member.Key() == correlationIDKey {
			return member.Value()
		}
	}

	// Trace ID как fallback
	span := trace.SpanFromContext(ctx)
	if span != nil && span.SpanContext().TraceID().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// InjectCorrelationID добавляет correlation ID в context
func InjectCorrelationID(ctx context.Context, correlationID string) context.Context {
	b := baggage.FromContext(ctx)
	member, err := baggage.NewMember(correlationIDKey, correlationID)
	if err != nil {
		return ctx
	}
	b, _ = b.SetMember(member)
	return baggage.ContextWithBaggage(ctx, b)
}

// PropagateCorrelationID передает correlation ID через HTTP headers
func PropagateCorrelationID(ctx context.Context, headers http.Header) {
	correlationID := ExtractCorrelationID(ctx)
	if correlationID != "" {
		headers.Set(correlationIDKey, correlationID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}

// CorrelationIDMiddleware Gin middleware для генерации и propagation correlation ID
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		correlationID := c.GetHeader(correlationIDKey)
		if correlationID == "" {
			span := trace.SpanFromContext(ctx)
			if span != nil && span.SpanContext().TraceID().IsValid() {
				correlationID = span.SpanContext().TraceID().String()
			} else {
				correlationID = uuid.New().String()
			}
		}

		ctx = InjectCorrelationID(ctx, correlationID)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(correlationIDKey, correlationID)

		c.Next()
	}
}

// TraceCommand обертка для команд саги с автоматической инструментацией
func TraceCommand(ctx context.Context, commandName string, fn func(context.Context) error) error {
	tracer := otel.Tracer("ticketon.command")
	ctx, span := tracer.Start(ctx, fmt.Sprintf("command.%s", commandName))
	defer span.End()

	span.SetAttributes(attribute.String("command.name", commandName))

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("command.success", false))
	} else {
		span.SetAttributes(attribute.Bool("command.success", true))
	}
	return err
}

// TraceEvent обертка для обработки доменных событий с автоматической инструментацией
func TraceEvent(ctx context.Context, eventType string, fn func(context.Context) error) error {
	tracer := otel.Tracer("ticketon.event")
	ctx, span := tracer.Start(ctx, fmt.Sprintf("event.%s", eventType))
	defer span.End()

	span.SetAttributes(attribute.String("event.type", eventType))

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("event.success", false))
	} else {
		span.SetAttributes(attribute.Bool("event.success", true))
	}
	return err
}
