package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Config конфигурация экспорта метрик
type Config struct {
	ExporterType  string
	ServiceName   string
	ResourceAttrs map[string]string
}

// Setup настраивает экспорт метрик и устанавливает глобальный MeterProvider
func Setup(config *Config) (*metric.MeterProvider, error) {
	if config == nil {
		config = &Config{ExporterType: "prometheus"}
	}

	var reader metric.Reader
	switch config.ExporterType {
	case "prometheus", "":
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		reader = exporter
	default:
		return nil, fmt.Errorf("unknown exporter type: %s", config.ExporterType)
	}

	attrs := buildResourceAttributes(config.ResourceAttrs)
	if config.ServiceName != "" {
		attrs = append(attrs, attribute.String("service.name", config.ServiceName))
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := metric.NewMeterProvider(
		metric.WithReader(reader),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return provider, nil
}

// Handler возвращает HTTP-обработчик для scrape-эндпоинта Prometheus
func Handler() http.Handler {
	return promhttp.Handler()
}

// buildResourceAttributes строит resource attributes
func buildResourceAttributes(attrs map[string]string) []attribute.KeyValue {
	result := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, attribute.String(k, v))
	}
	return result
}

// Shutdown корректно завершает работу метрик
func Shutdown(ctx context.Context, provider *metric.MeterProvider) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}
