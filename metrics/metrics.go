// Package metrics предоставляет систему метрик на основе OpenTelemetry.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics сборщик метрик платформы бронирования
type Metrics struct {
	meter                metric.Meter
	reservationsTotal    metric.Int64Counter
	admissionRejections  metric.Int64Counter
	paymentsTotal        metric.Int64Counter
	eventsTotal          metric.Int64Counter
	reservationDuration  metric.Float64Histogram
	paymentDuration      metric.Float64Histogram
	errorsTotal          metric.Int64Counter
	activeReservations   metric.Int64UpDownCounter
}

// NewMetrics создает новый сборщик метрик
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("ticketon")

	reservationsTotal, err := meter.Int64Counter(
		"reservations_total",
		metric.WithDescription("Total number of reservation attempts"),
	)
	if err != nil {
		return nil, err
	}

	admissionRejections, err := meter.Int64Counter(
		"admission_rejections_total",
		metric.WithDescription("Total number of reservations rejected by the capacity ledger"),
	)
	if err != nil {
		return nil, err
	}

	paymentsTotal, err := meter.Int64Counter(
		"payments_total",
		metric.WithDescription("Total number of payments processed"),
	)
	if err != nil {
		return nil, err
	}

	eventsTotal, err := meter.Int64Counter(
		"events_total",
		metric.WithDescription("Total number of domain events published"),
	)
	if err != nil {
		return nil, err
	}

	reservationDuration, err := meter.Float64Histogram(
		"reservation_duration_seconds",
		metric.WithDescription("Reservation processing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	paymentDuration, err := meter.Float64Histogram(
		"payment_duration_seconds",
		metric.WithDescription("Payment processing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errorsTotal, err := meter.Int64Counter(
		"errors_total",
		metric.WithDescription("Total number of errors"),
	)
	if err != nil {
		return nil, err
	}

	activeReservations, err := meter.Int64UpDownCounter(
		"active_reservations",
		metric.WithDescription("Number of reservations currently being processed"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		meter:               meter,
		reservationsTotal:   reservationsTotal,
		admissionRejections: admissionRejections,
		paymentsTotal:       paymentsTotal,
		eventsTotal:         eventsTotal,
		reservationDuration: reservationDuration,
		paymentDuration:     paymentDuration,
		errorsTotal:         errorsTotal,
		activeReservations:  activeReservations,
	}, nil
}

// RecordReservation записывает метрику бронирования
func (m *Metrics) RecordReservation(ctx context.Context, eventID string, duration time.Duration, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("event_id", eventID),
		attribute.Bool("success", success),
	}

	m.reservationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.reservationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if !success {
		m.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("type", "reservation"),
			attribute.String("event_id", eventID),
		))
	}
}

// RecordAdmissionRejection записывает отказ леджера вместимости
func (m *Metrics) RecordAdmissionRejection(ctx context.Context, eventID string) {
	m.admissionRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_id", eventID),
	))
}

// RecordPayment записывает метрику платежа
func (m *Metrics) RecordPayment(ctx context.Context, status string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("status", status),
	}

	m.paymentsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.paymentDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordEvent записывает метрику опубликованного доменного события
func (m *Metrics) RecordEvent(ctx context.Context, eventType string) {
	m.eventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", eventType),
	))
}

// RecordTransport записывает метрику транспорта
func (m *Metrics) RecordTransport(ctx context.Context, transportName string, duration time.Duration, success bool) {
	if !success {
		m.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("type", "transport"),
			attribute.String("transport", transportName),
		))
	}
}

// IncrementActiveReservations увеличивает счетчик активных бронирований
func (m *Metrics) IncrementActiveReservations(ctx context.Context) {
	m.activeReservations.Add(ctx, 1)
}

// DecrementActiveReservations уменьшает счетчик активных бронирований
func (m *Metrics) DecrementActiveReservations(ctx context.Context) {
	m.activeReservations.Add(ctx, -1)
}
