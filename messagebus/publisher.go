package messagebus

import (
	"context"
	"log"

	"github.com/akriventsev/ticketon/domain"
	"github.com/akriventsev/ticketon/metrics"
	"github.com/akriventsev/ticketon/transport"
)

// EventPublisher публикует доменные события саги бронирования.
// Сбой публикации логируется и не откатывает уже сохраненное локальное
// состояние: источник истины - запись в хранилище, восстановление
// выполняется повторной доставкой шины, а не повтором команды.
type EventPublisher struct {
	bus     transport.Publisher
	metrics *metrics.Metrics
}

// NewEventPublisher создает новый публикатор доменных событий
func NewEventPublisher(bus transport.Publisher, m *metrics.Metrics) *EventPublisher {
	return &EventPublisher{
		bus:     bus,
		metrics: m,
	}
}

// Publish кодирует и публикует событие в subject, равный его типу
func (p *EventPublisher) Publish(ctx context.Context, payload domain.EventPayload) error {
	data, err := domain.EncodeEvent(payload)
	if err != nil {
		return err
	}

	subject := string(payload.EventType())
	if err := p.bus.Publish(ctx, subject, data, nil); err != nil {
		return err
	}

	if p.metrics != nil {
		p.metrics.RecordEvent(ctx, subject)
	}
	return nil
}

// PublishLogged публикует событие, логируя сбой вместо возврата ошибки
func (p *EventPublisher) PublishLogged(ctx context.Context, payload domain.EventPayload) {
	if err := p.Publish(ctx, payload); err != nil {
		log.Printf("Failed to publish %s for %s: %v", payload.EventType(), payload.AggregateID(), err)
	}
}
