package ticketing

import (
	"context"
	"errors"
	"log"

	"github.com/akriventsev/ticketon/domain"
	"github.com/akriventsev/ticketon/observability"
	"github.com/akriventsev/ticketon/transport"
)

// Consumer потребляет платежные события и двигает сагу билета.
// Доставка at-least-once: обработчики идемпотентны, события, которые
// откатили бы билет назад, отбрасываются. Некорректные события
// логируются и подтверждаются, чтобы не зациклить redelivery.
type Consumer struct {
	service *Service
	bus     transport.Subscriber
}

// NewConsumer создает новый потребитель платежных событий
func NewConsumer(service *Service, bus transport.Subscriber) *Consumer {
	return &Consumer{
		service: service,
		bus:     bus,
	}
}

// Start подписывается на платежные события
func (c *Consumer) Start(ctx context.Context) error {
	subjects := []string{
		string(domain.EventTypePaymentInitiated),
		string(domain.EventTypePaymentProcessed),
		string(domain.EventTypePaymentFailed),
		string(domain.EventTypePaymentRefunded),
	}
	for _, subject := range subjects {
		if err := c.bus.Subscribe(ctx, subject, c.handle); err != nil {
			return err
		}
	}
	return nil
}

// Stop отписывается от платежных событий
func (c *Consumer) Stop(ctx context.Context) error {
	subjects := []string{
		string(domain.EventTypePaymentInitiated),
		string(domain.EventTypePaymentProcessed),
		string(domain.EventTypePaymentFailed),
		string(domain.EventTypePaymentRefunded),
	}
	for _, subject := range subjects {
		if err := c.bus.Unsubscribe(subject); err != nil {
			return err
		}
	}
	return nil
}

func (c *Consumer) handle(ctx context.Context, msg *transport.Message) error {
	payload, envelope, err := domain.DecodeEvent(msg.Data)
	if err != nil {
		// Poison message: повторная доставка не поможет
		log.Printf("Discarding event on %s: %v", msg.Subject, err)
		return nil
	}

	var apply func(context.Context) error
	switch e := payload.(type) {
	case domain.PaymentInitiated:
		apply = func(ctx context.Context) error { return c.service.ApplyPaymentInitiated(ctx, e.TicketID) }
	case domain.PaymentProcessed:
		apply = func(ctx context.Context) error { return c.service.ApplyPaymentConfirmed(ctx, e.TicketID) }
	case domain.PaymentFailed:
		apply = func(ctx context.Context) error { return c.service.ApplyPaymentFailed(ctx, e.TicketID, e.Reason) }
	case domain.PaymentRefunded:
		apply = func(ctx context.Context) error { return c.service.ApplyPaymentRefunded(ctx, e.TicketID) }
	default:
		log.Printf("Discarding unexpected event %s on %s", envelope.EventType, msg.Subject)
		return nil
	}

	err = observability.TraceEvent(ctx, string(envelope.EventType), apply)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Билет чужого экземпляра еще не виден или удален: redelivery решит
			log.Printf("Ticket for event %s not found: %v", envelope.EventType, err)
		}
		return err
	}
	return nil
}
