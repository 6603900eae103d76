package payments

import (
	"context"
	"log"

	"github.com/akriventsev/ticketon/domain"
	"github.com/akriventsev/ticketon/observability"
	"github.com/akriventsev/ticketon/transport"
)

// Consumer потребляет ticket.booked и создает платежи по бронированиям
type Consumer struct {
	service *Service
	bus     transport.Subscriber
}

// NewConsumer создает потребителя событий бронирования
func NewConsumer(service *Service, bus transport.Subscriber) *Consumer {
	return &Consumer{
		service: service,
		bus:     bus,
	}
}

// Start подписывает потребителя на события бронирования
func (c *Consumer) Start(ctx context.Context) error {
	return c.bus.Subscribe(ctx, string(domain.EventTypeTicketBooked), c.handle)
}

// Stop отписывает потребителя от событий бронирования
func (c *Consumer) Stop(ctx context.Context) error {
	return c.bus.Unsubscribe(string(domain.EventTypeTicketBooked))
}

func (c *Consumer) handle(ctx context.Context, msg *transport.Message) error {
	payload, envelope, err := domain.DecodeEvent(msg.Data)
	if err != nil {
		// Poison message: повторная доставка не поможет
		log.Printf("Discarding event on %s: %v", msg.Subject, err)
		return nil
	}

	booked, ok := payload.(domain.TicketBooked)
	if !ok {
		log.Printf("Discarding unexpected event %s on %s", envelope.EventType, msg.Subject)
		return nil
	}

	return observability.TraceEvent(ctx, string(envelope.EventType), func(ctx context.Context) error {
		_, err := c.service.ProcessPaymentForTicket(ctx, booked.TicketID, booked.UserID, booked.TotalPrice)
		return err
	})
}
