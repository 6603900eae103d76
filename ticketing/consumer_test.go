package ticketing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/akriventsev/ticketon/domain"
	"github.com/akriventsev/ticketon/transport"
)

func TestConsumer_PaymentEventsDriveSaga(t *testing.T) {
	gateway := &stubGateway{details: map[string]*domain.EventDetails{
		"event-1": {ID: "event-1", Capacity: 10, AvailableSeats: 10, Status: domain.EventStatusPublished},
	}}
	service, _, bus := newTestService(t, gateway)
	ctx := context.Background()

	consumer := NewConsumer(service, bus)
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("Expected consumer to start, got %v", err)
	}
	defer func() { _ = consumer.Stop(ctx) }()

	ticket, err := service.Reserve(ctx, ReserveParams{EventID: "event-1", UserID: "user-1", Quantity: 1, UnitPrice: 30})
	if err != nil {
		t.Fatalf("Expected reservation, got %v", err)
	}

	publish := func(payload domain.EventPayload) {
		t.Helper()
		raw, err := domain.EncodeEvent(payload)
		if err != nil {
			t.Fatalf("Expected event to encode, got %v", err)
		}
		if err := bus.Publish(ctx, string(payload.EventType()), raw, nil); err != nil {
			t.Fatalf("Expected publish, got %v", err)
		}
	}

	publish(domain.PaymentInitiated{
		TicketID:    ticket.ID,
		PaymentID:   "pay-1",
		UserID:      "user-1",
		Amount:      30,
		Method:      domain.PaymentMethodCard,
		InitiatedAt: time.Now().UTC(),
	})
	got, _ := service.Get(ctx, ticket.ID)
	if got.Status != domain.TicketStatusPendingPayment {
		t.Fatalf("Expected PENDING_PAYMENT after payment.initiated, got %s", got.Status)
	}

	publish(domain.PaymentProcessed{
		TicketID:    ticket.ID,
		PaymentID:   "pay-1",
		UserID:      "user-1",
		Amount:      30,
		Status:      domain.PaymentStatusConfirmed,
		Method:      domain.PaymentMethodCard,
		ProcessedAt: time.Now().UTC(),
	})
	got, _ = service.Get(ctx, ticket.ID)
	if got.Status != domain.TicketStatusPaid {
		t.Fatalf("Expected PAID after payment.processed, got %s", got.Status)
	}
	if got.QRCode == "" {
		t.Error("Expected QR code after payment confirmation")
	}
}

func TestConsumer_PaymentFailedCompensates(t *testing.T) {
	gateway := &stubGateway{details: map[string]*domain.EventDetails{
		"event-1": {ID: "event-1", Capacity: 10, AvailableSeats: 10, Status: domain.EventStatusPublished},
	}}
	service, _, bus := newTestService(t, gateway)
	ctx := context.Background()

	consumer := NewConsumer(service, bus)
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("Expected consumer to start, got %v", err)
	}
	defer func() { _ = consumer.Stop(ctx) }()

	ticket, _ := service.Reserve(ctx, ReserveParams{EventID: "event-1", UserID: "user-1", Quantity: 1, UnitPrice: 30})
	_ = service.ApplyPaymentInitiated(ctx, ticket.ID)

	raw, err := domain.EncodeEvent(domain.PaymentFailed{
		TicketID:  ticket.ID,
		PaymentID: "pay-1",
		UserID:    "user-1",
		Amount:    30,
		Reason:    "card declined",
		FailedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Expected event to encode, got %v", err)
	}
	if err := bus.Publish(ctx, string(domain.EventTypePaymentFailed), raw, nil); err != nil {
		t.Fatalf("Expected publish, got %v", err)
	}

	got, _ := service.Get(ctx, ticket.ID)
	if got.Status != domain.TicketStatusCancelled {
		t.Fatalf("Expected CANCELLED after payment.failed, got %s", got.Status)
	}
}

func TestConsumer_HandleDeliveryPolicy(t *testing.T) {
	gateway := &stubGateway{details: map[string]*domain.EventDetails{}}
	service, _, bus := newTestService(t, gateway)
	ctx := context.Background()
	consumer := NewConsumer(service, bus)

	// Недекодируемое сообщение подтверждается без ошибки
	poison := &transport.Message{Subject: string(domain.EventTypePaymentProcessed), Data: []byte("{not json")}
	if err := consumer.handle(ctx, poison); err != nil {
		t.Errorf("Expected poison message to be discarded, got %v", err)
	}

	// Событие по неизвестному билету возвращается на redelivery
	raw, err := domain.EncodeEvent(domain.PaymentInitiated{
		TicketID:    "missing-ticket",
		PaymentID:   "pay-1",
		InitiatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Expected event to encode, got %v", err)
	}
	msg := &transport.Message{Subject: string(domain.EventTypePaymentInitiated), Data: raw}
	if err := consumer.handle(ctx, msg); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for redelivery, got %v", err)
	}
}
