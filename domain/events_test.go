package domain

import (
	"errors"
	"testing"
	"time"
)

func TestEncodeDecodeEvent_TicketBooked(t *testing.T) {
	original := TicketBooked{
		TicketID:   "ticket-1",
		EventID:    "event-1",
		UserID:     "user-1",
		Quantity:   2,
		TotalPrice: 199.98,
		TicketType: TicketTypeStandard,
		Timestamp:  time.Now().UTC(),
	}

	raw, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("Expected encoded event, got error: %v", err)
	}

	payload, envelope, err := DecodeEvent(raw)
	if err != nil {
		t.Fatalf("Expected decoded event, got error: %v", err)
	}
	if envelope.EventType != EventTypeTicketBooked {
		t.Errorf("Expected event type %s, got %s", EventTypeTicketBooked, envelope.EventType)
	}
	if envelope.AggregateID != "ticket-1" {
		t.Errorf("Expected aggregate ticket-1, got %s", envelope.AggregateID)
	}
	if envelope.EventID == "" {
		t.Error("Expected non-empty eventId")
	}

	booked, ok := payload.(TicketBooked)
	if !ok {
		t.Fatalf("Expected TicketBooked payload, got %T", payload)
	}
	if booked.TicketID != original.TicketID || booked.Quantity != original.Quantity {
		t.Errorf("Expected payload %+v, got %+v", original, booked)
	}
	if booked.TotalPrice != original.TotalPrice {
		t.Errorf("Expected totalPrice %.2f, got %.2f", original.TotalPrice, booked.TotalPrice)
	}
}

func TestDecodeEvent_UnknownType(t *testing.T) {
	raw := []byte(`{"eventId":"e-1","eventType":"ticket.teleported","occurredAt":"2025-01-01T00:00:00Z","aggregateId":"t-1","data":{"ticketId":"t-1"}}`)

	_, _, err := DecodeEvent(raw)
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Expected ErrUnknownEvent, got %v", err)
	}
}

func TestDecodeEvent_MalformedJSON(t *testing.T) {
	_, _, err := DecodeEvent([]byte(`{not json`))
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Expected ErrUnknownEvent, got %v", err)
	}
}

func TestDecodeEvent_UnknownPayloadField(t *testing.T) {
	// Лишние поля в нагрузке отвергаются, а не игнорируются
	raw := []byte(`{"eventId":"e-1","eventType":"payment.initiated","occurredAt":"2025-01-01T00:00:00Z","aggregateId":"t-1","data":{"ticketId":"t-1","paymentId":"p-1","bogus":true}}`)

	_, _, err := DecodeEvent(raw)
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Expected ErrUnknownEvent, got %v", err)
	}
}

func TestDecodeEvent_MissingRequiredFields(t *testing.T) {
	raw := []byte(`{"eventId":"e-1","eventType":"ticket.booked","occurredAt":"2025-01-01T00:00:00Z","aggregateId":"t-1","data":{"ticketId":"t-1","eventId":"","userId":"u-1","quantity":1}}`)

	_, _, err := DecodeEvent(raw)
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Expected ErrUnknownEvent for missing eventId, got %v", err)
	}
}

func TestDecodeEvent_EmptyData(t *testing.T) {
	raw := []byte(`{"eventId":"e-1","eventType":"payment.failed","occurredAt":"2025-01-01T00:00:00Z","aggregateId":"t-1"}`)

	_, _, err := DecodeEvent(raw)
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Expected ErrUnknownEvent for empty data, got %v", err)
	}
}

func TestEncodeEvent_InvalidPayload(t *testing.T) {
	_, err := EncodeEvent(TicketBooked{TicketID: "t-1"})
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Expected ErrUnknownEvent for invalid payload, got %v", err)
	}
}

func TestPaymentProcessed_ValidateStatus(t *testing.T) {
	payload := PaymentProcessed{
		TicketID:  "t-1",
		PaymentID: "p-1",
		Status:    PaymentStatusFailed,
	}
	if err := payload.Validate(); err == nil {
		t.Error("Expected validation error for non-CONFIRMED status")
	}

	payload.Status = PaymentStatusConfirmed
	if err := payload.Validate(); err != nil {
		t.Errorf("Expected valid payload, got error: %v", err)
	}
}
