package domain

import (
	"errors"
	"testing"
)

func TestNewReservedTicket(t *testing.T) {
	ticket := NewReservedTicket(ReservedTicketParams{
		EventID:    "event-1",
		UserID:     "user-1",
		TicketType: TicketTypeVIP,
		Quantity:   3,
		UnitPrice:  33.333,
	})

	if ticket.ID == "" {
		t.Error("Expected non-empty ticket ID")
	}
	if ticket.Status != TicketStatusReserved {
		t.Errorf("Expected status %s, got %s", TicketStatusReserved, ticket.Status)
	}
	if ticket.TotalPrice != 100.00 {
		t.Errorf("Expected totalPrice 100.00, got %v", ticket.TotalPrice)
	}
	if ticket.CreatedAt.IsZero() || ticket.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set")
	}
}

func TestNewReservedTicket_QuantityClamp(t *testing.T) {
	ticket := NewReservedTicket(ReservedTicketParams{
		EventID:   "event-1",
		UserID:    "user-1",
		Quantity:  0,
		UnitPrice: 10,
	})
	if ticket.Quantity != 1 {
		t.Errorf("Expected quantity clamped to 1, got %d", ticket.Quantity)
	}
	if ticket.TotalPrice != 10.00 {
		t.Errorf("Expected totalPrice 10.00, got %v", ticket.TotalPrice)
	}
}

func TestRoundCurrency(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{10.005, 10.01},
		{10.004, 10.0},
		{0, 0},
		{99.999, 100.0},
	}
	for _, c := range cases {
		if got := RoundCurrency(c.in); got != c.want {
			t.Errorf("RoundCurrency(%v): expected %v, got %v", c.in, c.want, got)
		}
	}
}

func TestNewInitiatedPayment_InvalidAmount(t *testing.T) {
	for _, amount := range []float64{0, -5} {
		_, err := NewInitiatedPayment(InitiatedPaymentParams{
			TicketID: "ticket-1",
			UserID:   "user-1",
			Amount:   amount,
		})
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount=%v: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestNewInitiatedPayment_Defaults(t *testing.T) {
	payment, err := NewInitiatedPayment(InitiatedPaymentParams{
		TicketID: "ticket-1",
		UserID:   "user-1",
		Amount:   49.999,
	})
	if err != nil {
		t.Fatalf("Expected payment, got error: %v", err)
	}
	if payment.Currency != "USD" {
		t.Errorf("Expected default currency USD, got %s", payment.Currency)
	}
	if payment.PaymentMethod != PaymentMethodCard {
		t.Errorf("Expected default method CARD, got %s", payment.PaymentMethod)
	}
	if payment.Amount != 50.00 {
		t.Errorf("Expected rounded amount 50.00, got %v", payment.Amount)
	}
	if payment.Status != PaymentStatusInitiated {
		t.Errorf("Expected status %s, got %s", PaymentStatusInitiated, payment.Status)
	}
}

func TestGenerateValidateQRPayload(t *testing.T) {
	raw, err := GenerateQRPayload("ticket-1", "event-1", "user-1")
	if err != nil {
		t.Fatalf("Expected qr payload, got error: %v", err)
	}

	payload, err := ValidateQRPayload(raw)
	if err != nil {
		t.Fatalf("Expected valid payload, got error: %v", err)
	}
	if payload.TicketID != "ticket-1" || payload.EventID != "event-1" || payload.UserID != "user-1" {
		t.Errorf("Unexpected payload: %+v", payload)
	}
	if payload.Timestamp.IsZero() {
		t.Error("Expected non-zero timestamp")
	}
}

func TestValidateQRPayload_Invalid(t *testing.T) {
	if _, err := ValidateQRPayload("not json"); err == nil {
		t.Error("Expected error for malformed payload")
	}
	if _, err := ValidateQRPayload(`{"ticketId":"t-1"}`); err == nil {
		t.Error("Expected error for incomplete payload")
	}
	if _, err := GenerateQRPayload("", "event-1", "user-1"); err == nil {
		t.Error("Expected error for empty ticketId")
	}
}
