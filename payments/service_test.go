package payments

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/akriventsev/ticketon/domain"
	"github.com/akriventsev/ticketon/messagebus"
	"github.com/akriventsev/ticketon/repository"
	"github.com/akriventsev/ticketon/transport"
)

// stubCharger детерминированный PaymentGateway для тестов
type stubCharger struct {
	mu     sync.Mutex
	result *ChargeResult
	err    error
	calls  int
}

func (g *stubCharger) Charge(ctx context.Context, payment *domain.Payment) (*ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func (g *stubCharger) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func newTestService(t *testing.T, gateway PaymentGateway) (*Service, *messagebus.InMemoryAdapter) {
	t.Helper()
	repo := repository.NewInMemoryRepository[*domain.Payment](repository.DefaultInMemoryConfig())
	bus := messagebus.NewInMemoryAdapter(messagebus.InMemoryConfig{EnableOrdering: true})
	_ = bus.Start(context.Background())
	publisher := messagebus.NewEventPublisher(bus, nil)
	return NewService(repo, gateway, publisher, nil), bus
}

func countEvents(t *testing.T, bus *messagebus.InMemoryAdapter, eventType domain.EventType) *int {
	t.Helper()
	var mu sync.Mutex
	count := 0
	_ = bus.Subscribe(context.Background(), string(eventType), func(ctx context.Context, msg *transport.Message) error {
		mu.Lock()
		defer mu.Unlock()
		count++
		return nil
	})
	return &count
}

func TestService_Create(t *testing.T) {
	service, _ := newTestService(t, &stubCharger{})
	ctx := context.Background()

	payment, err := service.Create(ctx, CreateParams{TicketID: "ticket-1", UserID: "user-1", Amount: 49.99})
	if err != nil {
		t.Fatalf("Expected payment, got %v", err)
	}
	if payment.Status != domain.PaymentStatusInitiated {
		t.Errorf("Expected INITIATED, got %s", payment.Status)
	}
	if payment.Currency != "USD" || payment.PaymentMethod != domain.PaymentMethodCard {
		t.Errorf("Expected defaults USD/CARD, got %s/%s", payment.Currency, payment.PaymentMethod)
	}

	// Второй платеж по тому же билету отклоняется
	_, err = service.Create(ctx, CreateParams{TicketID: "ticket-1", UserID: "user-1", Amount: 49.99})
	if !errors.Is(err, domain.ErrDuplicatePayment) {
		t.Fatalf("Expected ErrDuplicatePayment, got %v", err)
	}
}

func TestService_Create_InvalidAmount(t *testing.T) {
	service, _ := newTestService(t, &stubCharger{})

	for _, amount := range []float64{0, -10} {
		_, err := service.Create(context.Background(), CreateParams{TicketID: "ticket-1", UserID: "user-1", Amount: amount})
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("Amount %v: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestService_ProcessPaymentForTicket_Idempotent(t *testing.T) {
	service, bus := newTestService(t, &stubCharger{})
	ctx := context.Background()
	initiated := countEvents(t, bus, domain.EventTypePaymentInitiated)

	first, err := service.ProcessPaymentForTicket(ctx, "ticket-1", "user-1", 30)
	if err != nil {
		t.Fatalf("Expected payment, got %v", err)
	}

	// Повторная доставка ticket.booked возвращает тот же платеж
	second, err := service.ProcessPaymentForTicket(ctx, "ticket-1", "user-1", 30)
	if err != nil {
		t.Fatalf("Expected existing payment, got %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected same payment, got %s and %s", first.ID, second.ID)
	}
	if *initiated != 1 {
		t.Errorf("Expected exactly 1 payment.initiated, got %d", *initiated)
	}
}

func TestService_Process_Success(t *testing.T) {
	charger := &stubCharger{result: &ChargeResult{Succeeded: true, ExternalReference: "pi_mock_42"}}
	service, bus := newTestService(t, charger)
	ctx := context.Background()
	processed := countEvents(t, bus, domain.EventTypePaymentProcessed)

	payment, _ := service.Create(ctx, CreateParams{TicketID: "ticket-1", UserID: "user-1", Amount: 30})

	confirmed, err := service.Process(ctx, payment.ID)
	if err != nil {
		t.Fatalf("Expected confirmation, got %v", err)
	}
	if confirmed.Status != domain.PaymentStatusConfirmed {
		t.Errorf("Expected CONFIRMED, got %s", confirmed.Status)
	}
	if confirmed.ExternalReference != "pi_mock_42" {
		t.Errorf("Expected external reference, got %q", confirmed.ExternalReference)
	}
	if *processed != 1 {
		t.Errorf("Expected 1 payment.processed, got %d", *processed)
	}
}

func TestService_Process_Failure(t *testing.T) {
	charger := &stubCharger{result: &ChargeResult{Succeeded: false, FailureReason: "card declined"}}
	service, bus := newTestService(t, charger)
	ctx := context.Background()
	failed := countEvents(t, bus, domain.EventTypePaymentFailed)

	payment, _ := service.Create(ctx, CreateParams{TicketID: "ticket-1", UserID: "user-1", Amount: 30})

	got, err := service.Process(ctx, payment.ID)
	if err != nil {
		t.Fatalf("Expected failed payment, got error %v", err)
	}
	if got.Status != domain.PaymentStatusFailed {
		t.Errorf("Expected FAILED, got %s", got.Status)
	}
	if got.FailureReason != "card declined" {
		t.Errorf("Expected failure reason, got %q", got.FailureReason)
	}
	if *failed != 1 {
		t.Errorf("Expected 1 payment.failed, got %d", *failed)
	}
}

func TestService_Process_IllegalStateBeforeGatewayCall(t *testing.T) {
	charger := &stubCharger{result: &ChargeResult{Succeeded: true, ExternalReference: "pi_mock_1"}}
	service, _ := newTestService(t, charger)
	ctx := context.Background()

	payment, _ := service.Create(ctx, CreateParams{TicketID: "ticket-1", UserID: "user-1", Amount: 30})
	if _, err := service.Process(ctx, payment.ID); err != nil {
		t.Fatalf("Expected confirmation, got %v", err)
	}
	callsAfterFirst := charger.callCount()

	// Повторное проведение из CONFIRMED отклоняется до обращения к шлюзу
	_, err := service.Process(ctx, payment.ID)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got %v", err)
	}
	if charger.callCount() != callsAfterFirst {
		t.Errorf("Expected no gateway call on illegal state, got %d calls", charger.callCount())
	}
}

func TestService_Process_GatewayOutageRetry(t *testing.T) {
	charger := &stubCharger{err: errors.New("connection reset")}
	service, _ := newTestService(t, charger)
	ctx := context.Background()

	payment, _ := service.Create(ctx, CreateParams{TicketID: "ticket-1", UserID: "user-1", Amount: 30})

	_, err := service.Process(ctx, payment.ID)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("Expected ErrUpstreamUnavailable, got %v", err)
	}

	// Платеж остается в PROCESSING и допускает повтор
	stuck, _ := service.Get(ctx, payment.ID)
	if stuck.Status != domain.PaymentStatusProcessing {
		t.Fatalf("Expected PROCESSING after outage, got %s", stuck.Status)
	}

	charger.mu.Lock()
	charger.err = nil
	charger.result = &ChargeResult{Succeeded: true, ExternalReference: "pi_mock_2"}
	charger.mu.Unlock()

	confirmed, err := service.Process(ctx, payment.ID)
	if err != nil {
		t.Fatalf("Expected retry to confirm, got %v", err)
	}
	if confirmed.Status != domain.PaymentStatusConfirmed {
		t.Errorf("Expected CONFIRMED after retry, got %s", confirmed.Status)
	}
}

func TestService_Refund(t *testing.T) {
	charger := &stubCharger{result: &ChargeResult{Succeeded: true, ExternalReference: "pi_mock_3"}}
	service, bus := newTestService(t, charger)
	ctx := context.Background()
	refunded := countEvents(t, bus, domain.EventTypePaymentRefunded)

	payment, _ := service.Create(ctx, CreateParams{TicketID: "ticket-1", UserID: "user-1", Amount: 30})

	// Возврат до подтверждения недопустим
	if _, err := service.Refund(ctx, payment.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition for INITIATED refund, got %v", err)
	}

	_, _ = service.Process(ctx, payment.ID)
	got, err := service.Refund(ctx, payment.ID)
	if err != nil {
		t.Fatalf("Expected refund, got %v", err)
	}
	if got.Status != domain.PaymentStatusRefunded {
		t.Errorf("Expected REFUNDED, got %s", got.Status)
	}
	if *refunded != 1 {
		t.Errorf("Expected 1 payment.refunded, got %d", *refunded)
	}
}

func TestSimulatedGateway(t *testing.T) {
	ctx := context.Background()
	payment := &domain.Payment{ID: "pay-1", Amount: 30}

	always := NewSimulatedGateway(1.0)
	result, err := always.Charge(ctx, payment)
	if err != nil {
		t.Fatalf("Expected charge, got %v", err)
	}
	if !result.Succeeded || !strings.HasPrefix(result.ExternalReference, "pi_mock_") {
		t.Errorf("Expected pi_mock_ reference on success, got %+v", result)
	}

	never := NewSimulatedGateway(0.0)
	result, err = never.Charge(ctx, payment)
	if err != nil {
		t.Fatalf("Expected charge, got %v", err)
	}
	if result.Succeeded || result.FailureReason == "" {
		t.Errorf("Expected failure with reason, got %+v", result)
	}
}

func TestConsumer_TicketBookedCreatesPayment(t *testing.T) {
	service, bus := newTestService(t, &stubCharger{})
	ctx := context.Background()

	consumer := NewConsumer(service, bus)
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("Expected consumer to start, got %v", err)
	}
	defer func() { _ = consumer.Stop(ctx) }()

	booked := domain.TicketBooked{
		TicketID:   "ticket-1",
		EventID:    "event-1",
		UserID:     "user-1",
		Quantity:   2,
		TotalPrice: 99.98,
		TicketType: domain.TicketTypeStandard,
	}
	raw, err := domain.EncodeEvent(booked)
	if err != nil {
		t.Fatalf("Expected event to encode, got %v", err)
	}

	// Доставка дважды имитирует at-least-once шину
	for i := 0; i < 2; i++ {
		if err := bus.Publish(ctx, string(domain.EventTypeTicketBooked), raw, nil); err != nil {
			t.Fatalf("Delivery %d: expected publish, got %v", i+1, err)
		}
	}

	payment, err := service.FindByTicket(ctx, "ticket-1")
	if err != nil {
		t.Fatalf("Expected payment for ticket, got %v", err)
	}
	if payment.Amount != 99.98 || payment.Status != domain.PaymentStatusInitiated {
		t.Errorf("Unexpected payment: %+v", payment)
	}

	found, _ := service.FindByUser(ctx, "user-1")
	if len(found) != 1 {
		t.Errorf("Expected exactly 1 payment despite redelivery, got %d", len(found))
	}
}
