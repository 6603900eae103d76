package payments

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/akriventsev/ticketon/domain"
	"github.com/akriventsev/ticketon/messagebus"
	"github.com/akriventsev/ticketon/metrics"
	"github.com/akriventsev/ticketon/repository"
)

// Service оркестрирует жизненный цикл платежа: создание по событию
// ticket.booked, проведение через платежный шлюз и возврат.
// Инвариант "один билет - один платеж" обеспечивается проверкой
// существующего платежа под блокировкой по ticketId.
type Service struct {
	payments  repository.Repository[*domain.Payment]
	gateway   PaymentGateway
	publisher *messagebus.EventPublisher
	metrics   *metrics.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService создает сервис платежей
func NewService(payments repository.Repository[*domain.Payment], gateway PaymentGateway, publisher *messagebus.EventPublisher, m *metrics.Metrics) *Service {
	return &Service{
		payments:  payments,
		gateway:   gateway,
		publisher: publisher,
		metrics:   m,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *Service) ticketLock(ticketID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[ticketID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[ticketID] = lock
	}
	return lock
}

// CreateParams параметры создания платежа
type CreateParams struct {
	TicketID      string
	UserID        string
	Amount        float64
	Currency      string
	PaymentMethod domain.PaymentMethod
}

// Create создает платеж в статусе INITIATED. Повторный платеж по тому же
// билету отклоняется с DuplicatePayment, сумма обязана быть положительной.
func (s *Service) Create(ctx context.Context, params CreateParams) (*domain.Payment, error) {
	lock := s.ticketLock(params.TicketID)
	lock.Lock()
	defer lock.Unlock()
	return s.createLocked(ctx, params)
}

func (s *Service) createLocked(ctx context.Context, params CreateParams) (*domain.Payment, error) {
	existing, err := s.findByTicketLocked(ctx, params.TicketID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.NewDuplicatePayment(params.TicketID)
	}

	payment, err := domain.NewInitiatedPayment(domain.InitiatedPaymentParams{
		TicketID:      params.TicketID,
		UserID:        params.UserID,
		Amount:        params.Amount,
		Currency:      params.Currency,
		PaymentMethod: params.PaymentMethod,
	})
	if err != nil {
		return nil, err
	}
	if err := s.payments.Save(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// ProcessPaymentForTicket идемпотентная точка входа, управляемая потреблением
// ticket.booked. Существующий платеж возвращается как есть: повторная
// доставка события не создает второй платеж и не считается ошибкой.
func (s *Service) ProcessPaymentForTicket(ctx context.Context, ticketID, userID string, amount float64) (*domain.Payment, error) {
	lock := s.ticketLock(ticketID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.findByTicketLocked(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	payment, err := s.createLocked(ctx, CreateParams{
		TicketID: ticketID,
		UserID:   userID,
		Amount:   amount,
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishLogged(ctx, domain.PaymentInitiated{
		TicketID:    payment.TicketID,
		PaymentID:   payment.ID,
		UserID:      payment.UserID,
		Amount:      payment.Amount,
		Method:      payment.PaymentMethod,
		InitiatedAt: payment.CreatedAt,
	})
	return payment, nil
}

// Process проводит платеж через шлюз. Допустимые исходные статусы:
// INITIATED (обычный путь) и PROCESSING (повтор после транспортного сбоя
// шлюза). Недопустимый статус отклоняется до обращения к шлюзу.
func (s *Service) Process(ctx context.Context, paymentID string) (*domain.Payment, error) {
	start := time.Now()

	payment, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case domain.PaymentStatusInitiated:
		if err := payment.Transition(domain.PaymentStatusProcessing); err != nil {
			return nil, err
		}
		if err := s.payments.Save(ctx, payment); err != nil {
			return nil, err
		}
	case domain.PaymentStatusProcessing:
		// Повтор после сбоя связи со шлюзом
	default:
		return nil, domain.NewInvalidTransition("payment", payment.Status, domain.PaymentStatusProcessing)
	}

	result, err := s.gateway.Charge(ctx, payment)
	if err != nil {
		// Платеж остается в PROCESSING, вызов можно повторить
		return nil, domain.NewUpstreamUnavailable("payment-gateway", err)
	}

	if result.Succeeded {
		if err := payment.Transition(domain.PaymentStatusConfirmed); err != nil {
			return nil, err
		}
		payment.ExternalReference = result.ExternalReference
		if err := s.payments.Save(ctx, payment); err != nil {
			return nil, err
		}
		s.recordPayment(ctx, string(domain.PaymentStatusConfirmed), start)
		s.publisher.PublishLogged(ctx, domain.PaymentProcessed{
			TicketID:    payment.TicketID,
			PaymentID:   payment.ID,
			UserID:      payment.UserID,
			Amount:      payment.Amount,
			Status:      domain.PaymentStatusConfirmed,
			Method:      payment.PaymentMethod,
			ProcessedAt: payment.UpdatedAt,
		})
		return payment, nil
	}

	if err := payment.Transition(domain.PaymentStatusFailed); err != nil {
		return nil, err
	}
	payment.FailureReason = result.FailureReason
	if err := s.payments.Save(ctx, payment); err != nil {
		return nil, err
	}
	s.recordPayment(ctx, string(domain.PaymentStatusFailed), start)
	s.publisher.PublishLogged(ctx, domain.PaymentFailed{
		TicketID:  payment.TicketID,
		PaymentID: payment.ID,
		UserID:    payment.UserID,
		Amount:    payment.Amount,
		Reason:    payment.FailureReason,
		FailedAt:  payment.UpdatedAt,
	})
	return payment, nil
}

func (s *Service) recordPayment(ctx context.Context, status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordPayment(ctx, status, time.Since(start))
	}
}

// Refund возвращает платеж. Допустим только из статуса CONFIRMED.
func (s *Service) Refund(ctx context.Context, paymentID string) (*domain.Payment, error) {
	payment, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := payment.Transition(domain.PaymentStatusRefunded); err != nil {
		return nil, err
	}
	if err := s.payments.Save(ctx, payment); err != nil {
		return nil, err
	}
	s.publisher.PublishLogged(ctx, domain.PaymentRefunded{
		TicketID:   payment.TicketID,
		PaymentID:  payment.ID,
		UserID:     payment.UserID,
		Amount:     payment.Amount,
		RefundedAt: payment.UpdatedAt,
	})
	return payment, nil
}

// Cancel отменяет платеж до завершения проведения
func (s *Service) Cancel(ctx context.Context, paymentID string) (*domain.Payment, error) {
	payment, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := payment.Transition(domain.PaymentStatusCancelled); err != nil {
		return nil, err
	}
	if err := s.payments.Save(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// Get возвращает платеж по идентификатору
func (s *Service) Get(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return s.payments.FindByID(ctx, paymentID)
}

// FindByTicket возвращает платеж по идентификатору билета
func (s *Service) FindByTicket(ctx context.Context, ticketID string) (*domain.Payment, error) {
	payment, err := s.findByTicketLocked(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.NewNotFound("payment", ticketID)
	}
	return payment, nil
}

// FindByUser возвращает платежи пользователя, новые первыми
func (s *Service) FindByUser(ctx context.Context, userID string) ([]*domain.Payment, error) {
	found, err := s.payments.Find(ctx, func(p *domain.Payment) bool {
		return p.UserID == userID
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(found, func(i, j int) bool {
		return found[i].CreatedAt.After(found[j].CreatedAt)
	})
	return found, nil
}

func (s *Service) findByTicketLocked(ctx context.Context, ticketID string) (*domain.Payment, error) {
	found, err := s.payments.Find(ctx, func(p *domain.Payment) bool {
		return p.TicketID == ticketID
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	if len(found) > 1 {
		log.Printf("Ticket %s has %d payments, returning the newest", ticketID, len(found))
		sort.Slice(found, func(i, j int) bool {
			return found[i].CreatedAt.After(found[j].CreatedAt)
		})
	}
	return found[0], nil
}
