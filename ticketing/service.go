package ticketing

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/akriventsev/ticketon/domain"
	"github.com/akriventsev/ticketon/eventclient"
	"github.com/akriventsev/ticketon/messagebus"
	"github.com/akriventsev/ticketon/metrics"
	"github.com/akriventsev/ticketon/repository"
)

// Config конфигурация сервиса бронирования
type Config struct {
	// ReservationTTL время жизни неоплаченного бронирования.
	// 0 отключает установку expiresAt
	ReservationTTL time.Duration
}

// DefaultConfig возвращает конфигурацию сервиса по умолчанию
func DefaultConfig() Config {
	return Config{
		ReservationTTL: 15 * time.Minute,
	}
}

// Service сага бронирования. Создает билеты через допуск леджера,
// применяет платежные события и выполняет компенсации. Все мутации
// статуса одного билета сериализуются через per-ticket мьютекс: без
// него конкурирующая команда и платежное событие могут оба пройти
// проверку перехода и перезаписать результат друг друга.
type Service struct {
	config    Config
	tickets   repository.Repository[*domain.Ticket]
	ledger    *CapacityLedger
	gateway   eventclient.EventGateway
	publisher *messagebus.EventPublisher
	metrics   *metrics.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService создает новый сервис бронирования
func NewService(config Config, tickets repository.Repository[*domain.Ticket], gateway eventclient.EventGateway, publisher *messagebus.EventPublisher, m *metrics.Metrics) *Service {
	return &Service{
		config:    config,
		tickets:   tickets,
		ledger:    NewCapacityLedger(tickets),
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

// ReserveParams параметры бронирования
type ReserveParams struct {
	EventID    string
	UserID     string
	TicketType domain.TicketType
	Quantity   int
	UnitPrice  float64
}

// Reserve бронирует билеты. Чтение вместимости падает закрыто: при
// недоступности event-service билет не создается. После допуска билет
// сохраняется со статусом RESERVED, получает QR-код и публикуется
// событие ticket.booked.
func (s *Service) Reserve(ctx context.Context, params ReserveParams) (*domain.Ticket, error) {
	start := time.Now()

	details, err := s.gateway.GetEventDetails(ctx, params.EventID)
	if err != nil {
		s.recordReservation(ctx, params.EventID, start, false)
		return nil, err
	}

	quantity := params.Quantity
	if quantity < 1 {
		quantity = 1
	}

	var ticket *domain.Ticket
	err = s.ledger.Admit(ctx, details, quantity, func(ctx context.Context) error {
		var expiresAt *time.Time
		if s.config.ReservationTTL > 0 {
			t := time.Now().UTC().Add(s.config.ReservationTTL)
			expiresAt = &t
		}

		ticket = domain.NewReservedTicket(domain.ReservedTicketParams{
			EventID:    params.EventID,
			UserID:     params.UserID,
			TicketType: params.TicketType,
			Quantity:   quantity,
			UnitPrice:  params.UnitPrice,
			ExpiresAt:  expiresAt,
		})

		qr, err := domain.GenerateQRPayload(ticket.ID, ticket.EventID, ticket.UserID)
		if err != nil {
			return err
		}
		ticket.QRCode = qr

		return s.tickets.Save(ctx, ticket)
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordAdmissionRejection(ctx, params.EventID)
		}
		s.recordReservation(ctx, params.EventID, start, false)
		return nil, err
	}

	s.publisher.PublishLogged(ctx, domain.TicketBooked{
		TicketID:   ticket.ID,
		EventID:    ticket.EventID,
		UserID:     ticket.UserID,
		Quantity:   ticket.Quantity,
		TotalPrice: ticket.TotalPrice,
		TicketType: ticket.TicketType,
		Timestamp:  time.Now().UTC(),
	})

	if s.metrics != nil {
		s.metrics.IncrementActiveReservations(ctx)
	}
	s.recordReservation(ctx, params.EventID, start, true)
	return ticket, nil
}

// isActiveStatus сообщает, удерживает ли статус места за бронированием
func isActiveStatus(status domain.TicketStatus) bool {
	return status == domain.TicketStatusReserved || status == domain.TicketStatusPendingPayment
}

func (s *Service) trackStatusChange(ctx context.Context, from, to domain.TicketStatus) {
	if s.metrics == nil {
		return
	}
	if isActiveStatus(from) && !isActiveStatus(to) {
		s.metrics.DecrementActiveReservations(ctx)
	}
}

func (s *Service) recordReservation(ctx context.Context, eventID string, start time.Time, success bool) {
	if s.metrics != nil {
		s.metrics.RecordReservation(ctx, eventID, time.Since(start), success)
	}
}

// Get возвращает билет по ID. Ошибки хранилища, не являющиеся
// отсутствием билета, проходят как есть: отказ backend не превращается
// в 404.
func (s *Service) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFound("ticket", ticketID)
		}
		return nil, err
	}
	return ticket, nil
}

// FindByUser возвращает билеты пользователя, новые первыми
func (s *Service) FindByUser(ctx context.Context, userID string) ([]*domain.Ticket, error) {
	results, err := s.tickets.Find(ctx, func(t *domain.Ticket) bool {
		return t.UserID == userID
	})
	if err != nil {
		return nil, err
	}
	sortTicketsNewestFirst(results)
	return results, nil
}

// FindByEvent возвращает билеты события, новые первыми
func (s *Service) FindByEvent(ctx context.Context, eventID string) ([]*domain.Ticket, error) {
	results, err := s.tickets.Find(ctx, func(t *domain.Ticket) bool {
		return t.EventID == eventID
	})
	if err != nil {
		return nil, err
	}
	sortTicketsNewestFirst(results)
	return results, nil
}

// ApplyPaymentInitiated переводит билет в PENDING_PAYMENT. Повторная
// доставка события после перехода - no-op.
func (s *Service) ApplyPaymentInitiated(ctx context.Context, ticketID string) error {
	lock := s.ticketLock(ticketID)
	lock.Lock()
	defer lock.Unlock()

	ticket, err := s.Get(ctx, ticketID)
	if err != nil {
		return err
	}

	if !ticket.Status.CanTransition(domain.TicketStatusPendingPayment) {
		// Билет уже PENDING_PAYMENT или дальше: событие отброшено
		log.Printf("Ticket %s is %s, payment.initiated ignored", ticketID, ticket.Status)
		return nil
	}

	if err := ticket.Transition(domain.TicketStatusPendingPayment); err != nil {
		return err
	}
	return s.tickets.Save(ctx, ticket)
}

// ApplyPaymentConfirmed переводит билет в PAID и при отсутствии QR-кода
// генерирует его. Подтвержденный платеж по мертвому билету логируется
// и не восстанавливает билет: ticket-сторона владеет семантикой мест.
func (s *Service) ApplyPaymentConfirmed(ctx context.Context, ticketID string) error {
	lock := s.ticketLock(ticketID)
	lock.Lock()
	defer lock.Unlock()

	ticket, err := s.Get(ctx, ticketID)
	if err != nil {
		return err
	}

	if ticket.Status == domain.TicketStatusPaid {
		return s.ensureQRCode(ctx, ticket)
	}

	if !ticket.Status.CanTransition(domain.TicketStatusPaid) {
		log.Printf("Payment confirmed for ticket %s in status %s, manual review required", ticketID, ticket.Status)
		return nil
	}

	from := ticket.Status
	if err := ticket.Transition(domain.TicketStatusPaid); err != nil {
		return err
	}
	if ticket.QRCode == "" {
		qr, err := domain.GenerateQRPayload(ticket.ID, ticket.EventID, ticket.UserID)
		if err != nil {
			return err
		}
		ticket.QRCode = qr
	}
	if err := s.tickets.Save(ctx, ticket); err != nil {
		return err
	}
	s.trackStatusChange(ctx, from, domain.TicketStatusPaid)
	return nil
}

func (s *Service) ensureQRCode(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.QRCode != "" {
		return nil
	}
	qr, err := domain.GenerateQRPayload(ticket.ID, ticket.EventID, ticket.UserID)
	if err != nil {
		return err
	}
	ticket.QRCode = qr
	return s.tickets.Save(ctx, ticket)
}

// ApplyPaymentFailed компенсирует сагу: отменяет билет и публикует
// ticket.cancelled, возвращая места наблюдателям вместимости
func (s *Service) ApplyPaymentFailed(ctx context.Context, ticketID, reason string) error {
	return s.cancelForCompensation(ctx, ticketID, reason)
}

// ApplyPaymentRefunded отменяет билет после возврата платежа
func (s *Service) ApplyPaymentRefunded(ctx context.Context, ticketID string) error {
	return s.cancelForCompensation(ctx, ticketID, "payment refunded")
}

func (s *Service) cancelForCompensation(ctx context.Context, ticketID, reason string) error {
	lock := s.ticketLock(ticketID)
	lock.Lock()
	defer lock.Unlock()

	ticket, err := s.Get(ctx, ticketID)
	if err != nil {
		return err
	}

	if !ticket.Status.CanTransition(domain.TicketStatusCancelled) {
		log.Printf("Ticket %s is %s, compensation ignored", ticketID, ticket.Status)
		return nil
	}

	from := ticket.Status
	if err := ticket.Transition(domain.TicketStatusCancelled); err != nil {
		return err
	}
	if err := s.tickets.Save(ctx, ticket); err != nil {
		return err
	}
	s.trackStatusChange(ctx, from, domain.TicketStatusCancelled)

	s.publisher.PublishLogged(ctx, domain.TicketCancelled{
		TicketID:  ticket.ID,
		EventID:   ticket.EventID,
		UserID:    ticket.UserID,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// UpdateParams параметры обновления билета
type UpdateParams struct {
	Status   *domain.TicketStatus
	Quantity *int
}

// Update обновляет билет прямой командой. Смена статуса проходит
// проверку таблицы переходов, количество не может быть меньше 1.
func (s *Service) Update(ctx context.Context, ticketID string, params UpdateParams) (*domain.Ticket, error) {
	lock := s.ticketLock(ticketID)
	lock.Lock()
	defer lock.Unlock()

	ticket, err := s.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if params.Quantity != nil {
		if *params.Quantity < 1 {
			q := 1
			params.Quantity = &q
		}
		ticket.Quantity = *params.Quantity
	}

	from := ticket.Status
	if params.Status != nil && *params.Status != ticket.Status {
		if err := ticket.Transition(*params.Status); err != nil {
			return nil, err
		}
	} else {
		ticket.UpdatedAt = time.Now().UTC()
	}

	if err := s.tickets.Save(ctx, ticket); err != nil {
		return nil, err
	}
	s.trackStatusChange(ctx, from, ticket.Status)
	return ticket, nil
}

// Cancel отменяет билет прямой командой и публикует ticket.cancelled
func (s *Service) Cancel(ctx context.Context, ticketID, reason string) (*domain.Ticket, error) {
	lock := s.ticketLock(ticketID)
	lock.Lock()
	defer lock.Unlock()

	ticket, err := s.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	from := ticket.Status
	if err := ticket.Transition(domain.TicketStatusCancelled); err != nil {
		return nil, err
	}
	if err := s.tickets.Save(ctx, ticket); err != nil {
		return nil, err
	}
	s.trackStatusChange(ctx, from, domain.TicketStatusCancelled)

	s.publisher.PublishLogged(ctx, domain.TicketCancelled{
		TicketID:  ticket.ID,
		EventID:   ticket.EventID,
		UserID:    ticket.UserID,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
	return ticket, nil
}

// Remove удаляет билет
func (s *Service) Remove(ctx context.Context, ticketID string) error {
	lock := s.ticketLock(ticketID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewNotFound("ticket", ticketID)
		}
		return err
	}
	return nil
}

// expireTicket переводит просроченный билет в EXPIRED. Статус и срок
// перепроверяются под замком: к моменту захвата билет мог быть оплачен
// или отменен.
func (s *Service) expireTicket(ctx context.Context, ticketID string) (bool, error) {
	lock := s.ticketLock(ticketID)
	lock.Lock()
	defer lock.Unlock()

	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return false, err
	}
	if !isActiveStatus(ticket.Status) {
		return false, nil
	}
	if ticket.ExpiresAt == nil || ticket.ExpiresAt.After(time.Now().UTC()) {
		return false, nil
	}

	from := ticket.Status
	if err := ticket.Transition(domain.TicketStatusExpired); err != nil {
		return false, err
	}
	if err := s.tickets.Save(ctx, ticket); err != nil {
		return false, err
	}
	s.trackStatusChange(ctx, from, domain.TicketStatusExpired)
	return true, nil
}

// ValidateQR проверяет QR-код и возвращает его содержимое
func (s *Service) ValidateQR(ctx context.Context, raw string) (*domain.QRPayload, error) {
	payload, err := domain.ValidateQRPayload(raw)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, payload.TicketID); err != nil {
		return nil, err
	}
	return payload, nil
}

// Ledger возвращает леджер вместимости сервиса
func (s *Service) Ledger() *CapacityLedger {
	return s.ledger
}

func sortTicketsNewestFirst(tickets []*domain.Ticket) {
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})
}
