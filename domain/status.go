// Package domain предоставляет доменную модель платформы: сущности,
// машины состояний, доменные события и ошибки.
package domain

// EventStatus статус события
type EventStatus string

const (
	EventStatusDraft     EventStatus = "DRAFT"
	EventStatusPublished EventStatus = "PUBLISHED"
	EventStatusOngoing   EventStatus = "ONGOING"
	EventStatusCompleted EventStatus = "COMPLETED"
	EventStatusCancelled EventStatus = "CANCELLED"
)

// TicketStatus статус билета
type TicketStatus string

const (
	TicketStatusReserved       TicketStatus = "RESERVED"
	TicketStatusPendingPayment TicketStatus = "PENDING_PAYMENT"
	TicketStatusPaid           TicketStatus = "PAID"
	TicketStatusValidated      TicketStatus = "VALIDATED"
	TicketStatusUsed           TicketStatus = "USED"
	TicketStatusCancelled      TicketStatus = "CANCELLED"
	TicketStatusExpired        TicketStatus = "EXPIRED"
)

// PaymentStatus статус платежа
type PaymentStatus string

const (
	PaymentStatusInitiated  PaymentStatus = "INITIATED"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusConfirmed  PaymentStatus = "CONFIRMED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
)

// Таблицы переходов машин состояний. Терминальные статусы отображаются
// в пустое множество. Таблицы канонические: любая мутация статуса обязана
// пройти через CanTransition до записи.
var eventTransitions = map[EventStatus][]EventStatus{
	EventStatusDraft:     {EventStatusPublished, EventStatusCancelled},
	EventStatusPublished: {EventStatusOngoing, EventStatusCancelled},
	EventStatusOngoing:   {EventStatusCompleted, EventStatusCancelled},
	EventStatusCompleted: {},
	EventStatusCancelled: {},
}

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusReserved:       {TicketStatusPendingPayment, TicketStatusCancelled, TicketStatusExpired},
	TicketStatusPendingPayment: {TicketStatusPaid, TicketStatusCancelled, TicketStatusExpired},
	TicketStatusPaid:           {TicketStatusValidated, TicketStatusCancelled},
	TicketStatusValidated:      {TicketStatusUsed, TicketStatusCancelled},
	TicketStatusUsed:           {},
	TicketStatusCancelled:      {},
	TicketStatusExpired:        {},
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusInitiated:  {PaymentStatusProcessing, PaymentStatusCancelled},
	PaymentStatusProcessing: {PaymentStatusConfirmed, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusConfirmed:  {PaymentStatusRefunded},
	PaymentStatusFailed:     {},
	PaymentStatusRefunded:   {},
	PaymentStatusCancelled:  {},
}

// CanTransition проверяет допустимость перехода статуса события
func (s EventStatus) CanTransition(to EventStatus) bool {
	return containsStatus(eventTransitions[s], to)
}

// IsFinal проверяет, является ли статус события терминальным
func (s EventStatus) IsFinal() bool {
	targets, known := eventTransitions[s]
	return known && len(targets) == 0
}

// CanTransition проверяет допустимость перехода статуса билета
func (s TicketStatus) CanTransition(to TicketStatus) bool {
	return containsStatus(ticketTransitions[s], to)
}

// IsFinal проверяет, является ли статус билета терминальным
func (s TicketStatus) IsFinal() bool {
	targets, known := ticketTransitions[s]
	return known && len(targets) == 0
}

// CanTransition проверяет допустимость перехода статуса платежа
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	return containsStatus(paymentTransitions[s], to)
}

// IsFinal проверяет, является ли статус платежа терминальным
func (s PaymentStatus) IsFinal() bool {
	targets, known := paymentTransitions[s]
	return known && len(targets) == 0
}

// AllTicketStatuses возвращает все статусы билета
func AllTicketStatuses() []TicketStatus {
	return []TicketStatus{
		TicketStatusReserved,
		TicketStatusPendingPayment,
		TicketStatusPaid,
		TicketStatusValidated,
		TicketStatusUsed,
		TicketStatusCancelled,
		TicketStatusExpired,
	}
}

// AllPaymentStatuses возвращает все статусы платежа
func AllPaymentStatuses() []PaymentStatus {
	return []PaymentStatus{
		PaymentStatusInitiated,
		PaymentStatusProcessing,
		PaymentStatusConfirmed,
		PaymentStatusFailed,
		PaymentStatusRefunded,
		PaymentStatusCancelled,
	}
}

// AllEventStatuses возвращает все статусы события
func AllEventStatuses() []EventStatus {
	return []EventStatus{
		EventStatusDraft,
		EventStatusPublished,
		EventStatusOngoing,
		EventStatusCompleted,
		EventStatusCancelled,
	}
}

// ActiveTicketStatuses возвращает статусы, удерживающие места события.
// Набор фиксирован: CANCELLED и EXPIRED места не удерживают, USED удерживает.
func ActiveTicketStatuses() []TicketStatus {
	return []TicketStatus{
		TicketStatusReserved,
		TicketStatusPendingPayment,
		TicketStatusPaid,
		TicketStatusValidated,
		TicketStatusUsed,
	}
}

// IsActive проверяет, удерживает ли билет в данном статусе места события
func (s TicketStatus) IsActive() bool {
	return containsStatus(ActiveTicketStatuses(), s)
}

func containsStatus[S ~string](set []S, v S) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
