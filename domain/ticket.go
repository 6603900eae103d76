package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// TicketType тип билета
type TicketType string

const (
	TicketTypeVIP       TicketType = "VIP"
	TicketTypeStandard  TicketType = "STANDARD"
	TicketTypeEarlyBird TicketType = "EARLY_BIRD"
	TicketTypeFree      TicketType = "FREE"
)

// Ticket доменная сущность билета. Владелец - ticket-service: билет
// создается при бронировании и мутирует только через валидированные
// переходы статусов.
type Ticket struct {
	ID         string       `json:"id"`
	EventID    string       `json:"eventId"`
	UserID     string       `json:"userId"`
	TicketType TicketType   `json:"ticketType"`
	Quantity   int          `json:"quantity"`
	TotalPrice float64      `json:"totalPrice"`
	Status     TicketStatus `json:"status"`
	QRCode     string       `json:"qrCode,omitempty"`
	ExpiresAt  *time.Time   `json:"expiresAt,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// EntityID возвращает идентификатор сущности (реализация repository.Entity)
func (t *Ticket) EntityID() string {
	return t.ID
}

// ReservedTicketParams параметры создания бронирования
type ReservedTicketParams struct {
	EventID    string
	UserID     string
	TicketType TicketType
	Quantity   int
	UnitPrice  float64
	ExpiresAt  *time.Time
}

// NewReservedTicket создает билет в начальном статусе RESERVED.
// Количество нормализуется до минимум 1, итоговая цена округляется
// до двух знаков.
func NewReservedTicket(params ReservedTicketParams) *Ticket {
	quantity := params.Quantity
	if quantity < 1 {
		quantity = 1
	}

	now := time.Now().UTC()
	return &Ticket{
		ID:         uuid.New().String(),
		EventID:    params.EventID,
		UserID:     params.UserID,
		TicketType: params.TicketType,
		Quantity:   quantity,
		TotalPrice: RoundCurrency(float64(quantity) * params.UnitPrice),
		Status:     TicketStatusReserved,
		ExpiresAt:  params.ExpiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Transition переводит билет в новый статус после проверки таблицы
// переходов. При недопустимом переходе билет не изменяется.
func (t *Ticket) Transition(to TicketStatus) error {
	if !t.Status.CanTransition(to) {
		return NewInvalidTransition("ticket", t.Status, to)
	}
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// RoundCurrency округляет денежную сумму до двух знаков
func RoundCurrency(value float64) float64 {
	return math.Round(value*100) / 100
}
