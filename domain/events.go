package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType тип доменного события
type EventType string

// Типы доменных событий платформы
const (
	EventTypeTicketBooked     EventType = "ticket.booked"
	EventTypeTicketCancelled  EventType = "ticket.cancelled"
	EventTypePaymentInitiated EventType = "payment.initiated"
	EventTypePaymentProcessed EventType = "payment.processed"
	EventTypePaymentFailed    EventType = "payment.failed"
	EventTypePaymentRefunded  EventType = "payment.refunded"
)

// EventPayload типизированная полезная нагрузка доменного события.
// Набор реализаций закрыт: декодер диспетчеризует строго по типу события
// и отвергает неизвестные типы вместо молчаливого пропуска.
type EventPayload interface {
	// EventType возвращает тип события
	EventType() EventType
	// AggregateID возвращает идентификатор агрегата события
	AggregateID() string
	// Validate проверяет обязательные поля полезной нагрузки
	Validate() error
}

// Envelope конверт доменного события на шине сообщений
type Envelope struct {
	EventID     string          `json:"eventId"`
	EventType   EventType       `json:"eventType"`
	OccurredAt  time.Time       `json:"occurredAt"`
	AggregateID string          `json:"aggregateId"`
	Data        json.RawMessage `json:"data"`
}

// TicketBooked событие успешного бронирования билета
type TicketBooked struct {
	TicketID   string     `json:"ticketId"`
	EventID    string     `json:"eventId"`
	UserID     string     `json:"userId"`
	Quantity   int        `json:"quantity"`
	TotalPrice float64    `json:"totalPrice"`
	TicketType TicketType `json:"ticketType"`
	Timestamp  time.Time  `json:"timestamp"`
}

// EventType возвращает тип события
func (e TicketBooked) EventType() EventType { return EventTypeTicketBooked }

// AggregateID возвращает идентификатор билета
func (e TicketBooked) AggregateID() string { return e.TicketID }

// Validate проверяет обязательные поля события
func (e TicketBooked) Validate() error {
	if e.TicketID == "" || e.EventID == "" || e.UserID == "" {
		return fmt.Errorf("ticket.booked: ticketId, eventId and userId are required")
	}
	if e.Quantity < 1 {
		return fmt.Errorf("ticket.booked: quantity must be at least 1, got %d", e.Quantity)
	}
	return nil
}

// TicketCancelled событие отмены билета (компенсация саги либо прямая команда)
type TicketCancelled struct {
	TicketID  string    `json:"ticketId"`
	EventID   string    `json:"eventId"`
	UserID    string    `json:"userId"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventType возвращает тип события
func (e TicketCancelled) EventType() EventType { return EventTypeTicketCancelled }

// AggregateID возвращает идентификатор билета
func (e TicketCancelled) AggregateID() string { return e.TicketID }

// Validate проверяет обязательные поля события
func (e TicketCancelled) Validate() error {
	if e.TicketID == "" || e.EventID == "" || e.UserID == "" {
		return fmt.Errorf("ticket.cancelled: ticketId, eventId and userId are required")
	}
	return nil
}

// PaymentInitiated событие создания платежа по бронированию
type PaymentInitiated struct {
	TicketID    string        `json:"ticketId"`
	PaymentID   string        `json:"paymentId"`
	UserID      string        `json:"userId"`
	Amount      float64       `json:"amount"`
	Method      PaymentMethod `json:"method"`
	InitiatedAt time.Time     `json:"initiatedAt"`
}

// EventType возвращает тип события
func (e PaymentInitiated) EventType() EventType { return EventTypePaymentInitiated }

// AggregateID возвращает идентификатор билета
func (e PaymentInitiated) AggregateID() string { return e.TicketID }

// Validate проверяет обязательные поля события
func (e PaymentInitiated) Validate() error {
	if e.TicketID == "" || e.PaymentID == "" {
		return fmt.Errorf("payment.initiated: ticketId and paymentId are required")
	}
	return nil
}

// PaymentProcessed событие успешного проведения платежа
type PaymentProcessed struct {
	TicketID    string        `json:"ticketId"`
	PaymentID   string        `json:"paymentId"`
	UserID      string        `json:"userId"`
	Amount      float64       `json:"amount"`
	Status      PaymentStatus `json:"status"`
	Method      PaymentMethod `json:"method"`
	ProcessedAt time.Time     `json:"processedAt"`
}

// EventType возвращает тип события
func (e PaymentProcessed) EventType() EventType { return EventTypePaymentProcessed }

// AggregateID возвращает идентификатор билета
func (e PaymentProcessed) AggregateID() string { return e.TicketID }

// Validate проверяет обязательные поля события
func (e PaymentProcessed) Validate() error {
	if e.TicketID == "" || e.PaymentID == "" {
		return fmt.Errorf("payment.processed: ticketId and paymentId are required")
	}
	if e.Status != PaymentStatusConfirmed {
		return fmt.Errorf("payment.processed: status must be %s, got %s", PaymentStatusConfirmed, e.Status)
	}
	return nil
}

// PaymentFailed событие неуспешного проведения платежа
type PaymentFailed struct {
	TicketID  string    `json:"ticketId"`
	PaymentID string    `json:"paymentId"`
	UserID    string    `json:"userId"`
	Amount    float64   `json:"amount"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failedAt"`
}

// EventType возвращает тип события
func (e PaymentFailed) EventType() EventType { return EventTypePaymentFailed }

// AggregateID возвращает идентификатор билета
func (e PaymentFailed) AggregateID() string { return e.TicketID }

// Validate проверяет обязательные поля события
func (e PaymentFailed) Validate() error {
	if e.TicketID == "" || e.PaymentID == "" {
		return fmt.Errorf("payment.failed: ticketId and paymentId are required")
	}
	return nil
}

// PaymentRefunded событие возврата платежа
type PaymentRefunded struct {
	TicketID   string    `json:"ticketId"`
	PaymentID  string    `json:"paymentId"`
	UserID     string    `json:"userId"`
	Amount     float64   `json:"amount"`
	RefundedAt time.Time `json:"refundedAt"`
}

// EventType возвращает тип события
func (e PaymentRefunded) EventType() EventType { return EventTypePaymentRefunded }

// AggregateID возвращает идентификатор билета
func (e PaymentRefunded) AggregateID() string { return e.TicketID }

// Validate проверяет обязательные поля события
func (e PaymentRefunded) Validate() error {
	if e.TicketID == "" || e.PaymentID == "" {
		return fmt.Errorf("payment.refunded: ticketId and paymentId are required")
	}
	return nil
}

// EncodeEvent упаковывает полезную нагрузку в конверт и сериализует его в JSON
func EncodeEvent(payload EventPayload) ([]byte, error) {
	if err := payload.Validate(); err != nil {
		return nil, NewUnknownEvent(string(payload.EventType()), err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := Envelope{
		EventID:     uuid.New().String(),
		EventType:   payload.EventType(),
		OccurredAt:  time.Now().UTC(),
		AggregateID: payload.AggregateID(),
		Data:        data,
	}
	return json.Marshal(envelope)
}

// DecodeEvent разбирает конверт и диспетчеризует полезную нагрузку по типу
// события. Неизвестный тип, лишние поля или невалидная нагрузка приводят
// к ошибке UNKNOWN_EVENT: потребитель отбрасывает такое событие сразу,
// а не на этапе обработки.
func DecodeEvent(raw []byte) (EventPayload, *Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, nil, NewUnknownEvent("", err)
	}
	if len(envelope.Data) == 0 {
		return nil, nil, NewUnknownEvent(string(envelope.EventType), fmt.Errorf("empty event data"))
	}

	var payload EventPayload
	switch envelope.EventType {
	case EventTypeTicketBooked:
		payload = &TicketBooked{}
	case EventTypeTicketCancelled:
		payload = &TicketCancelled{}
	case EventTypePaymentInitiated:
		payload = &PaymentInitiated{}
	case EventTypePaymentProcessed:
		payload = &PaymentProcessed{}
	case EventTypePaymentFailed:
		payload = &PaymentFailed{}
	case EventTypePaymentRefunded:
		payload = &PaymentRefunded{}
	default:
		return nil, nil, NewUnknownEvent(string(envelope.EventType), nil)
	}

	decoder := json.NewDecoder(bytes.NewReader(envelope.Data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(payload); err != nil {
		return nil, nil, NewUnknownEvent(string(envelope.EventType), err)
	}
	if err := payload.Validate(); err != nil {
		return nil, nil, NewUnknownEvent(string(envelope.EventType), err)
	}

	return dereferencePayload(payload), &envelope, nil
}

func dereferencePayload(payload EventPayload) EventPayload {
	switch p := payload.(type) {
	case *TicketBooked:
		return *p
	case *TicketCancelled:
		return *p
	case *PaymentInitiated:
		return *p
	case *PaymentProcessed:
		return *p
	case *PaymentFailed:
		return *p
	case *PaymentRefunded:
		return *p
	default:
		return payload
	}
}
