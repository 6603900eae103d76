package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethod способ оплаты
type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodWallet       PaymentMethod = "WALLET"
)

// Payment доменная сущность платежа. Владелец - payment-service.
// Один билет имеет не более одного платежа.
type Payment struct {
	ID                string        `json:"id"`
	TicketID          string        `json:"ticketId"`
	UserID            string        `json:"userId"`
	Amount            float64       `json:"amount"`
	Currency          string        `json:"currency"`
	Status            PaymentStatus `json:"status"`
	PaymentMethod     PaymentMethod `json:"paymentMethod"`
	ExternalReference string        `json:"externalReference,omitempty"`
	FailureReason     string        `json:"failureReason,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// EntityID возвращает идентификатор сущности (реализация repository.Entity)
func (p *Payment) EntityID() string {
	return p.ID
}

// InitiatedPaymentParams параметры создания платежа
type InitiatedPaymentParams struct {
	TicketID      string
	UserID        string
	Amount        float64
	Currency      string
	PaymentMethod PaymentMethod
}

// NewInitiatedPayment создает платеж в начальном статусе INITIATED.
// Сумма обязана быть строго положительной, валюта по умолчанию USD.
func NewInitiatedPayment(params InitiatedPaymentParams) (*Payment, error) {
	if params.Amount <= 0 {
		return nil, NewInvalidAmount(params.Amount)
	}

	currency := params.Currency
	if currency == "" {
		currency = "USD"
	}
	method := params.PaymentMethod
	if method == "" {
		method = PaymentMethodCard
	}

	now := time.Now().UTC()
	return &Payment{
		ID:            uuid.New().String(),
		TicketID:      params.TicketID,
		UserID:        params.UserID,
		Amount:        RoundCurrency(params.Amount),
		Currency:      currency,
		Status:        PaymentStatusInitiated,
		PaymentMethod: method,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Transition переводит платеж в новый статус после проверки таблицы
// переходов. При недопустимом переходе платеж не изменяется.
func (p *Payment) Transition(to PaymentStatus) error {
	if !p.Status.CanTransition(to) {
		return NewInvalidTransition("payment", p.Status, to)
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	return nil
}
