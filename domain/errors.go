// Package domain предоставляет систему доменных ошибок.
package domain

import (
	"fmt"
)

// Коды доменных ошибок
const (
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeInsufficientCapacity = "INSUFFICIENT_CAPACITY"
	ErrCodeUpstreamUnavailable  = "UPSTREAM_UNAVAILABLE"
	ErrCodeDuplicatePayment     = "DUPLICATE_PAYMENT"
	ErrCodeInvalidAmount        = "INVALID_AMOUNT"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeUnknownEvent         = "UNKNOWN_EVENT"
)

// DomainError базовый тип доменной ошибки
type DomainError struct {
	Code    string
	Message string
	Cause   error
}

// Error реализует интерфейс error
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap возвращает причину ошибки
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is проверяет, соответствует ли ошибка коду
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e.Code == t.Code
	}
	return false
}

// Сентинелы для errors.Is: сравнение идет по коду, а не по указателю
var (
	ErrInvalidTransition    = &DomainError{Code: ErrCodeInvalidTransition, Message: "invalid status transition"}
	ErrInsufficientCapacity = &DomainError{Code: ErrCodeInsufficientCapacity, Message: "insufficient capacity"}
	ErrUpstreamUnavailable  = &DomainError{Code: ErrCodeUpstreamUnavailable, Message: "upstream service unavailable"}
	ErrDuplicatePayment     = &DomainError{Code: ErrCodeDuplicatePayment, Message: "payment already exists"}
	ErrInvalidAmount        = &DomainError{Code: ErrCodeInvalidAmount, Message: "amount must be greater than 0"}
	ErrNotFound             = &DomainError{Code: ErrCodeNotFound, Message: "entity not found"}
	ErrUnknownEvent         = &DomainError{Code: ErrCodeUnknownEvent, Message: "unknown or malformed event"}
)

// NewInvalidTransition создает ошибку недопустимого перехода статуса
func NewInvalidTransition[S ~string](entity string, from, to S) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("%s: invalid status transition from %s to %s", entity, from, to),
	}
}

// NewInsufficientCapacity создает ошибку нехватки мест
func NewInsufficientCapacity(eventID string, available, requested int) *DomainError {
	return &DomainError{
		Code:    ErrCodeInsufficientCapacity,
		Message: fmt.Sprintf("event %s: insufficient capacity, available: %d, requested: %d", eventID, available, requested),
	}
}

// NewUpstreamUnavailable создает ошибку недоступности внешнего сервиса
func NewUpstreamUnavailable(service string, cause error) *DomainError {
	return &DomainError{
		Code:    ErrCodeUpstreamUnavailable,
		Message: fmt.Sprintf("%s unavailable", service),
		Cause:   cause,
	}
}

// NewDuplicatePayment создает ошибку повторного создания платежа
func NewDuplicatePayment(ticketID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicatePayment,
		Message: fmt.Sprintf("payment already exists for ticket %s", ticketID),
	}
}

// NewInvalidAmount создает ошибку некорректной суммы платежа
func NewInvalidAmount(amount float64) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("amount must be greater than 0, got %.2f", amount),
	}
}

// NewNotFound создает ошибку отсутствия сущности
func NewNotFound(entity, id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %s not found", entity, id),
	}
}

// NewUnknownEvent создает ошибку неизвестного или некорректного события
func NewUnknownEvent(eventType string, cause error) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnknownEvent,
		Message: fmt.Sprintf("unknown or malformed event %q", eventType),
		Cause:   cause,
	}
}
