// Package transport предоставляет абстракции для работы с message bus
// и синхронной REST-границей платформы.
package transport

import (
	"context"
	"time"
)

// Message представляет сообщение в очереди
type Message struct {
	Subject string
	Data    []byte
	Headers map[string]string
}

// MessageHandler обработчик сообщений
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscriber подписчик на сообщения
type Subscriber interface {
	// Subscribe подписывается на subject и вызывает handler при получении сообщения
	Subscribe(ctx context.Context, subject string, handler MessageHandler) error
	// Unsubscribe отписывается от subject
	Unsubscribe(subject string) error
}

// Publisher публикатор сообщений
type Publisher interface {
	// Publish публикует сообщение в subject
	Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error
}

// MessageBus объединяет возможности публикации и подписки
type MessageBus interface {
	Publisher
	Subscriber
}

// RetryPolicy политика повторов для сообщений
type RetryPolicy interface {
	// ShouldRetry определяет, нужно ли повторить попытку
	ShouldRetry(attempt int, err error) bool
	// GetDelay возвращает задержку перед повтором
	GetDelay(attempt int) time.Duration
	// GetMaxAttempts возвращает максимальное количество попыток
	GetMaxAttempts() int
}

// ExponentialBackoffRetryPolicy политика повторов с экспоненциальной задержкой
type ExponentialBackoffRetryPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
}

// ShouldRetry определяет, нужно ли повторить попытку
func (p *ExponentialBackoffRetryPolicy) ShouldRetry(attempt int, err error) bool {
	return attempt < p.MaxAttempts && err != nil
}

// GetDelay возвращает задержку перед повтором
func (p *ExponentialBackoffRetryPolicy) GetDelay(attempt int) time.Duration {
	delay := time.Duration(float64(p.InitialDelay) * float64(attempt) * p.Multiplier)
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// GetMaxAttempts возвращает максимальное количество попыток
func (p *ExponentialBackoffRetryPolicy) GetMaxAttempts() int {
	return p.MaxAttempts
}

// DefaultRetryPolicy политика повторов по умолчанию для потребителей событий
func DefaultRetryPolicy() RetryPolicy {
	return &ExponentialBackoffRetryPolicy{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
	}
}
