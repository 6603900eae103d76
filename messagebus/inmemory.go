// Package messagebus предоставляет адаптеры шины доменных событий для
// различных брокеров сообщений.
package messagebus

import (
	"context"
	"strings"
	"sync"

	"github.com/akriventsev/ticketon/transport"
)

// InMemoryConfig конфигурация для InMemory адаптера
type InMemoryConfig struct {
	BufferSize     int
	EnableOrdering bool // FIFO гарантии: синхронная доставка подписчикам
}

// DefaultInMemoryConfig возвращает конфигурацию InMemory по умолчанию
func DefaultInMemoryConfig() InMemoryConfig {
	return InMemoryConfig{
		BufferSize:     1000,
		EnableOrdering: false,
	}
}

// InMemoryAdapter реализация MessageBus в памяти. Используется в тестах
// и для одноузлового запуска без внешнего брокера.
type InMemoryAdapter struct {
	config      InMemoryConfig
	subscribers map[string][]transport.MessageHandler
	mu          sync.RWMutex
	running     bool
	wg          sync.WaitGroup
}

// NewInMemoryAdapter создает новый InMemory адаптер
func NewInMemoryAdapter(config InMemoryConfig) *InMemoryAdapter {
	return &InMemoryAdapter{
		config:      config,
		subscribers: make(map[string][]transport.MessageHandler),
	}
}

// Start запускает адаптер (реализация core.Lifecycle)
func (i *InMemoryAdapter) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.running = true
	return nil
}

// Stop останавливает адаптер и дожидается асинхронных доставок
func (i *InMemoryAdapter) Stop(ctx context.Context) error {
	i.mu.Lock()
	i.running = false
	i.mu.Unlock()

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (i *InMemoryAdapter) IsRunning() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.running
}

// Publish публикует сообщение всем подписчикам subject
func (i *InMemoryAdapter) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	i.mu.RLock()
	handlers := append([]transport.MessageHandler{}, i.subscribers[subject]...)
	// Wildcard подписки
	for pattern, h := range i.subscribers {
		if pattern != subject && matchSubject(subject, pattern) {
			handlers = append(handlers, h...)
		}
	}
	i.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	msg := &transport.Message{
		Subject: subject,
		Data:    data,
		Headers: headers,
	}

	for _, handler := range handlers {
		if i.config.EnableOrdering {
			_ = handler(ctx, msg)
		} else {
			i.wg.Add(1)
			go func(h transport.MessageHandler) {
				defer i.wg.Done()
				_ = h(ctx, msg)
			}(handler)
		}
	}

	return nil
}

// Subscribe подписывается на subject
func (i *InMemoryAdapter) Subscribe(ctx context.Context, subject string, handler transport.MessageHandler) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.subscribers[subject] = append(i.subscribers[subject], handler)
	return nil
}

// Unsubscribe отписывается от subject
func (i *InMemoryAdapter) Unsubscribe(subject string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	delete(i.subscribers, subject)
	return nil
}

// GetSubscriberCount возвращает количество подписчиков subject (для тестирования)
func (i *InMemoryAdapter) GetSubscriberCount(subject string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.subscribers[subject])
}

// matchSubject проверяет соответствие subject с wildcard паттерном.
// Поддерживаются NATS-style wildcards: * (один токен) и > (все токены)
func matchSubject(subject, pattern string) bool {
	subjectParts := strings.Split(subject, ".")
	patternParts := strings.Split(pattern, ".")

	if len(patternParts) > len(subjectParts) {
		return false
	}

	for idx, part := range patternParts {
		if part == ">" {
			return true
		}
		if part == "*" {
			continue
		}
		if part != subjectParts[idx] {
			return false
		}
	}

	return len(patternParts) == len(subjectParts)
}
