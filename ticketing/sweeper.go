package ticketing

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/akriventsev/ticketon/domain"
)

// ExpirySweeper периодически переводит просроченные бронирования в
// EXPIRED, освобождая их места в сумме леджера. Затрагиваются только
// RESERVED и PENDING_PAYMENT билеты с истекшим expiresAt. Переходы
// идут через сервис и его per-ticket замки, чтобы уборка не
// соревновалась с командами и платежными событиями.
type ExpirySweeper struct {
	service  *Service
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewExpirySweeper создает новый sweeper просроченных бронирований
func NewExpirySweeper(service *Service, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpirySweeper{
		service:  service,
		interval: interval,
	}
}

// Start запускает периодическую уборку (реализация core.Lifecycle)
func (s *ExpirySweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if n, err := s.SweepOnce(runCtx); err != nil {
					log.Printf("Expiry sweep failed: %v", err)
				} else if n > 0 {
					log.Printf("Expired %d stale reservations", n)
				}
			}
		}
	}()

	return nil
}

// Stop останавливает sweeper (реализация core.Lifecycle)
func (s *ExpirySweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.cancel()
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.running = false
	return nil
}

// IsRunning проверяет, запущен ли sweeper (реализация core.Lifecycle)
func (s *ExpirySweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SweepOnce выполняет один проход уборки и возвращает число
// просроченных билетов
func (s *ExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	stale, err := s.service.tickets.Find(ctx, func(t *domain.Ticket) bool {
		if t.ExpiresAt == nil {
			return false
		}
		if !isActiveStatus(t.Status) {
			return false
		}
		return t.ExpiresAt.Before(now)
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, ticket := range stale {
		ok, err := s.service.expireTicket(ctx, ticket.ID)
		if err != nil {
			log.Printf("Failed to expire ticket %s: %v", ticket.ID, err)
			continue
		}
		if ok {
			expired++
		}
	}

	return expired, nil
}
