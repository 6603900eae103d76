// Package ticketing реализует сагу бронирования билетов: допуск по
// вместимости, жизненный цикл билета и компенсации при сбоях оплаты.
package ticketing

import (
	"context"
	"sync"

	"github.com/akriventsev/ticketon/domain"
	"github.com/akriventsev/ticketon/repository"
)

// CapacityLedger решает, может ли быть допущено новое бронирование
// quantity мест события. Проверка и вставка билета сериализуются
// per-event: без этого два конкурентных бронирования могут оба пройти
// проверку и совместно продать больше мест, чем доступно.
type CapacityLedger struct {
	tickets repository.Repository[*domain.Ticket]
	locks   map[string]*sync.Mutex
	mu      sync.Mutex
}

// NewCapacityLedger создает новый леджер вместимости
func NewCapacityLedger(tickets repository.Repository[*domain.Ticket]) *CapacityLedger {
	return &CapacityLedger{
		tickets: tickets,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (l *CapacityLedger) eventLock(eventID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[eventID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[eventID] = lock
	}
	return lock
}

// CommittedSeats возвращает сумму quantity по активным билетам события
func (l *CapacityLedger) CommittedSeats(ctx context.Context, eventID string) (int, error) {
	active, err := l.tickets.Find(ctx, func(t *domain.Ticket) bool {
		return t.EventID == eventID && t.Status.IsActive()
	})
	if err != nil {
		return 0, err
	}

	committed := 0
	for _, t := range active {
		committed += t.Quantity
	}
	return committed, nil
}

// Admit выполняет допуск бронирования и вызывает insert под per-event
// блокировкой. availableSeats ведет event-service и может расходиться
// с локальной суммой committed при конкурентных записях из других точек
// входа, поэтому проверяются оба условия.
func (l *CapacityLedger) Admit(ctx context.Context, details *domain.EventDetails, quantity int, insert func(ctx context.Context) error) error {
	lock := l.eventLock(details.ID)
	lock.Lock()
	defer lock.Unlock()

	committed, err := l.CommittedSeats(ctx, details.ID)
	if err != nil {
		return err
	}

	if details.AvailableSeats < quantity || committed+quantity > details.AvailableSeats {
		remaining := details.AvailableSeats - committed
		if remaining < 0 {
			remaining = 0
		}
		return domain.NewInsufficientCapacity(details.ID, remaining, quantity)
	}

	return insert(ctx)
}
