package payments

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/akriventsev/ticketon/domain"
)

// ChargeResult результат обращения к платежному шлюзу
type ChargeResult struct {
	// Succeeded признак успешного списания
	Succeeded bool
	// ExternalReference ссылка на операцию на стороне шлюза
	ExternalReference string
	// FailureReason причина отказа при Succeeded == false
	FailureReason string
}

// PaymentGateway порт внешнего платежного шлюза
type PaymentGateway interface {
	// Charge выполняет списание по платежу
	Charge(ctx context.Context, payment *domain.Payment) (*ChargeResult, error)
}

// SimulatedGateway имитация платежного шлюза для разработки и стендов.
// Исход определяется SuccessRate, внешняя ссылка генерируется локально.
type SimulatedGateway struct {
	// SuccessRate доля успешных списаний в диапазоне [0, 1]
	SuccessRate float64
	// Latency искусственная задержка обращения к шлюзу
	Latency time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedGateway создает имитацию шлюза с заданной долей успехов
func NewSimulatedGateway(successRate float64) *SimulatedGateway {
	return &SimulatedGateway{
		SuccessRate: successRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// DefaultSimulatedGateway возвращает шлюз с долей успехов 0.9
func DefaultSimulatedGateway() *SimulatedGateway {
	return NewSimulatedGateway(0.9)
}

// Charge имитирует списание по платежу
func (g *SimulatedGateway) Charge(ctx context.Context, payment *domain.Payment) (*ChargeResult, error) {
	if g.Latency > 0 {
		select {
		case <-time.After(g.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	roll := g.rng.Float64()
	g.mu.Unlock()

	if roll >= g.SuccessRate {
		return &ChargeResult{
			Succeeded:     false,
			FailureReason: "Simulated payment failure for testing",
		}, nil
	}
	return &ChargeResult{
		Succeeded:         true,
		ExternalReference: fmt.Sprintf("pi_mock_%d", time.Now().UnixNano()),
	}, nil
}
