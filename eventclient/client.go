// Package eventclient реализует синхронный клиент event-service.
// Клиент никогда не угадывает вместимость: любой сбой связи или
// некорректный ответ трактуется как недоступность источника.
package eventclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/akriventsev/ticketon/domain"
	"github.com/akriventsev/ticketon/transport"
)

// EventGateway контракт чтения деталей события
type EventGateway interface {
	// GetEventDetails возвращает детали события по ID
	GetEventDetails(ctx context.Context, eventID string) (*domain.EventDetails, error)
}

// Config конфигурация HTTP клиента event-service
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	RetryPolicy    transport.RetryPolicy
}

// Validate проверяет корректность конфигурации
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("BaseURL cannot be empty")
	}
	return nil
}

// DefaultConfig возвращает конфигурацию клиента по умолчанию
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:3001",
		RequestTimeout: 5 * time.Second,
		RetryPolicy:    transport.DefaultRetryPolicy(),
	}
}

// HTTPClient клиент event-service поверх REST-границы
type HTTPClient struct {
	config Config
	client *http.Client
}

// NewHTTPClient создает новый HTTP клиент event-service
func NewHTTPClient(config Config) (*HTTPClient, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event client config: %w", err)
	}

	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HTTPClient{
		config: config,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// GetEventDetails возвращает детали события. Транспортные сбои повторяются
// по политике повторов, ответы вне 2xx и некорректные тела единообразно
// завершаются ошибкой UPSTREAM_UNAVAILABLE.
func (c *HTTPClient) GetEventDetails(ctx context.Context, eventID string) (*domain.EventDetails, error) {
	if eventID == "" {
		return nil, domain.NewUpstreamUnavailable("event-service", fmt.Errorf("eventId cannot be empty"))
	}

	url := fmt.Sprintf("%s/events/%s", c.config.BaseURL, eventID)

	var lastErr error
	attempts := 1
	if c.config.RetryPolicy != nil {
		attempts = c.config.RetryPolicy.GetMaxAttempts()
		if attempts < 1 {
			attempts = 1
		}
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		details, err := c.fetch(ctx, url)
		if err == nil {
			return details, nil
		}
		lastErr = err

		if c.config.RetryPolicy == nil || !c.config.RetryPolicy.ShouldRetry(attempt, err) {
			break
		}
		select {
		case <-time.After(c.config.RetryPolicy.GetDelay(attempt)):
		case <-ctx.Done():
			return nil, domain.NewUpstreamUnavailable("event-service", ctx.Err())
		}
	}

	return nil, domain.NewUpstreamUnavailable("event-service", lastErr)
}

// GetAvailableSeats возвращает количество свободных мест события
func (c *HTTPClient) GetAvailableSeats(ctx context.Context, eventID string) (int, error) {
	details, err := c.GetEventDetails(ctx, eventID)
	if err != nil {
		return 0, err
	}
	return details.AvailableSeats, nil
}

func (c *HTTPClient) fetch(ctx context.Context, url string) (*domain.EventDetails, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var details domain.EventDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, fmt.Errorf("malformed response body: %w", err)
	}
	if details.ID == "" || details.Capacity < 0 || details.AvailableSeats < 0 {
		return nil, fmt.Errorf("malformed event details")
	}

	return &details, nil
}
