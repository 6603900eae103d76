package messagebus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/akriventsev/ticketon/transport"
)

// RedisConfig конфигурация для Redis адаптера
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	PoolSize      int
	MaxRetries    int
	StreamMaxLen  int64 // Максимальная длина stream (0 = без ограничений)
	ConsumerGroup string
	BlockTimeout  time.Duration
	StreamPrefix  string
}

// Validate проверяет корректность конфигурации
func (c RedisConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr cannot be empty")
	}
	if c.ConsumerGroup == "" {
		return fmt.Errorf("ConsumerGroup cannot be empty")
	}
	return nil
}

// DefaultRedisConfig возвращает конфигурацию Redis по умолчанию
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		DB:            0,
		PoolSize:      10,
		MaxRetries:    3,
		StreamMaxLen:  10000,
		ConsumerGroup: "ticketon-group",
		BlockTimeout:  5 * time.Second,
		StreamPrefix:  "ticketon",
	}
}

// RedisAdapter реализация MessageBus через Redis Streams.
// Каждый subject отображается в отдельный stream, потребители одной
// consumer group делят сообщения между собой.
type RedisAdapter struct {
	config    RedisConfig
	client    *redis.Client
	mu        sync.RWMutex
	running   bool
	cancels   map[string]context.CancelFunc
	consumers map[string]string // stream -> consumer name
}

// NewRedisAdapter создает новый Redis адаптер
func NewRedisAdapter(config RedisConfig) (*RedisAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:       config.Addr,
		Password:   config.Password,
		DB:         config.DB,
		PoolSize:   config.PoolSize,
		MaxRetries: config.MaxRetries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisAdapter{
		config:    config,
		client:    client,
		cancels:   make(map[string]context.CancelFunc),
		consumers: make(map[string]string),
	}, nil
}

// Start запускает адаптер (реализация core.Lifecycle)
func (r *RedisAdapter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = true
	return nil
}

// Stop останавливает адаптер (реализация core.Lifecycle)
func (r *RedisAdapter) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return nil
	}

	for _, cancel := range r.cancels {
		cancel()
	}

	if r.client != nil {
		_ = r.client.Close()
	}

	r.running = false
	return nil
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (r *RedisAdapter) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Publish публикует сообщение в stream (XADD)
func (r *RedisAdapter) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	stream := r.streamName(subject)

	values := map[string]interface{}{
		"data": string(data),
	}
	if headers != nil {
		headersJSON, _ := json.Marshal(headers)
		values["headers"] = string(headersJSON)
	}

	args := redis.XAddArgs{
		Stream: stream,
		Values: values,
	}
	if r.config.StreamMaxLen > 0 {
		args.MaxLen = r.config.StreamMaxLen
		args.Approx = true
	}

	if err := r.client.XAdd(ctx, &args).Err(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return nil
}

// Subscribe подписывается на stream (XREADGROUP)
func (r *RedisAdapter) Subscribe(ctx context.Context, subject string, handler transport.MessageHandler) error {
	stream := r.streamName(subject)
	consumerName := fmt.Sprintf("consumer-%d", time.Now().UnixNano())

	err := r.client.XGroupCreateMkStream(ctx, stream, r.config.ConsumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	readCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.consumers[stream] = consumerName
	r.cancels[subject] = cancel
	r.mu.Unlock()

	go r.readLoop(readCtx, stream, subject, consumerName, handler)

	return nil
}

func (r *RedisAdapter) readLoop(ctx context.Context, stream, subject, consumer string, handler transport.MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    r.config.ConsumerGroup,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    r.config.BlockTimeout,
		}).Result()

		if err != nil {
			if err == redis.Nil || err == context.Canceled {
				continue
			}
			time.Sleep(1 * time.Second)
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				data, _ := msg.Values["data"].(string)
				mbMsg := &transport.Message{
					Subject: subject,
					Data:    []byte(data),
					Headers: make(map[string]string),
				}
				if headersStr, ok := msg.Values["headers"].(string); ok {
					_ = json.Unmarshal([]byte(headersStr), &mbMsg.Headers)
				}

				if err := handler(ctx, mbMsg); err != nil {
					// Сообщение останется в pending и будет доставлено повторно
					_ = err
				} else {
					_ = r.client.XAck(ctx, s.Stream, r.config.ConsumerGroup, msg.ID).Err()
				}
			}
		}
	}
}

// Unsubscribe отписывается от stream
func (r *RedisAdapter) Unsubscribe(subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel, ok := r.cancels[subject]; ok {
		cancel()
		delete(r.cancels, subject)
	}
	delete(r.consumers, r.streamName(subject))

	return nil
}

func (r *RedisAdapter) streamName(subject string) string {
	if r.config.StreamPrefix == "" {
		return subject
	}
	return r.config.StreamPrefix + ":" + subject
}
