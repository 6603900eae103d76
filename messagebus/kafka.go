package messagebus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/akriventsev/ticketon/metrics"
	"github.com/akriventsev/ticketon/transport"
)

// KafkaConfig конфигурация для Kafka адаптера
type KafkaConfig struct {
	Brokers        []string
	GroupID        string
	Compression    string // none, gzip, snappy, lz4, zstd
	BatchSize      int
	FlushInterval  time.Duration
	ConsumerConfig KafkaConsumerConfig
	ProducerConfig KafkaProducerConfig
	EnableMetrics  bool
}

// Validate проверяет корректность конфигурации
func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("brokers cannot be empty")
	}
	for i, broker := range c.Brokers {
		if broker == "" {
			return fmt.Errorf("broker[%d] cannot be empty", i)
		}
		if !strings.Contains(broker, ":") {
			return fmt.Errorf("broker[%d] must be in format host:port", i)
		}
	}
	return nil
}

// KafkaConsumerConfig конфигурация для Kafka consumer
type KafkaConsumerConfig struct {
	MinBytes       int
	MaxBytes       int
	MaxWait        time.Duration
	StartOffset    int64 // -2 (earliest), -1 (latest), или конкретный offset
	CommitInterval time.Duration
}

// KafkaProducerConfig конфигурация для Kafka producer
type KafkaProducerConfig struct {
	RequiredAcks int // 0, 1, -1 (all)
	MaxAttempts  int
}

// DefaultKafkaConfig возвращает конфигурацию Kafka по умолчанию
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:       []string{"localhost:9092"},
		GroupID:       "ticketon-group",
		Compression:   "snappy",
		BatchSize:     100,
		FlushInterval: 10 * time.Millisecond,
		ConsumerConfig: KafkaConsumerConfig{
			MinBytes:       10e3,
			MaxBytes:       10e6,
			MaxWait:        1 * time.Second,
			StartOffset:    kafka.LastOffset,
			CommitInterval: 1 * time.Second,
		},
		ProducerConfig: KafkaProducerConfig{
			RequiredAcks: -1,
			MaxAttempts:  3,
		},
		EnableMetrics: true,
	}
}

// KafkaAdapter реализация MessageBus через Kafka. Подписчики одной
// GroupID делят партиции топика между собой.
type KafkaAdapter struct {
	config  KafkaConfig
	writer  *kafka.Writer
	subs    map[string]*kafka.Reader
	mu      sync.RWMutex
	running bool
	metrics *metrics.Metrics
}

// NewKafkaAdapter создает новый Kafka адаптер
func NewKafkaAdapter(config KafkaConfig) (*KafkaAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka config: %w", err)
	}

	adapter := &KafkaAdapter{
		config: config,
		subs:   make(map[string]*kafka.Reader),
	}

	if config.EnableMetrics {
		var err error
		adapter.metrics, err = metrics.NewMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
	}

	adapter.writer = &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequiredAcks(config.ProducerConfig.RequiredAcks),
		Async:        false,
		BatchSize:    config.BatchSize,
		BatchTimeout: config.FlushInterval,
		Compression:  getCompression(config.Compression),
		MaxAttempts:  config.ProducerConfig.MaxAttempts,
	}

	return adapter, nil
}

// getCompression преобразует строку в kafka.Compression
func getCompression(compression string) kafka.Compression {
	switch compression {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0)
	}
}

// Start запускает адаптер (реализация core.Lifecycle)
func (k *KafkaAdapter) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.running = true
	return nil
}

// Stop останавливает адаптер (реализация core.Lifecycle)
func (k *KafkaAdapter) Stop(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.running {
		return nil
	}

	for topic, reader := range k.subs {
		if reader != nil {
			_ = reader.Close()
		}
		delete(k.subs, topic)
	}

	if k.writer != nil {
		_ = k.writer.Close()
	}

	k.running = false
	return nil
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (k *KafkaAdapter) IsRunning() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.running
}

// Publish публикует сообщение в топик
func (k *KafkaAdapter) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	start := time.Now()

	msg := kafka.Message{
		Topic: subject,
		Value: data,
	}

	if headers != nil {
		msg.Headers = make([]kafka.Header, 0, len(headers))
		for key, v := range headers {
			msg.Headers = append(msg.Headers, kafka.Header{
				Key:   key,
				Value: []byte(v),
			})
		}
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		if k.metrics != nil {
			k.metrics.RecordTransport(ctx, "kafka", time.Since(start), false)
		}
		return fmt.Errorf("failed to publish message: %w", err)
	}

	if k.metrics != nil {
		k.metrics.RecordTransport(ctx, "kafka", time.Since(start), true)
	}

	return nil
}

// Subscribe подписывается на топик
func (k *KafkaAdapter) Subscribe(ctx context.Context, subject string, handler transport.MessageHandler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        k.config.Brokers,
		Topic:          subject,
		GroupID:        k.config.GroupID,
		MinBytes:       k.config.ConsumerConfig.MinBytes,
		MaxBytes:       k.config.ConsumerConfig.MaxBytes,
		MaxWait:        k.config.ConsumerConfig.MaxWait,
		StartOffset:    k.config.ConsumerConfig.StartOffset,
		CommitInterval: k.config.ConsumerConfig.CommitInterval,
	})

	k.mu.Lock()
	k.subs[subject] = reader
	k.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msg, err := reader.FetchMessage(ctx)
			if err != nil {
				if err == context.Canceled {
					return
				}
				continue
			}

			mbMsg := &transport.Message{
				Subject: subject,
				Data:    msg.Value,
				Headers: make(map[string]string),
			}
			for _, h := range msg.Headers {
				mbMsg.Headers[h.Key] = string(h.Value)
			}

			if err := handler(ctx, mbMsg); err != nil {
				// Offset не коммитим, сообщение будет доставлено повторно
				continue
			}
			_ = reader.CommitMessages(ctx, msg)
		}
	}()

	return nil
}

// Unsubscribe отписывается от топика
func (k *KafkaAdapter) Unsubscribe(subject string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	reader, exists := k.subs[subject]
	if !exists {
		return nil
	}

	if err := reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}

	delete(k.subs, subject)
	return nil
}
