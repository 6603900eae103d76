package messagebus

import (
	"fmt"
	"sync"

	"github.com/akriventsev/ticketon/transport"
)

// MessageBusFactory интерфейс фабрики для создания MessageBus адаптеров
type MessageBusFactory interface {
	Create(busType string, config interface{}) (transport.MessageBus, error)
	Register(name string, creator func(config interface{}) (transport.MessageBus, error)) error
}

// DefaultMessageBusFactory реализация фабрики MessageBus
type DefaultMessageBusFactory struct {
	creators map[string]func(config interface{}) (transport.MessageBus, error)
	mu       sync.RWMutex
}

// NewMessageBusFactory создает новую фабрику MessageBus с built-in адаптерами
func NewMessageBusFactory() *DefaultMessageBusFactory {
	factory := &DefaultMessageBusFactory{
		creators: make(map[string]func(config interface{}) (transport.MessageBus, error)),
	}

	_ = factory.Register("nats", func(config interface{}) (transport.MessageBus, error) {
		cfg, ok := config.(NATSConfig)
		if !ok {
			if url, ok := config.(string); ok {
				return NewNATSAdapter(url)
			}
			return nil, fmt.Errorf("invalid NATS config type: %T", config)
		}
		builder := NewNATSAdapterBuilder().
			WithURL(cfg.URL).
			WithQueueGroup(cfg.QueueGroup).
			WithMaxReconnects(cfg.MaxReconnects).
			WithReconnectWait(cfg.ReconnectWait).
			WithConnectionTimeout(cfg.ConnectionTimeout).
			WithMetrics(cfg.EnableMetrics)
		if cfg.TLS != nil {
			builder.WithTLS(cfg.TLS)
		}
		if cfg.Token != "" {
			builder.WithToken(cfg.Token)
		}
		if cfg.Username != "" && cfg.Password != "" {
			builder.WithCredentials(cfg.Username, cfg.Password)
		}
		return builder.Build()
	})

	_ = factory.Register("kafka", func(config interface{}) (transport.MessageBus, error) {
		cfg, ok := config.(KafkaConfig)
		if !ok {
			return nil, fmt.Errorf("invalid Kafka config type: %T", config)
		}
		return NewKafkaAdapter(cfg)
	})

	_ = factory.Register("redis", func(config interface{}) (transport.MessageBus, error) {
		cfg, ok := config.(RedisConfig)
		if !ok {
			return nil, fmt.Errorf("invalid Redis config type: %T", config)
		}
		return NewRedisAdapter(cfg)
	})

	_ = factory.Register("inmemory", func(config interface{}) (transport.MessageBus, error) {
		cfg := DefaultInMemoryConfig()
		if c, ok := config.(InMemoryConfig); ok {
			cfg = c
		}
		return NewInMemoryAdapter(cfg), nil
	})

	return factory
}

// Create создает MessageBus адаптер указанного типа
func (f *DefaultMessageBusFactory) Create(busType string, config interface{}) (transport.MessageBus, error) {
	f.mu.RLock()
	creator, exists := f.creators[busType]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown message bus type: %s", busType)
	}

	adapter, err := creator(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s adapter: %w", busType, err)
	}

	return adapter, nil
}

// Register регистрирует custom адаптер
func (f *DefaultMessageBusFactory) Register(name string, creator func(config interface{}) (transport.MessageBus, error)) error {
	if name == "" {
		return fmt.Errorf("adapter name cannot be empty")
	}
	if creator == nil {
		return fmt.Errorf("creator function cannot be nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.creators[name]; exists {
		return fmt.Errorf("adapter %s is already registered", name)
	}

	f.creators[name] = creator
	return nil
}
