package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/akriventsev/ticketon/domain"
)

// InMemoryConfig конфигурация для InMemory репозитория
type InMemoryConfig struct {
	// MaxEntities максимальное количество сущностей (0 = без ограничений).
	// При достижении лимита Save вернет ошибку
	MaxEntities int
}

// DefaultInMemoryConfig возвращает конфигурацию InMemory по умолчанию
func DefaultInMemoryConfig() InMemoryConfig {
	return InMemoryConfig{
		MaxEntities: 0,
	}
}

// InMemoryRepository generic in-memory репозиторий с secondary индексами
type InMemoryRepository[T Entity] struct {
	config   InMemoryConfig
	entities map[string]T
	indexes  map[string]map[string][]string // index name -> key -> entity IDs
	keyFuncs map[string]func(T) string      // index name -> key function
	mu       sync.RWMutex
}

// NewInMemoryRepository создает новый in-memory репозиторий
func NewInMemoryRepository[T Entity](config InMemoryConfig) *InMemoryRepository[T] {
	return &InMemoryRepository[T]{
		config:   config,
		entities: make(map[string]T),
		indexes:  make(map[string]map[string][]string),
		keyFuncs: make(map[string]func(T) string),
	}
}

// Save сохраняет entity
func (r *InMemoryRepository[T]) Save(ctx context.Context, entity T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := entity.EntityID()
	if id == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	if r.config.MaxEntities > 0 {
		if _, exists := r.entities[id]; !exists {
			if len(r.entities) >= r.config.MaxEntities {
				return fmt.Errorf("repository limit reached: max %d entities", r.config.MaxEntities)
			}
		}
	}

	// Старая версия сущности покидает индексы
	if oldEntity, exists := r.entities[id]; exists {
		r.removeFromIndexes(oldEntity, id)
	}

	r.entities[id] = entity

	for indexName, keyFunc := range r.keyFuncs {
		r.addToIndex(indexName, keyFunc(entity), id)
	}

	return nil
}

// FindByID находит entity по ID
func (r *InMemoryRepository[T]) FindByID(ctx context.Context, id string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	entity, exists := r.entities[id]
	if !exists {
		return zero, domain.NewNotFound("entity", id)
	}

	return entity, nil
}

// FindAll возвращает все entities
func (r *InMemoryRepository[T]) FindAll(ctx context.Context) ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entities := make([]T, 0, len(r.entities))
	for _, entity := range r.entities {
		entities = append(entities, entity)
	}

	return entities, nil
}

// Find находит entities по предикату
func (r *InMemoryRepository[T]) Find(ctx context.Context, predicate func(T) bool) ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []T
	for _, entity := range r.entities {
		if predicate(entity) {
			results = append(results, entity)
		}
	}

	return results, nil
}

// Delete удаляет entity
func (r *InMemoryRepository[T]) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entity, exists := r.entities[id]
	if !exists {
		return domain.NewNotFound("entity", id)
	}

	r.removeFromIndexes(entity, id)
	delete(r.entities, id)
	return nil
}

// AddIndex добавляет secondary index и переиндексирует существующие entities
func (r *InMemoryRepository[T]) AddIndex(name string, keyFunc func(T) string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.keyFuncs[name] = keyFunc
	if r.indexes[name] == nil {
		r.indexes[name] = make(map[string][]string)
	}

	for id, entity := range r.entities {
		r.addToIndex(name, keyFunc(entity), id)
	}
}

// FindByIndex находит entities по index key
func (r *InMemoryRepository[T]) FindByIndex(ctx context.Context, indexName, key string) ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	index, exists := r.indexes[indexName]
	if !exists {
		return nil, fmt.Errorf("index not found: %s", indexName)
	}

	ids, exists := index[key]
	if !exists {
		return []T{}, nil
	}

	results := make([]T, 0, len(ids))
	for _, id := range ids {
		if entity, exists := r.entities[id]; exists {
			results = append(results, entity)
		}
	}

	return results, nil
}

// Count возвращает количество entities
func (r *InMemoryRepository[T]) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities), nil
}

// Clear очищает репозиторий (для тестирования)
func (r *InMemoryRepository[T]) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entities = make(map[string]T)
	for name := range r.indexes {
		r.indexes[name] = make(map[string][]string)
	}
	return nil
}

func (r *InMemoryRepository[T]) addToIndex(name, key, id string) {
	ids := r.indexes[name][key]
	for _, existingID := range ids {
		if existingID == id {
			return
		}
	}
	r.indexes[name][key] = append(ids, id)
}

func (r *InMemoryRepository[T]) removeFromIndexes(entity T, id string) {
	for indexName, keyFunc := range r.keyFuncs {
		key := keyFunc(entity)
		index, ok := r.indexes[indexName]
		if !ok {
			continue
		}
		ids, ok := index[key]
		if !ok {
			continue
		}
		newIDs := make([]string, 0, len(ids))
		for _, existingID := range ids {
			if existingID != id {
				newIDs = append(newIDs, existingID)
			}
		}
		if len(newIDs) == 0 {
			delete(index, key)
		} else {
			index[key] = newIDs
		}
	}
}
