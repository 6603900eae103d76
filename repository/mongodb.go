package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/akriventsev/ticketon/domain"
)

// MongoConfig конфигурация для MongoDB репозитория
type MongoConfig struct {
	URI         string
	Database    string
	Collection  string
	MaxPoolSize int
	MinPoolSize int
}

// Validate проверяет корректность конфигурации
func (c MongoConfig) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("URI cannot be empty")
	}
	if c.Database == "" {
		return fmt.Errorf("database cannot be empty")
	}
	if c.Collection == "" {
		return fmt.Errorf("collection cannot be empty")
	}
	return nil
}

// DefaultMongoConfig возвращает конфигурацию MongoDB по умолчанию
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		Database:    "ticketon",
		Collection:  "entities",
		MaxPoolSize: 100,
		MinPoolSize: 10,
	}
}

// MongoRepository generic MongoDB репозиторий
type MongoRepository[T Entity] struct {
	config     MongoConfig
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoRepository создает новый MongoDB репозиторий
func NewMongoRepository[T Entity](config MongoConfig) (*MongoRepository[T], error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mongodb config: %w", err)
	}

	ctx := context.Background()

	opts := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(uint64(config.MaxPoolSize)).
		SetMinPoolSize(uint64(config.MinPoolSize))

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoRepository[T]{
		config:     config,
		client:     client,
		collection: client.Database(config.Database).Collection(config.Collection),
	}, nil
}

// Stop отключает клиент (реализация core.Lifecycle)
func (m *MongoRepository[T]) Stop(ctx context.Context) error {
	if m.client != nil {
		return m.client.Disconnect(ctx)
	}
	return nil
}

// Save сохраняет entity (ReplaceOne upsert)
func (m *MongoRepository[T]) Save(ctx context.Context, entity T) error {
	id := entity.EntityID()
	if id == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	filter := bson.M{"_id": id}
	opts := options.Replace().SetUpsert(true)
	if _, err := m.collection.ReplaceOne(ctx, filter, entity, opts); err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}

	return nil
}

// FindByID находит entity по ID
func (m *MongoRepository[T]) FindByID(ctx context.Context, id string) (T, error) {
	var zero T

	var entity T
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&entity)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return zero, domain.NewNotFound("entity", id)
		}
		return zero, fmt.Errorf("failed to find entity: %w", err)
	}

	return entity, nil
}

// FindAll возвращает все entities
func (m *MongoRepository[T]) FindAll(ctx context.Context) ([]T, error) {
	cursor, err := m.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var entities []T
	if err := cursor.All(ctx, &entities); err != nil {
		return nil, fmt.Errorf("failed to decode entities: %w", err)
	}

	return entities, nil
}

// Find находит entities по предикату
func (m *MongoRepository[T]) Find(ctx context.Context, predicate func(T) bool) ([]T, error) {
	all, err := m.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]T, 0, len(all))
	for _, entity := range all {
		if predicate(entity) {
			results = append(results, entity)
		}
	}

	return results, nil
}

// Delete удаляет entity
func (m *MongoRepository[T]) Delete(ctx context.Context, id string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.NewNotFound("entity", id)
	}

	return nil
}

// Count возвращает количество entities
func (m *MongoRepository[T]) Count(ctx context.Context) (int, error) {
	count, err := m.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	return int(count), nil
}
