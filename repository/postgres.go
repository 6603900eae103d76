package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akriventsev/ticketon/domain"
)

// PostgresConfig конфигурация для PostgreSQL репозитория
type PostgresConfig struct {
	DSN        string
	TableName  string
	SchemaName string
	MaxConns   int32
}

// Validate проверяет корректность конфигурации
func (c PostgresConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("DSN cannot be empty")
	}
	if c.TableName == "" {
		return fmt.Errorf("TableName cannot be empty")
	}
	return nil
}

// DefaultPostgresConfig возвращает конфигурацию PostgreSQL по умолчанию
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		SchemaName: "public",
		MaxConns:   25,
	}
}

// PostgresRepository generic PostgreSQL репозиторий. Сущности хранятся
// в JSONB колонке data, выборки по полям используют JSONB выражения.
type PostgresRepository[T Entity] struct {
	config    PostgresConfig
	pool      *pgxpool.Pool
	newEntity func() T
}

// NewPostgresRepository создает новый PostgreSQL репозиторий.
// newEntity возвращает пустой экземпляр сущности для десериализации.
func NewPostgresRepository[T Entity](config PostgresConfig, newEntity func() T) (*PostgresRepository[T], error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres DSN: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	return &PostgresRepository[T]{
		config:    config,
		pool:      pool,
		newEntity: newEntity,
	}, nil
}

// Stop закрывает пул соединений (реализация core.Lifecycle)
func (p *PostgresRepository[T]) Stop(ctx context.Context) error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func (p *PostgresRepository[T]) tableName() string {
	return fmt.Sprintf("%s.%s", p.config.SchemaName, p.config.TableName)
}

// Save сохраняет entity (INSERT ON CONFLICT UPDATE)
func (p *PostgresRepository[T]) Save(ctx context.Context, entity T) error {
	id := entity.EntityID()
	if id == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, data)
		VALUES ($1, $2)
		ON CONFLICT (id)
		DO UPDATE SET data = $2, updated_at = NOW()
	`, p.tableName())

	if _, err := p.pool.Exec(ctx, query, id, data); err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}

	return nil
}

// FindByID находит entity по ID
func (p *PostgresRepository[T]) FindByID(ctx context.Context, id string) (T, error) {
	var zero T

	query := fmt.Sprintf("SELECT data FROM %s WHERE id = $1", p.tableName())

	var data []byte
	err := p.pool.QueryRow(ctx, query, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, domain.NewNotFound("entity", id)
		}
		return zero, fmt.Errorf("failed to find entity: %w", err)
	}

	entity := p.newEntity()
	if err := json.Unmarshal(data, entity); err != nil {
		return zero, fmt.Errorf("failed to unmarshal entity: %w", err)
	}

	return entity, nil
}

// FindAll возвращает все entities
func (p *PostgresRepository[T]) FindAll(ctx context.Context) ([]T, error) {
	query := fmt.Sprintf("SELECT data FROM %s", p.tableName())
	return p.queryEntities(ctx, query)
}

// Find находит entities по предикату. Фильтрация выполняется на стороне
// приложения, для выборок по одному полю предпочтительнее FindByField.
func (p *PostgresRepository[T]) Find(ctx context.Context, predicate func(T) bool) ([]T, error) {
	all, err := p.FindAll(ctx)
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

// FindByField находит entities по значению JSON-поля
func (p *PostgresRepository[T]) FindByField(ctx context.Context, field, value string) ([]T, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE data->>'%s' = $1", p.tableName(), field)
	return p.queryEntities(ctx, query, value)
}

// Delete удаляет entity
func (p *PostgresRepository[T]) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", p.tableName())

	result, err := p.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFound("entity", id)
	}

	return nil
}

// Count возвращает количество entities
func (p *PostgresRepository[T]) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", p.tableName())

	var count int
	if err := p.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}

	return count, nil
}

func (p *PostgresRepository[T]) queryEntities(ctx context.Context, query string, args ...interface{}) ([]T, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		entity := p.newEntity()
		if err := json.Unmarshal(data, entity); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
		}

		entities = append(entities, entity)
	}

	return entities, rows.Err()
}
