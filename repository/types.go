// Package repository предоставляет generic адаптеры для работы с различными storage backends.
package repository

import "context"

// Entity интерфейс для entity с идентификатором
type Entity interface {
	EntityID() string
}

// Repository интерфейс для репозитория
type Repository[T Entity] interface {
	Save(ctx context.Context, entity T) error
	FindByID(ctx context.Context, id string) (T, error)
	FindAll(ctx context.Context) ([]T, error)
	Find(ctx context.Context, predicate func(T) bool) ([]T, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
