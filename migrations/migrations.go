// Package migrations предоставляет обертку над goose для управления
// схемой хранилищ ticket-service и payment-service.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var embedded embed.FS

// SetDialect устанавливает диалект БД.
// Если dialect пустой, устанавливается значение по умолчанию "postgres".
func SetDialect(dialect string) error {
	if dialect == "" {
		dialect = "postgres"
	}
	return goose.SetDialect(dialect)
}

// RunEmbedded применяет все pending миграции из встроенной директории sql
func RunEmbedded(db *sql.DB) error {
	goose.SetBaseFS(embedded)
	defer goose.SetBaseFS(nil)

	if err := goose.Up(db, "sql"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// GetCurrentVersion возвращает текущую версию схемы БД
func GetCurrentVersion(db *sql.DB) (int64, error) {
	version, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}
