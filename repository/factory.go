package repository

import "fmt"

// NewRepository создает репозиторий указанного типа.
// newEntity используется backend'ами с десериализацией (postgres).
func NewRepository[T Entity](repoType string, config interface{}, newEntity func() T) (Repository[T], error) {
	switch repoType {
	case "inmemory", "":
		cfg := DefaultInMemoryConfig()
		if c, ok := config.(InMemoryConfig); ok {
			cfg = c
		}
		return NewInMemoryRepository[T](cfg), nil
	case "postgres":
		cfg, ok := config.(PostgresConfig)
		if !ok {
			return nil, fmt.Errorf("invalid postgres config type: %T", config)
		}
		return NewPostgresRepository[T](cfg, newEntity)
	case "mongodb":
		cfg, ok := config.(MongoConfig)
		if !ok {
			return nil, fmt.Errorf("invalid mongo config type: %T", config)
		}
		return NewMongoRepository[T](cfg)
	default:
		return nil, fmt.Errorf("unknown repository type: %s", repoType)
	}
}
