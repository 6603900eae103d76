package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/akriventsev/ticketon/domain"
)

// RESTConfig конфигурация для REST адаптера
type RESTConfig struct {
	Port     int
	BasePath string
}

// DefaultRESTConfig возвращает конфигурацию REST по умолчанию
func DefaultRESTConfig() RESTConfig {
	return RESTConfig{
		Port:     8080,
		BasePath: "/api/v1",
	}
}

// Validate проверяет конфигурацию REST адаптера
func (c RESTConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// RESTAdapter HTTP-сервер сервиса. Конкретные маршруты регистрируют
// прикладные сервисы через Router().
type RESTAdapter struct {
	config  RESTConfig
	router  *gin.Engine
	server  *http.Server
	running bool
}

// NewRESTAdapter создает новый REST адаптер
func NewRESTAdapter(config RESTConfig) (*RESTAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &RESTAdapter{
		config: config,
		router: gin.Default(),
	}, nil
}

// Router возвращает маршрутизатор для регистрации обработчиков
func (r *RESTAdapter) Router() *gin.Engine {
	return r.router
}

// Group возвращает группу маршрутов под базовым путем конфигурации
func (r *RESTAdapter) Group() *gin.RouterGroup {
	return r.router.Group(r.config.BasePath)
}

// Start запускает адаптер (реализация core.Lifecycle)
func (r *RESTAdapter) Start(ctx context.Context) error {
	r.running = true

	r.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", r.config.Port),
		Handler: r.router,
	}

	go func() {
		if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			_ = err
		}
	}()

	return nil
}

// Stop останавливает адаптер (реализация core.Lifecycle)
func (r *RESTAdapter) Stop(ctx context.Context) error {
	r.running = false

	if r.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return r.server.Shutdown(shutdownCtx)
	}

	return nil
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (r *RESTAdapter) IsRunning() bool {
	return r.running
}

// ErrorResponse тело HTTP-ответа об ошибке
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError отображает доменную ошибку в HTTP-ответ.
// Таксономия кодов фиксирована, незнакомые ошибки отдаются как 500.
func WriteError(c *gin.Context, err error) {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL",
			Message: err.Error(),
		})
		return
	}

	status := http.StatusInternalServerError
	switch domainErr.Code {
	case domain.ErrCodeNotFound:
		status = http.StatusNotFound
	case domain.ErrCodeInvalidTransition, domain.ErrCodeDuplicatePayment:
		status = http.StatusConflict
	case domain.ErrCodeInsufficientCapacity:
		status = http.StatusUnprocessableEntity
	case domain.ErrCodeInvalidAmount, domain.ErrCodeUnknownEvent:
		status = http.StatusBadRequest
	case domain.ErrCodeUpstreamUnavailable:
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, ErrorResponse{
		Code:    domainErr.Code,
		Message: domainErr.Message,
	})
}
