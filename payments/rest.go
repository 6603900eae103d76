package payments

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akriventsev/ticketon/domain"
	"github.com/akriventsev/ticketon/observability"
	"github.com/akriventsev/ticketon/transport"
)

// RegisterRoutes регистрирует REST-маршруты сервиса платежей
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	payments := group.Group("/payments")
	payments.POST("", createHandler(service))
	payments.GET("/:id", getHandler(service))
	payments.POST("/:id/process", processHandler(service))
	payments.POST("/:id/refund", refundHandler(service))
	payments.POST("/:id/cancel", cancelHandler(service))
	group.GET("/users/:userId/payments", byUserHandler(service))
	group.GET("/tickets/:ticketId/payment", byTicketHandler(service))
}

type createRequest struct {
	TicketID      string  `json:"ticketId" binding:"required"`
	UserID        string  `json:"userId" binding:"required"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	PaymentMethod string  `json:"paymentMethod"`
}

func createHandler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, transport.ErrorResponse{Code: "BAD_REQUEST", Message: err.Error()})
			return
		}

		payment, err := service.Create(c.Request.Context(), CreateParams{
			TicketID:      req.TicketID,
			UserID:        req.UserID,
			Amount:        req.Amount,
			Currency:      req.Currency,
			PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		})
		if err != nil {
			transport.WriteError(c, err)
			return
		}
		c.JSON(http.StatusCreated, payment)
	}
}

func getHandler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		payment, err := service.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			transport.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func processHandler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payment *domain.Payment
		err := observability.TraceCommand(c.Request.Context(), "payment.process", func(ctx context.Context) error {
			var err error
			payment, err = service.Process(ctx, c.Param("id"))
			return err
		})
		if err != nil {
			transport.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func refundHandler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		payment, err := service.Refund(c.Request.Context(), c.Param("id"))
		if err != nil {
			transport.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func cancelHandler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		payment, err := service.Cancel(c.Request.Context(), c.Param("id"))
		if err != nil {
			transport.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func byUserHandler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		found, err := service.FindByUser(c.Request.Context(), c.Param("userId"))
		if err != nil {
			transport.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, found)
	}
}

func byTicketHandler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		payment, err := service.FindByTicket(c.Request.Context(), c.Param("ticketId"))
		if err != nil {
			transport.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}
