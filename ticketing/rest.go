package ticketing

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akriventsev/ticketon/domain"
	"github.com/akriventsev/ticketon/observability"
	"github.com/akriventsev/ticketon/transport"
)

// RegisterRoutes регистрирует REST-маршруты сервиса бронирования
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	tickets := group.Group("/tickets")
	tickets.POST("", reserveHandler(service))
	tickets.GET("/:id", getHandler(service))
	tickets.PATCH("/:id", updateHandler(service))
	tickets.POST("/:id/cancel", cancelHandler(service))
	tickets.DELETE("/:id", removeHandler(service))
	tickets.POST("/validate", validateQRHandler(service))
	group.GET("/users/:userId/tickets", byUserHandler(service))
	group.GET("/events/:eventId/tickets", byEventHandler(service))
}

type reserveRequest struct {
	EventID    string  `json:"eventId" binding:"required"`
	UserID     string  `json:"userId" binding:"required"`
	TicketType string  `json:"ticketType"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
}

func reserveHandler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reserveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, transport.ErrorResponse{Code: "BAD_REQUEST", Message: err.Error()})
			return
		}

		ticketType := domain.TicketType(req.TicketType)
		if ticketType == "" {
			ticketType = domain.TicketTypeStandard
		}

		var ticket *domain.Ticket
		err := observability.TraceCommand(c.Request.Context(), "ticket.reserve", func(ctx context.Context) error {
			var err error
			ticket, err = service.Reserve(ctx, ReserveParams{
				EventID:    req.EventID,
				UserID:     req.UserID,
				TicketType: ticketType,
				Quantity:   req.Quantity,
				UnitPrice:  req.UnitPrice,
			})
			return err
		})
		if err != nil {
			transport.WriteError(c, err)
			return
		}

		c.JSON(http.StatusCreated, ticket)
	}
}

func getHandler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticket, err := service.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			transport.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, ticket)
	}
}

type updateRequest struct {
	Status   *string `json:"status"`
	Quantity *int    `json:"quantity"`
}

func updateHandler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, transport.ErrorResponse{Code: "BAD_REQUEST", Message: err.Error()})
			return
		}

		params := UpdateParams{Quantity: req.Quantity}
		if req.Status != nil {
			status := domain.TicketStatus(*req.Status)
			params.Status = &status
		}

		ticket, err := service.Update(c.Request.Context(), c.Param("id"), params)
		if err != nil {
			transport.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, ticket)
	}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func cancelHandler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cancelRequest
		_ = c.ShouldBindJSON(&req)

		ticket, err := service.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
		if err != nil {
			transport.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, ticket)
	}
}

func removeHandler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := service.Remove(c.Request.Context(), c.Param("id")); err != nil {
			transport.WriteError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type validateQRRequest struct {
	QRCode string `json:"qrCode" binding:"required"`
}

func validateQRHandler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req validateQRRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, transport.ErrorResponse{Code: "BAD_REQUEST", Message: err.Error()})
			return
		}

		payload, err := service.ValidateQR(c.Request.Context(), req.QRCode)
		if err != nil {
			transport.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, payload)
	}
}

func byUserHandler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tickets, err := service.FindByUser(c.Request.Context(), c.Param("userId"))
		if err != nil {
			transport.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, tickets)
	}
}

func byEventHandler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tickets, err := service.FindByEvent(c.Request.Context(), c.Param("eventId"))
		if err != nil {
			transport.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, tickets)
	}
}
