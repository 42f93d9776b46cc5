package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/craft-api/internal/models"
	"github.com/noah-isme/craft-api/pkg/response"
)

type emailService interface {
	List(ctx context.Context, status string, page, pageSize int) ([]models.Email, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Email, error)
	ProcessDeliveryEvent(ctx context.Context, token string, event models.DeliveryEvent) error
}

// EmailHandler serves the outbound email archive and the provider webhook.
type EmailHandler struct {
	service emailService
}

// NewEmailHandler creates an EmailHandler.
func NewEmailHandler(svc emailService) *EmailHandler {
	return &EmailHandler{service: svc}
}

// List godoc
// @Summary List sent emails
// @Tags Emails
// @Produce json
// @Security BearerAuth
// @Param status query string false "queued, sent, delivered, opened, clicked or failed"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /emails [get]
func (h *EmailHandler) List(c *gin.Context) {
	page, size := pageParams(c, 50)
	emails, pagination, err := h.service.List(c.Request.Context(), c.Query("status"), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Emails retrieved", emails, pagination)
}

// Get godoc
// @Summary Get email
// @Tags Emails
// @Produce json
// @Security BearerAuth
// @Param id path string true "Email ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /emails/{id} [get]
func (h *EmailHandler) Get(c *gin.Context) {
	email, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Email retrieved", email)
}

// DeliveryEvent godoc
// @Summary Receive a delivery event from the mail provider
// @Tags Emails
// @Accept json
// @Produce json
// @Param token path string true "Webhook token"
// @Param payload body models.DeliveryEvent true "Delivery event"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /emails/delivery-event/{token} [post]
func (h *EmailHandler) DeliveryEvent(c *gin.Context) {
	var event models.DeliveryEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		response.Error(c, bindError(err))
		return
	}

	if err := h.service.ProcessDeliveryEvent(c.Request.Context(), c.Param("token"), event); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Delivery event processed", nil)
}
