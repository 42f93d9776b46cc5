package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/craft-api/internal/models"
	"github.com/noah-isme/craft-api/pkg/response"
)

type contactMessageService interface {
	List(ctx context.Context, isRead *bool, page, pageSize int) ([]models.ContactMessage, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.ContactMessage, error)
	Create(ctx context.Context, req models.CreateContactMessageRequest) (*models.ContactMessage, error)
	MarkRead(ctx context.Context, actor *models.Account, id string, req models.UpdateContactMessageRequest) (*models.ContactMessage, error)
	Delete(ctx context.Context, actor *models.Account, id string) error
}

// ContactMessageHandler exposes the contact form and its admin inbox.
type ContactMessageHandler struct {
	service contactMessageService
}

// NewContactMessageHandler creates a ContactMessageHandler.
func NewContactMessageHandler(svc contactMessageService) *ContactMessageHandler {
	return &ContactMessageHandler{service: svc}
}

// List godoc
// @Summary List contact messages
// @Tags ContactMessages
// @Produce json
// @Security BearerAuth
// @Param is_read query bool false "Read filter"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /contact-messages [get]
func (h *ContactMessageHandler) List(c *gin.Context) {
	page, size := pageParams(c, 50)
	messages, pagination, err := h.service.List(c.Request.Context(), optionalBool(c.Query("is_read")), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Contact messages retrieved", messages, pagination)
}

// Get godoc
// @Summary Get contact message
// @Tags ContactMessages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /contact-messages/{id} [get]
func (h *ContactMessageHandler) Get(c *gin.Context) {
	message, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Contact message retrieved", message)
}

// Create godoc
// @Summary Send contact message
// @Tags ContactMessages
// @Accept json
// @Produce json
// @Param payload body models.CreateContactMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /contact-messages [post]
func (h *ContactMessageHandler) Create(c *gin.Context) {
	var req models.CreateContactMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	message, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Message sent", message)
}

// Update godoc
// @Summary Mark contact message read or unread
// @Tags ContactMessages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Param payload body models.UpdateContactMessageRequest true "Read flag"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /contact-messages/{id} [put]
func (h *ContactMessageHandler) Update(c *gin.Context) {
	var req models.UpdateContactMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	message, err := h.service.MarkRead(c.Request.Context(), accountFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Contact message updated", message)
}

// Delete godoc
// @Summary Delete contact message
// @Tags ContactMessages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /contact-messages/{id} [delete]
func (h *ContactMessageHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), accountFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Contact message deleted", nil)
}
