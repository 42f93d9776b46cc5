package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/craft-api/internal/models"
	"github.com/noah-isme/craft-api/pkg/response"
)

type accountService interface {
	List(ctx context.Context, actor *models.Account, page, pageSize int) ([]models.AccountResponse, *models.Pagination, error)
	Get(ctx context.Context, actor *models.Account, id string) (*models.AccountResponse, error)
	Create(ctx context.Context, actor *models.Account, req models.CreateAccountRequest) (*models.AccountResponse, error)
	Update(ctx context.Context, actor *models.Account, id string, req models.UpdateAccountRequest) (*models.AccountResponse, error)
	Delete(ctx context.Context, actor *models.Account, id string) error
}

// AccountHandler handles account CRUD endpoints.
type AccountHandler struct {
	service accountService
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(svc accountService) *AccountHandler {
	return &AccountHandler{service: svc}
}

// List godoc
// @Summary List accounts
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} map[string]string
// @Router /accounts [get]
func (h *AccountHandler) List(c *gin.Context) {
	page, size := pageParams(c, 20)
	accounts, pagination, err := h.service.List(c.Request.Context(), accountFromContext(c), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Accounts retrieved", accounts, pagination)
}

// Get godoc
// @Summary Get account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /accounts/{id} [get]
func (h *AccountHandler) Get(c *gin.Context) {
	account, err := h.service.Get(c.Request.Context(), accountFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Account retrieved", account)
}

// Create godoc
// @Summary Create account
// @Description Create a verified account
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateAccountRequest true "Account"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /accounts [post]
func (h *AccountHandler) Create(c *gin.Context) {
	var req models.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	account, err := h.service.Create(c.Request.Context(), accountFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Account created", account)
}

// Update godoc
// @Summary Update account
// @Description Update profile fields; only administrators may change the role
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param payload body models.UpdateAccountRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /accounts/{id} [put]
func (h *AccountHandler) Update(c *gin.Context) {
	var req models.UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	account, err := h.service.Update(c.Request.Context(), accountFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Account updated", account)
}

// Delete godoc
// @Summary Delete account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /accounts/{id} [delete]
func (h *AccountHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), accountFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Account deleted successfully", nil)
}
