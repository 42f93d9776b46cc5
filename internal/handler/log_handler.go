package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/craft-api/internal/models"
	"github.com/noah-isme/craft-api/internal/service"
	appErrors "github.com/noah-isme/craft-api/pkg/errors"
	"github.com/noah-isme/craft-api/pkg/response"
)

type logService interface {
	ListActivity(ctx context.Context, filter models.LogFilter) ([]models.ActivityLog, *models.Pagination, error)
	ListErrors(ctx context.Context, filter models.LogFilter) ([]models.ErrorLog, *models.Pagination, error)
	GetActivity(ctx context.Context, id string) (*models.ActivityLog, error)
	GetError(ctx context.Context, id string) (*models.ErrorLog, error)
	ExportActivity(ctx context.Context, filter models.LogFilter, format string) (*service.ExportFile, error)
}

// LogHandler serves the activity and error logs to administrators.
type LogHandler struct {
	service logService
}

// NewLogHandler creates a LogHandler.
func NewLogHandler(svc logService) *LogHandler {
	return &LogHandler{service: svc}
}

// ListActivity godoc
// @Summary List activity logs
// @Tags Logs
// @Produce json
// @Security BearerAuth
// @Param identifier_type query string false "Identifier type"
// @Param identifier query string false "Identifier"
// @Param from query string false "RFC3339 or YYYY-MM-DD lower bound"
// @Param to query string false "RFC3339 or YYYY-MM-DD upper bound"
// @Success 200 {object} response.Envelope
// @Router /logs/activity [get]
func (h *LogHandler) ListActivity(c *gin.Context) {
	filter, err := logFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	logs, pagination, err := h.service.ListActivity(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Activity logs retrieved", logs, pagination)
}

// ListErrors godoc
// @Summary List error logs
// @Tags Logs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /logs/errors [get]
func (h *LogHandler) ListErrors(c *gin.Context) {
	filter, err := logFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	logs, pagination, err := h.service.ListErrors(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Error logs retrieved", logs, pagination)
}

// GetActivity godoc
// @Summary Get activity log entry
// @Tags Logs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Log ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /logs/activity/{id} [get]
func (h *LogHandler) GetActivity(c *gin.Context) {
	entry, err := h.service.GetActivity(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Activity log retrieved", entry)
}

// GetError godoc
// @Summary Get error log entry
// @Tags Logs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Log ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /logs/errors/{id} [get]
func (h *LogHandler) GetError(c *gin.Context) {
	entry, err := h.service.GetError(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Error log retrieved", entry)
}

// ExportActivity godoc
// @Summary Export activity logs
// @Tags Logs
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /logs/activity/export [get]
func (h *LogHandler) ExportActivity(c *gin.Context) {
	filter, err := logFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.service.ExportActivity(c.Request.Context(), filter, c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func logFilter(c *gin.Context) (models.LogFilter, error) {
	page, size := pageParams(c, 50)
	filter := models.LogFilter{
		IdentifierType: c.Query("identifier_type"),
		Identifier:     c.Query("identifier"),
		Page:           page,
		PageSize:       size,
	}
	var err error
	if filter.From, err = parseTimeParam(c.Query("from")); err != nil {
		return filter, err
	}
	if filter.To, err = parseTimeParam(c.Query("to")); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseTimeParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return &parsed, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q", value))
}
