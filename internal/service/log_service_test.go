package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/craft-api/internal/models"
	appErrors "github.com/noah-isme/craft-api/pkg/errors"
)

type memoryLogRepo struct {
	activities []models.ActivityLog
	errs       []models.ErrorLog
	lastFilter models.LogFilter
	createErr  error
	ctxErr     error
}

func (r *memoryLogRepo) CreateActivity(ctx context.Context, entry *models.ActivityLog) error {
	r.ctxErr = ctx.Err()
	if r.createErr != nil {
		return r.createErr
	}
	r.activities = append(r.activities, *entry)
	return nil
}

func (r *memoryLogRepo) CreateError(ctx context.Context, entry *models.ErrorLog) error {
	r.ctxErr = ctx.Err()
	if r.createErr != nil {
		return r.createErr
	}
	r.errs = append(r.errs, *entry)
	return nil
}

func (r *memoryLogRepo) ListActivity(ctx context.Context, filter models.LogFilter) ([]models.ActivityLog, int, error) {
	r.lastFilter = filter
	return r.activities, len(r.activities), nil
}

func (r *memoryLogRepo) ListErrors(ctx context.Context, filter models.LogFilter) ([]models.ErrorLog, int, error) {
	r.lastFilter = filter
	return r.errs, len(r.errs), nil
}

func (r *memoryLogRepo) FindActivity(ctx context.Context, id string) (*models.ActivityLog, error) {
	for i := range r.activities {
		if r.activities[i].ID == id {
			return &r.activities[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memoryLogRepo) FindError(ctx context.Context, id string) (*models.ErrorLog, error) {
	for i := range r.errs {
		if r.errs[i].ID == id {
			return &r.errs[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func TestLogServicePersistsAfterCancellation(t *testing.T) {
	repo := &memoryLogRepo{}
	core, recorded := observer.New(zap.InfoLevel)
	svc := NewLogService(repo, zap.New(core), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Activity(ctx, "User authenticated successfully", models.IdentifierEmail, "jane@example.com")
	svc.Error(ctx, "Invalid token", "", "", "")

	require.Len(t, repo.activities, 1)
	assert.NoError(t, repo.ctxErr)
	assert.Equal(t, "jane@example.com", *repo.activities[0].Identifier)
	require.Len(t, repo.errs, 1)
	assert.Nil(t, repo.errs[0].IdentifierType)
	assert.Nil(t, repo.errs[0].StackTrace)
	assert.Equal(t, 2, recorded.Len())
}

func TestLogServicePersistFailureIsLogged(t *testing.T) {
	repo := &memoryLogRepo{createErr: errors.New("db down")}
	core, recorded := observer.New(zap.WarnLevel)
	svc := NewLogService(repo, zap.New(core), nil, nil)

	svc.Activity(context.Background(), "hello", "", "")

	assert.Equal(t, 1, recorded.FilterMessage("failed to persist activity log").Len())
}

func TestLogServiceListPagination(t *testing.T) {
	repo := &memoryLogRepo{errs: []models.ErrorLog{{LogDetails: "boom"}}}
	svc := NewLogService(repo, nil, nil, nil)

	logs, pagination, err := svc.ListErrors(context.Background(), models.LogFilter{PageSize: 1000})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 50, pagination.PageSize)
}

func TestLogServiceExportActivity(t *testing.T) {
	identifier := "jane@example.com"
	idType := models.IdentifierEmail
	repo := &memoryLogRepo{activities: []models.ActivityLog{
		{LogDate: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), IdentifierType: &idType, Identifier: &identifier, LogDetails: "=HYPERLINK(\"x\")"},
	}}
	svc := NewLogService(repo, nil, nil, nil)
	svc.now = newClock().Now

	file, err := svc.ExportActivity(context.Background(), models.LogFilter{Page: 4, PageSize: 5}, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "activity-20240501-120000.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, maxExportRows, repo.lastFilter.PageSize)
	assert.Equal(t, 1, repo.lastFilter.Page)

	content := string(file.Data)
	assert.True(t, strings.HasPrefix(content, "Date,Identifier Type,Identifier,Details"))
	assert.Contains(t, content, "jane@example.com")
	assert.Contains(t, content, "'=HYPERLINK")

	pdf, err := svc.ExportActivity(context.Background(), models.LogFilter{}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)
	assert.True(t, strings.HasPrefix(string(pdf.Data), "%PDF"))

	_, err = svc.ExportActivity(context.Background(), models.LogFilter{}, "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestLogServiceGetByID(t *testing.T) {
	repo := &memoryLogRepo{
		activities: []models.ActivityLog{{ID: "l1", LogDetails: "Authentication success"}},
		errs:       []models.ErrorLog{{ID: "e1", LogDetails: "Refresh token revoked"}},
	}
	svc := NewLogService(repo, nil, nil, nil)

	activity, err := svc.GetActivity(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, "Authentication success", activity.LogDetails)

	entry, err := svc.GetError(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "Refresh token revoked", entry.LogDetails)

	_, err = svc.GetActivity(context.Background(), "e1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = svc.GetError(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
