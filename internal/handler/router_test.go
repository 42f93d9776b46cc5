package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/craft-api/internal/models"
	"github.com/noah-isme/craft-api/internal/service"
	appErrors "github.com/noah-isme/craft-api/pkg/errors"
)

type accountServiceMock struct {
	calls int
}

func (m *accountServiceMock) List(ctx context.Context, actor *models.Account, page, pageSize int) ([]models.AccountResponse, *models.Pagination, error) {
	m.calls++
	return []models.AccountResponse{{ID: "a1"}}, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: 1}, nil
}

func (m *accountServiceMock) Get(ctx context.Context, actor *models.Account, id string) (*models.AccountResponse, error) {
	m.calls++
	return &models.AccountResponse{ID: id}, nil
}

func (m *accountServiceMock) Create(ctx context.Context, actor *models.Account, req models.CreateAccountRequest) (*models.AccountResponse, error) {
	m.calls++
	return &models.AccountResponse{ID: "new", Email: req.Email}, nil
}

func (m *accountServiceMock) Update(ctx context.Context, actor *models.Account, id string, req models.UpdateAccountRequest) (*models.AccountResponse, error) {
	m.calls++
	return &models.AccountResponse{ID: id}, nil
}

func (m *accountServiceMock) Delete(ctx context.Context, actor *models.Account, id string) error {
	m.calls++
	return nil
}

type logServiceMock struct{}

func (logServiceMock) ListActivity(ctx context.Context, filter models.LogFilter) ([]models.ActivityLog, *models.Pagination, error) {
	return nil, &models.Pagination{}, nil
}

func (logServiceMock) ListErrors(ctx context.Context, filter models.LogFilter) ([]models.ErrorLog, *models.Pagination, error) {
	return nil, &models.Pagination{}, nil
}

func (logServiceMock) GetActivity(ctx context.Context, id string) (*models.ActivityLog, error) {
	if id != "l1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Activity log not found")
	}
	return &models.ActivityLog{ID: id, LogDetails: "Authentication success"}, nil
}

func (logServiceMock) GetError(ctx context.Context, id string) (*models.ErrorLog, error) {
	if id != "e1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Error log not found")
	}
	return &models.ErrorLog{ID: id, LogDetails: "Authentication failed"}, nil
}

func (logServiceMock) ExportActivity(ctx context.Context, filter models.LogFilter, format string) (*service.ExportFile, error) {
	return &service.ExportFile{Filename: "activity-20240501-120000." + format, ContentType: "text/csv", Data: []byte("Date\n")}, nil
}

type emailServiceMock struct {
	events []models.DeliveryEvent
}

func (m *emailServiceMock) List(ctx context.Context, status string, page, pageSize int) ([]models.Email, *models.Pagination, error) {
	return []models.Email{{ID: "m1", Status: status}}, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: 1}, nil
}

func (m *emailServiceMock) Get(ctx context.Context, id string) (*models.Email, error) {
	return &models.Email{ID: id, Status: models.EmailStatusSent}, nil
}

func (m *emailServiceMock) ProcessDeliveryEvent(ctx context.Context, token string, event models.DeliveryEvent) error {
	if token != "hook-secret" {
		return appErrors.Clone(appErrors.ErrForbidden, "Invalid webhook token")
	}
	m.events = append(m.events, event)
	return nil
}

type tokenResolver map[string]*models.Account

func (r tokenResolver) AccountFromAccessToken(ctx context.Context, token string) (*models.Account, error) {
	return r[token], nil
}

func newTestRouter(accounts *accountServiceMock, checks map[string]Pinger) *gin.Engine {
	return newTestRouterWithEmails(accounts, &emailServiceMock{}, checks)
}

func newTestRouterWithEmails(accounts *accountServiceMock, emails *emailServiceMock, checks map[string]Pinger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	return NewRouter(RouterDeps{
		Config:          RouterConfig{APIPrefix: "/api/v1", EnableMetrics: true},
		Metrics:         metrics,
		Resolver:        tokenResolver{"admin": {ID: "admin-1", Role: models.RoleAdmin}, "user": {ID: "user-1", Role: models.RoleUser}},
		Auth:            NewAuthHandler(&authServiceMock{}, CookieConfig{}, ""),
		Accounts:        NewAccountHandler(accounts),
		ContactMessages: NewContactMessageHandler(nil),
		Logs:            NewLogHandler(logServiceMock{}),
		Emails:          NewEmailHandler(emails),
		Health:          NewMetricsHandler(metrics, checks),
	})
}

func doRequest(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouterGatesAccountRoutes(t *testing.T) {
	accounts := &accountServiceMock{}
	router := newTestRouter(accounts, nil)

	assert.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "/api/v1/accounts", "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "/api/v1/accounts", "user").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "/api/v1/accounts/admin-1", "user").Code)
	assert.Equal(t, 0, accounts.calls)

	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/v1/accounts", "admin").Code)
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/v1/accounts/user-1", "user").Code)
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodDelete, "/api/v1/accounts/user-1", "admin").Code)
	assert.Equal(t, 3, accounts.calls)
}

func TestRouterLogExport(t *testing.T) {
	router := newTestRouter(&accountServiceMock{}, nil)

	assert.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "/api/v1/logs/activity/export", "user").Code)

	w := doRequest(router, http.MethodGet, "/api/v1/logs/activity/export?format=csv", "admin")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="activity-20240501-120000.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Date\n", w.Body.String())

	w = doRequest(router, http.MethodGet, "/api/v1/logs/activity?from=yesterday", "admin")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouterHealthAndReady(t *testing.T) {
	router := newTestRouter(&accountServiceMock{}, map[string]Pinger{
		"database": PingFunc(func(context.Context) error { return nil }),
	})
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/ready", "").Code)

	router = newTestRouter(&accountServiceMock{}, map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	w := doRequest(router, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "connection refused"))
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(&accountServiceMock{}, nil)
	doRequest(router, http.MethodGet, "/health", "")

	w := doRequest(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",path="/health",status="200"} 1`)
}

func TestRouterLogEntries(t *testing.T) {
	router := newTestRouter(&accountServiceMock{}, nil)

	assert.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "/api/v1/logs/activity/l1", "user").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "/api/v1/logs/errors/e1", "").Code)

	w := doRequest(router, http.MethodGet, "/api/v1/logs/activity/l1", "admin")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"log_details":"Authentication success"`)

	w = doRequest(router, http.MethodGet, "/api/v1/logs/errors/e1", "admin")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"log_details":"Authentication failed"`)

	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/api/v1/logs/errors/missing", "admin").Code)

	w = doRequest(router, http.MethodGet, "/api/v1/logs/activity/export", "admin")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Date\n", w.Body.String())
}

func TestRouterEmailArchiveIsAdminOnly(t *testing.T) {
	router := newTestRouter(&accountServiceMock{}, nil)

	assert.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "/api/v1/emails", "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "/api/v1/emails/m1", "user").Code)

	w := doRequest(router, http.MethodGet, "/api/v1/emails?status=failed", "admin")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"failed"`)

	w = doRequest(router, http.MethodGet, "/api/v1/emails/m1", "admin")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"m1"`)
}

func TestRouterDeliveryEventWebhook(t *testing.T) {
	emails := &emailServiceMock{}
	router := newTestRouterWithEmails(&accountServiceMock{}, emails, nil)

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := post("/api/v1/emails/delivery-event/hook-secret", `{"RecordType":"Delivery","MessageID":"m1","Email":"jane@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, emails.events, 1)
	assert.Equal(t, "m1", emails.events[0].MessageID)

	assert.Equal(t, http.StatusForbidden, post("/api/v1/emails/delivery-event/guess", `{"RecordType":"Delivery","MessageID":"m1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post("/api/v1/emails/delivery-event/hook-secret", `{"RecordType":"Delivery"}`).Code)
	assert.Len(t, emails.events, 1)
}
