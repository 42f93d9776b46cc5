package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/craft-api/internal/models"
	"github.com/noah-isme/craft-api/internal/service"
)

type stubResolver struct {
	accounts map[string]*models.Account
	err      error
}

func (s stubResolver) AccountFromAccessToken(_ context.Context, token string) (*models.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.accounts[token], nil
}

var resolver = stubResolver{accounts: map[string]*models.Account{
	"admin-token": {ID: "admin-1", Role: models.RoleAdmin},
	"user-token":  {ID: "user-1", Role: models.RoleUser},
}}

func gatedRouter(calls *int, gate gin.HandlerFunc, r AccountResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(r, nil))
	handler := func(c *gin.Context) {
		*calls++
		c.Status(http.StatusNoContent)
	}
	router.GET("/accounts/:id", gate, handler)
	router.GET("/accounts", gate, handler)
	return router
}

func serve(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuthorizeRejectsWithoutCallingHandler(t *testing.T) {
	cases := []struct {
		name  string
		token string
	}{
		{"anonymous", ""},
		{"unknown token", "forged"},
		{"wrong role", "user-token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			router := gatedRouter(&calls, Authorize(models.RoleAdmin), resolver)

			rec := serve(router, "/accounts", tc.token)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("unexpected status: %d", rec.Code)
			}
			if rec.Body.String() != `{"message":"Unauthorized"}` {
				t.Fatalf("unexpected body: %s", rec.Body.String())
			}
			if calls != 0 {
				t.Fatalf("handler invoked %d times", calls)
			}
		})
	}
}

func TestAuthorizeAdmitsRole(t *testing.T) {
	calls := 0
	router := gatedRouter(&calls, Authorize(models.RoleAdmin), resolver)

	if rec := serve(router, "/accounts", "admin-token"); rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if calls != 1 {
		t.Fatalf("expected one handler call, got %d", calls)
	}
}

func TestAuthorizeWithoutRolesNeedsAnyAccount(t *testing.T) {
	calls := 0
	router := gatedRouter(&calls, Authorize(), resolver)

	if rec := serve(router, "/accounts", "user-token"); rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if rec := serve(router, "/accounts", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestAuthorizeSelfOr(t *testing.T) {
	calls := 0
	router := gatedRouter(&calls, AuthorizeSelfOr(models.RoleAdmin), resolver)

	if rec := serve(router, "/accounts/user-1", "user-token"); rec.Code != http.StatusNoContent {
		t.Fatalf("self: unexpected status %d", rec.Code)
	}
	if rec := serve(router, "/accounts/other", "user-token"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("other: unexpected status %d", rec.Code)
	}
	if rec := serve(router, "/accounts/other", "admin-token"); rec.Code != http.StatusNoContent {
		t.Fatalf("admin: unexpected status %d", rec.Code)
	}
	if calls != 2 {
		t.Fatalf("expected two handler calls, got %d", calls)
	}
}

func TestJWTResolverFailure(t *testing.T) {
	calls := 0
	router := gatedRouter(&calls, Authorize(), stubResolver{err: errors.New("db down")})

	if rec := serve(router, "/accounts", "user-token"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if calls != 0 {
		t.Fatalf("handler invoked %d times", calls)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "abc",
		"Basic abc":   "",
		"abc":         "",
		"":            "",
	}
	for header, want := range cases {
		if got := bearerToken(header); got != want {
			t.Fatalf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

type fixedWindowStore struct {
	counts map[string]int64
	err    error
}

func (s *fixedWindowStore) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if s.err != nil {
		return 0, 0, s.err
	}
	s.counts[key]++
	return s.counts[key], 1500 * time.Millisecond, nil
}

func rateLimitedRouter(store RateLimitStore, metrics *service.MetricsService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(store, RateLimitOptions{Requests: 2, Window: time.Minute, Metrics: metrics}))
	router.POST("/accounts/authenticate", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func TestRateLimitRejectsAfterLimit(t *testing.T) {
	metrics := service.NewMetricsService()
	router := rateLimitedRouter(&fixedWindowStore{counts: map[string]int64{}}, metrics)

	var rec *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/accounts/authenticate", nil))
	}

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("unexpected Retry-After: %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("unexpected remaining: %q", got)
	}
	if got := metrics.Snapshot().RateLimited; got != 1 {
		t.Fatalf("expected one rate limited request, got %d", got)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	router := rateLimitedRouter(&fixedWindowStore{err: errors.New("redis down")}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/accounts/authenticate", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestMetricsMiddlewareObservesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	if got := metrics.Snapshot().RequestsTotal; got != 2 {
		t.Fatalf("expected two observed requests, got %d", got)
	}
}
