package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specsharp/internal/auth"
	"specsharp/internal/calculation"
	"specsharp/internal/engine"
	"specsharp/internal/metrics"
	"specsharp/internal/quota"
	"specsharp/internal/taxonomy"
)

type testApp struct {
	router *gin.Engine
	auth   *auth.Service
}

func newTestApp(t *testing.T, ready func(context.Context) error) testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg, err := taxonomy.Default()
	require.NoError(t, err)
	holder := taxonomy.NewHolder(reg)
	engines, err := engine.NewProvider(holder, engine.DefaultConfig())
	require.NoError(t, err)

	tokens, err := auth.NewTokenIssuer("router-test-secret-0001", time.Hour)
	require.NoError(t, err)
	authSvc := auth.NewService(auth.NewInMemoryKeyRepository(), tokens)

	m := metrics.New()
	q := quota.NewService(quota.NewMemoryRepository(10), time.Second, nil, m)
	calc := calculation.NewService(engines, q, calculation.NewInMemoryRepository(), calculation.Options{Metrics: m})

	r := NewRouter(Deps{
		Metrics:      m,
		Tokens:       tokens,
		Auth:         auth.NewHandler(authSvc),
		Calculations: calculation.NewHandler(calc),
		Quota:        quota.NewHandler(q),
		Taxonomy:     taxonomy.NewHandler(holder),
		AllowOrigins: []string{"http://localhost:3000"},
		Ready:        ready,
	})
	return testApp{router: r, auth: authSvc}
}

func (a testApp) token(t *testing.T, role string) string {
	t.Helper()
	ctx := context.Background()
	plain, key, err := a.auth.IssueKey(ctx, "org-1", role+"@example.com", role)
	require.NoError(t, err)
	token, _, err := a.auth.Exchange(ctx, key.OrgID, key.Email, plain)
	require.NoError(t, err)
	return token
}

func serve(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	app := newTestApp(t, nil)

	w := serve(app.router, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyReflectsDependency(t *testing.T) {
	down := newTestApp(t, func(context.Context) error { return errors.New("db down") })
	assert.Equal(t, http.StatusServiceUnavailable, serve(down.router, http.MethodGet, "/ready", "", "").Code)

	up := newTestApp(t, func(context.Context) error { return nil })
	assert.Equal(t, http.StatusOK, serve(up.router, http.MethodGet, "/ready", "", "").Code)
}

func TestMetricsAndTaxonomyArePublic(t *testing.T) {
	app := newTestApp(t, nil)

	w := serve(app.router, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")

	assert.Equal(t, http.StatusOK, serve(app.router, http.MethodGet, "/taxonomy", "", "").Code)
}

func TestCalculationsRequireToken(t *testing.T) {
	app := newTestApp(t, nil)
	body := `{"description":"sports bar in Nashville","square_footage":4200,"location":"Nashville"}`

	assert.Equal(t, http.StatusUnauthorized, serve(app.router, http.MethodPost, "/calculations", "", body).Code)

	w := serve(app.router, http.MethodPost, "/calculations", app.token(t, auth.RoleMember), body)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	app := newTestApp(t, nil)

	w := serve(app.router, http.MethodPost, "/admin/taxonomy/reload", app.token(t, auth.RoleMember), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(app.router, http.MethodPost, "/admin/taxonomy/reload", app.token(t, auth.RoleAdmin), "")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/calculations", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
