package taxonomy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTaxonomyRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg, err := Default()
	require.NoError(t, err)

	r := gin.New()
	r.GET("/taxonomy", NewHandler(NewHolder(reg)).GetExport())
	return r
}

func TestGetExportJSON(t *testing.T) {
	r := newTaxonomyRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/taxonomy", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var doc ExportDocument
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Len(t, doc.Entries, 12)
}

func TestGetExportYAMLIsCanonical(t *testing.T) {
	r := newTaxonomyRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/taxonomy", nil)
	req.Header.Set("Accept", "application/yaml")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))

	canon, err := Canonicalize(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, canon, w.Body.Bytes())
}

func TestAdminEndpointsDisabledByDefault(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg, err := Default()
	require.NoError(t, err)
	h := NewHandler(NewHolder(reg))

	r := gin.New()
	r.POST("/reload", h.Reload())
	r.POST("/publish", h.Publish())

	for _, path := range []string{"/reload", "/publish"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusNotImplemented, w.Code, path)
	}
}

func TestReloadAndPublish(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg, err := Default()
	require.NoError(t, err)
	holder := NewHolder(reg)

	next, err := Load(withVersion(t, "2"))
	require.NoError(t, err)
	fail := false

	var published *Registry
	h := NewHandler(holder).
		WithReloader(func() error {
			if fail {
				return errors.New("bad document")
			}
			holder.Swap(next)
			return nil
		}).
		WithPublisher(func(_ context.Context, r *Registry) (string, error) {
			published = r
			return "https://cdn.example.com/taxonomy.yaml", nil
		})

	r := gin.New()
	r.POST("/reload", h.Reload())
	r.POST("/publish", h.Publish())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/reload", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"version":2}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/publish", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Same(t, next, published)
	assert.Contains(t, w.Body.String(), "cdn.example.com")

	fail = true
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/reload", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
