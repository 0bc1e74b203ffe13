package quota

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specsharp/internal/middleware"
)

func TestGetSnapshot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService(NewMemoryRepository(4), 0, nil, nil)
	_, err := svc.Consume(context.Background(), "org-1", "a@example.com")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/quota", func(c *gin.Context) {
		c.Set(middleware.KeyOrgID, "org-1")
		c.Next()
	}, NewHandler(svc).Get())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/quota", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"included":4,"bonus":0,"used":1,"remaining":3,"unlimited":false}`, w.Body.String())
}
