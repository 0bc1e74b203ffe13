package quota

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"specsharp/internal/apperr"
	"specsharp/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// -----------------------------
// GET /quota
// -----------------------------
func (h *Handler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := middleware.PrincipalFrom(c)
		snap, err := h.service.Snapshot(c.Request.Context(), p.OrgID)
		if err != nil {
			c.JSON(apperr.HTTPStatus(err), gin.H{
				"error": err.Error(),
				"code":  apperr.CodeOf(err),
			})
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}
