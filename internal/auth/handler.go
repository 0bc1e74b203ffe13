package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"specsharp/internal/apperr"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type tokenRequest struct {
	OrgID  string `json:"org_id" binding:"required"`
	Email  string `json:"email" binding:"required"`
	APIKey string `json:"api_key" binding:"required"`
}

// -----------------------------
// POST /auth/token
// -----------------------------
func (h *Handler) Token() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid request",
				"code":  apperr.CodeInvalidInput,
			})
			return
		}

		token, exp, err := h.service.Exchange(c.Request.Context(), req.OrgID, req.Email, req.APIKey)
		if err != nil {
			c.JSON(apperr.HTTPStatus(err), gin.H{
				"error": err.Error(),
				"code":  apperr.CodeOf(err),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"token_type": "Bearer",
			"expires_at": exp.UTC().Format(time.RFC3339),
		})
	}
}
