package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"specsharp/internal/apperr"
	"specsharp/internal/auth"
)

// Context keys set by AuthMiddleware.
const (
	KeyOrgID     = "orgID"
	KeyUserEmail = "userEmail"
	KeyUserRole  = "userRole"
)

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": msg,
		"code":  apperr.CodeUnauthorized,
	})
}

func AuthMiddleware(tokens *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" {
			unauthorized(c, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(c, "invalid authorization format, use 'Bearer <token>'")
			return
		}

		p, err := tokens.Validate(parts[1])
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		// Attach principal to request context
		c.Set(KeyOrgID, p.OrgID)
		c.Set(KeyUserEmail, p.Email)
		c.Set(KeyUserRole, p.Role)
		c.Next()
	}
}

// PrincipalFrom reads what AuthMiddleware stored.
func PrincipalFrom(c *gin.Context) auth.Principal {
	return auth.Principal{
		OrgID: c.GetString(KeyOrgID),
		Email: c.GetString(KeyUserEmail),
		Role:  c.GetString(KeyUserRole),
	}
}
