package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"specsharp/internal/auth"
	"specsharp/internal/calculation"
	"specsharp/internal/metrics"
	"specsharp/internal/middleware"
	"specsharp/internal/quota"
	"specsharp/internal/taxonomy"
)

// Deps are the handlers and collaborators the router mounts. Ready is
// optional and backs GET /ready.
type Deps struct {
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Tokens       *auth.TokenIssuer
	Auth         *auth.Handler
	Calculations *calculation.Handler
	Quota        *quota.Handler
	Taxonomy     *taxonomy.Handler
	AllowOrigins []string
	Ready        func(ctx context.Context) error
}

func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))

	if len(d.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Health check route
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if d.Ready != nil {
			if err := d.Ready(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	r.POST("/auth/token", d.Auth.Token())
	r.GET("/taxonomy", d.Taxonomy.GetExport())

	api := r.Group("/", middleware.AuthMiddleware(d.Tokens))
	{
		api.POST("/classify", d.Calculations.Classify())
		api.POST("/calculations", d.Calculations.Create())
		api.POST("/calculations/preview", d.Calculations.Preview())
		api.GET("/calculations/:id", d.Calculations.Get())
		api.GET("/quota", d.Quota.Get())
	}

	admin := r.Group("/admin", middleware.AuthMiddleware(d.Tokens), middleware.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/taxonomy/reload", d.Taxonomy.Reload())
		admin.POST("/taxonomy/publish", d.Taxonomy.Publish())
	}

	return r
}
