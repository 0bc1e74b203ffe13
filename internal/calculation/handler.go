package calculation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"specsharp/internal/apperr"
	"specsharp/internal/classifier"
	"specsharp/internal/engine"
	"specsharp/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{
		"error": err.Error(),
		"code":  apperr.CodeOf(err),
	})
}

func bindRequest(c *gin.Context) (engine.Request, bool) {
	var req engine.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request: " + err.Error(),
			"code":  apperr.CodeInvalidInput,
		})
		return req, false
	}
	return req, true
}

// -----------------------------
// POST /calculations
// -----------------------------
func (h *Handler) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindRequest(c)
		if !ok {
			return
		}

		run, snap, err := h.service.Calculate(c.Request.Context(), middleware.PrincipalFrom(c), req)
		if err != nil {
			if apperr.CodeOf(err) == apperr.CodeQuotaExceeded {
				c.JSON(http.StatusTooManyRequests, gin.H{
					"error": err.Error(),
					"code":  apperr.CodeQuotaExceeded,
					"quota": snap,
				})
				return
			}
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":         run.ID,
			"created_at": run.CreatedAt,
			"result":     run.Result,
			"quota":      snap,
		})
	}
}

// -----------------------------
// POST /calculations/preview
// -----------------------------
func (h *Handler) Preview() gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindRequest(c)
		if !ok {
			return
		}

		res, snap, err := h.service.Preview(c.Request.Context(), middleware.PrincipalFrom(c), req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"result": res,
			"quota":  snap,
		})
	}
}

// -----------------------------
// GET /calculations/:id
// -----------------------------
func (h *Handler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		run, drift, err := h.service.Get(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		if drift == nil {
			drift = []engine.Drift{}
		}

		c.JSON(http.StatusOK, gin.H{
			"id":         run.ID,
			"created_at": run.CreatedAt,
			"request":    run.Request,
			"result":     run.Result,
			"drift":      drift,
		})
	}
}

type classifyRequest struct {
	Text         string `json:"text"`
	BuildingType string `json:"building_type"`
	Subtype      string `json:"subtype"`
	ProjectClass string `json:"project_class"`
}

// -----------------------------
// POST /classify
// -----------------------------
func (h *Handler) Classify() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req classifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid request",
				"code":  apperr.CodeInvalidInput,
			})
			return
		}

		class, err := engine.ParseProjectClass(req.ProjectClass)
		if err != nil {
			respondError(c, err)
			return
		}

		res, err := h.service.Classify(classifier.Input{
			Text:         req.Text,
			BuildingType: req.BuildingType,
			Subtype:      req.Subtype,
			ProjectClass: class,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, res)
	}
}
