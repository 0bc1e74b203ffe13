package taxonomy

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"specsharp/internal/apperr"
)

// Publisher uploads the export of reg and returns where it was stored.
type Publisher func(ctx context.Context, reg *Registry) (string, error)

type Handler struct {
	holder  *Holder
	reload  func() error
	publish Publisher
}

func NewHandler(holder *Holder) *Handler {
	return &Handler{holder: holder}
}

// WithReloader enables POST /admin/taxonomy/reload.
func (h *Handler) WithReloader(fn func() error) *Handler {
	h.reload = fn
	return h
}

// WithPublisher enables POST /admin/taxonomy/publish.
func (h *Handler) WithPublisher(p Publisher) *Handler {
	h.publish = p
	return h
}

//
// --------------------------------------------------
// GET /taxonomy
// --------------------------------------------------
//

// GetExport serves the export document of the live registry. Clients
// asking for YAML get the canonical bytes the web tier checks in.
func (h *Handler) GetExport() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc := h.holder.Current().Export()

		if !wantsYAML(c.GetHeader("Accept")) {
			c.JSON(http.StatusOK, doc)
			return
		}

		data, err := MarshalExport(doc)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode taxonomy"})
			return
		}
		c.Data(http.StatusOK, "application/yaml", data)
	}
}

func wantsYAML(accept string) bool {
	accept = strings.ToLower(accept)
	return strings.Contains(accept, "yaml")
}

//
// --------------------------------------------------
// POST /admin/taxonomy/reload
// --------------------------------------------------
//

func (h *Handler) Reload() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.reload == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "taxonomy is compiled in; nothing to reload"})
			return
		}
		if err := h.reload(); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": err.Error(),
				"code":  apperr.CodeOf(err),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"version": h.holder.Current().Version()})
	}
}

//
// --------------------------------------------------
// POST /admin/taxonomy/publish
// --------------------------------------------------
//

func (h *Handler) Publish() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.publish == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "object storage is not configured"})
			return
		}
		reg := h.holder.Current()
		url, err := h.publish(c.Request.Context(), reg)
		if err != nil {
			c.JSON(apperr.HTTPStatus(err), gin.H{
				"error": err.Error(),
				"code":  apperr.CodeOf(err),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"version": reg.Version(), "url": url})
	}
}
