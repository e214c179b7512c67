package docs

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/bizgw/internal/identity"
	"github.com/vyrodovalexey/bizgw/internal/util"
)

// AdminRole may clear the documentation cache.
const AdminRole = "Admin"

// Handler serves the documentation endpoints.
type Handler struct {
	agg *Aggregator
}

// NewHandler creates a Handler.
func NewHandler(agg *Aggregator) *Handler {
	return &Handler{agg: agg}
}

// Register mounts the endpoints under base, typically "/api-docs".
func (h *Handler) Register(r gin.IRouter, base string) {
	g := r.Group(base)
	g.GET("", h.Index)
	g.GET("/:service/swagger.json", h.Document)
	g.DELETE("/cache", h.ClearCache)
}

type indexEntry struct {
	Name   string `json:"name"`
	Prefix string `json:"prefix"`
	URL    string `json:"url"`
}

// Index lists the available documents.
func (h *Handler) Index(c *gin.Context) {
	base := strings.TrimSuffix(c.FullPath(), "/")
	entries := []indexEntry{{Name: "all", URL: base + "/all/swagger.json"}}
	for _, s := range h.agg.Services() {
		entries = append(entries, indexEntry{
			Name:   s.Name,
			Prefix: s.Prefix,
			URL:    base + "/" + strings.ToLower(s.Name) + "/swagger.json",
		})
	}
	c.JSON(http.StatusOK, entries)
}

// Document serves the merged document for "all" and a single service's
// document otherwise. Unknown and unreachable services are both 404.
func (h *Handler) Document(c *gin.Context) {
	name := c.Param("service")
	if strings.EqualFold(name, "all") {
		c.JSON(http.StatusOK, h.agg.Aggregate(c.Request.Context()))
		return
	}

	doc, err := h.agg.FetchServiceDoc(c.Request.Context(), name)
	switch {
	case errors.Is(err, ErrServiceNotFound):
		abort(c, http.StatusNotFound, "unknown service "+name)
	case err != nil:
		abort(c, http.StatusNotFound, "documentation for "+name+" is unavailable")
	default:
		c.JSON(http.StatusOK, doc)
	}
}

// ClearCache drops cached documents. Admin only.
func (h *Handler) ClearCache(c *gin.Context) {
	p := identity.FromContext(c.Request.Context())
	if p == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, util.ErrorResponse{
			Code: util.CodeUnauthorized, Message: "authentication required",
		})
		return
	}
	if !p.HasRole(AdminRole) {
		c.AbortWithStatusJSON(http.StatusForbidden, util.ErrorResponse{
			Code: util.CodeForbidden, Message: "admin role required",
		})
		return
	}
	if err := h.agg.ClearCache(c.Request.Context()); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, util.ErrorResponse{
			Code: util.CodeInternal, Message: "could not clear cache",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, util.ErrorResponse{Code: util.CodeNotFound, Message: msg})
}
