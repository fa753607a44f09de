package audit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"jadwa/internal/middleware"
	"jadwa/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts read access to the trail under an admin-only group.
func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	g := admin.Group("/audit-logs")
	{
		g.GET("", h.ListRecent)
		g.GET("/:type/:id", h.ListByTarget)
	}
}

func (h *Handler) ListRecent(c *gin.Context) {
	limit := 50
	if s := c.Query("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}

	logs, err := h.service.Recent(c.Request.Context(), middleware.IdentityFrom(c), limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"audit_logs": logs})
}

func (h *Handler) ListByTarget(c *gin.Context) {
	logs, err := h.service.Trail(c.Request.Context(), middleware.IdentityFrom(c), c.Param("type"), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"audit_logs": logs})
}
