package consultation

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"jadwa/internal/domain"
	"jadwa/internal/middleware"
	"jadwa/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	consultations := rg.Group("/consultations")
	{
		consultations.GET("/my", h.ListMine)
		consultations.POST("/book", middleware.RequireRole(domain.RoleClient), h.Book)
		consultations.GET("/:id", h.Get)
		consultations.PUT("/:id/status", h.UpdateStatus)
		consultations.PUT("/:id/assign-consultant", middleware.AdminOnly(), h.AssignConsultant)
	}
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.GET("/consultations", h.AdminList)
	admin.PUT("/consultations/:id/approve", h.Approve)
}

// ListMine serves GET /consultations/my?type=chat&status=confirmed.
func (h *Handler) ListMine(c *gin.Context) {
	filter := ListFilter{
		Type:   domain.ConsultationType(c.Query("type")),
		Status: domain.ConsultationStatus(c.Query("status")),
	}
	rows, err := h.service.List(c.Request.Context(), middleware.IdentityFrom(c), filter)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"consultations": rows})
}

func (h *Handler) Book(c *gin.Context) {
	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	res, err := h.service.Book(c.Request.Context(), middleware.IdentityFrom(c), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, res)
}

func (h *Handler) Get(c *gin.Context) {
	row, err := h.service.Get(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"consultation": row})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	row, err := h.service.UpdateStatus(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"consultation": row})
}

func (h *Handler) AssignConsultant(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	row, err := h.service.AssignConsultant(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), req.ConsultantID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"consultation": row})
}

// Approve accepts an optional body; an empty one approves without assigning.
func (h *Handler) Approve(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	row, err := h.service.ApproveOrAssign(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), req.ConsultantID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"consultation": row})
}

func (h *Handler) AdminList(c *gin.Context) {
	rows, err := h.service.AdminList(c.Request.Context(), middleware.IdentityFrom(c), AdminView(c.Query("view")))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"consultations": rows})
}
