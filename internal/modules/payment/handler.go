package payment

import (
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
	rg.POST("/payments", middleware.RequireRole(domain.RoleClient), h.Create)
	rg.GET("/payments/consultation/:id", h.ListForConsultation)
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.PUT("/payments/:id/confirm", h.Confirm)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	p, err := h.service.Create(c.Request.Context(), middleware.IdentityFrom(c), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"payment": p})
}

// Confirm is the admin-only payment confirmation.
func (h *Handler) Confirm(c *gin.Context) {
	p, err := h.service.Confirm(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"payment": p})
}

func (h *Handler) ListForConsultation(c *gin.Context) {
	payments, err := h.service.ListForEngagement(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"payments": payments})
}
