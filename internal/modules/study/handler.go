package study

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
	studies := rg.Group("/study-requests")
	{
		studies.GET("/my", h.ListMine)
		studies.GET("/open", middleware.RequireRole(domain.RoleConsultant, domain.RoleAdmin), h.ListOpen)
		studies.POST("", middleware.RequireRole(domain.RoleClient), h.Create)
		studies.GET("/:id", h.Get)
		studies.PUT("/:id/quote", middleware.RequireRole(domain.RoleConsultant, domain.RoleAdmin), h.Quote)
		studies.PUT("/:id/approve", middleware.RequireRole(domain.RoleClient, domain.RoleAdmin), h.Approve)
		studies.PUT("/:id/complete", middleware.RequireRole(domain.RoleConsultant, domain.RoleAdmin), h.Complete)
		studies.PUT("/:id/reject", h.Reject)
	}
}

func (h *Handler) ListMine(c *gin.Context) {
	rows, err := h.service.List(c.Request.Context(), middleware.IdentityFrom(c), domain.StudyStatus(c.Query("status")))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"study_requests": rows})
}

func (h *Handler) ListOpen(c *gin.Context) {
	rows, err := h.service.ListOpen(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"study_requests": rows})
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}
	sr, err := h.service.Create(c.Request.Context(), middleware.IdentityFrom(c), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"study_request": sr})
}

func (h *Handler) Get(c *gin.Context) {
	sr, err := h.service.Get(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"study_request": sr})
}

func (h *Handler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}
	sr, err := h.service.Quote(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"study_request": sr})
}

func (h *Handler) Approve(c *gin.Context) {
	sr, err := h.service.Approve(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"study_request": sr})
}

func (h *Handler) Complete(c *gin.Context) {
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}
	sr, err := h.service.Complete(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"study_request": sr})
}

func (h *Handler) Reject(c *gin.Context) {
	var req RejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
			return
		}
	}
	sr, err := h.service.Reject(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"study_request": sr})
}
