package chat

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"jadwa/internal/middleware"
	"jadwa/internal/pkg/response"
)

type Handler struct {
	relay *Relay
	ws    *WSHandler
}

func NewHandler(relay *Relay, ws *WSHandler) *Handler {
	return &Handler{relay: relay, ws: ws}
}

// RegisterPublicRoutes mounts the websocket endpoint. It authenticates on
// its own, either through ?token= or an authenticate event.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/ws/chat", h.ws.HandleWebSocket)
}

func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.GET("/consultations/:id/messages", h.History)
	rg.POST("/consultations/:id/messages", h.Send)
	rg.PUT("/consultations/:id/messages/read", h.MarkRoomRead)
	rg.GET("/consultations/:id/messages/unread-count", h.UnreadCount)
	rg.PUT("/messages/:id/read", h.MarkRead)
}

type sendMessageRequest struct {
	Message  string  `json:"message"`
	FileURL  *string `json:"file_url"`
	FileName *string `json:"file_name"`
}

// History serves GET /consultations/:id/messages?limit=50&before=<seq>.
func (h *Handler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	before, _ := strconv.ParseInt(c.DefaultQuery("before", "0"), 10, 64)

	messages, err := h.relay.History(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), limit, before)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	msg, err := h.relay.SendAs(c.Request.Context(), middleware.IdentityFrom(c), SendInput{
		ConsultationID: c.Param("id"),
		Body:           req.Message,
		FileURL:        req.FileURL,
		FileName:       req.FileName,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"message": msg})
}

func (h *Handler) MarkRead(c *gin.Context) {
	if err := h.relay.MarkRead(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message_id": c.Param("id"), "read": true})
}

func (h *Handler) MarkRoomRead(c *gin.Context) {
	n, err := h.relay.MarkRoomRead(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"marked": n})
}

func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.relay.UnreadCount(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unread": n})
}
