package chat

import "jadwa/internal/domain"

// Client event types.
const (
	EventAuthenticate = "authenticate"
	EventSubscribe    = "subscribe"
	EventUnsubscribe  = "unsubscribe"
	EventSend         = "send"
	EventMarkRead     = "mark_read"
	EventPing         = "ping"
)

// Server event types.
const (
	EventAuthenticated = "authenticated"
	EventSubscribed    = "subscribed"
	EventUnsubscribed  = "unsubscribed"
	EventNewMessage    = "new_message"
	EventRead          = "read"
	EventError         = "error"
	EventPong          = "pong"
)

type ClientEvent struct {
	Type           string  `json:"type"`
	Token          string  `json:"token,omitempty"`
	ConsultationID string  `json:"consultation_id,omitempty"`
	Message        string  `json:"message,omitempty"`
	FileURL        *string `json:"file_url,omitempty"`
	FileName       *string `json:"file_name,omitempty"`
	MessageID      string  `json:"message_id,omitempty"`
}

type ServerEvent struct {
	Type           string          `json:"type"`
	ConsultationID string          `json:"consultation_id,omitempty"`
	Message        *domain.Message `json:"message,omitempty"`
	MessageID      string          `json:"message_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	Code           string          `json:"code,omitempty"`
	Error          string          `json:"error,omitempty"`
}

func NewMessageEvent(msg *domain.Message) *ServerEvent {
	return &ServerEvent{
		Type:           EventNewMessage,
		ConsultationID: msg.ConsultationID,
		Message:        msg,
	}
}

func NewErrorEvent(code, message string) *ServerEvent {
	return &ServerEvent{
		Type:  EventError,
		Code:  code,
		Error: message,
	}
}
