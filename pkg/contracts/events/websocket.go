// Package events contains the WebSocket event contract for the CalqTrade
// calculation service.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Core event: a session's lot lists or derived figures changed
	MessageTypeSessionSnapshot MessageType = "session:snapshot"

	// Connection messages
	MessageTypeConnect     MessageType = "connect"
	MessageTypeDisconnect  MessageType = "disconnect"
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeError       MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// SubscribeRequest is sent by a client to follow a session's snapshots
type SubscribeRequest struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

// SessionSnapshot is pushed after every lot mutation on a subscribed session
type SessionSnapshot struct {
	SessionID string      `json:"session_id"`
	Session   interface{} `json:"session"`
	Position  interface{} `json:"position,omitempty"`
	Intraday  interface{} `json:"intraday,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ErrorMessage represents an error pushed to a client
type ErrorMessage struct {
	BaseMessage
	Data struct {
		Code    string      `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	} `json:"data"`
}

// NewMessage creates a stamped WebSocket message
func NewMessage(msgType MessageType, data interface{}) WebSocketMessage {
	return WebSocketMessage{
		BaseMessage: BaseMessage{
			Type:      msgType,
			Timestamp: time.Now(),
		},
		Data: data,
	}
}
