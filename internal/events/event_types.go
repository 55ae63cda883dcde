package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded       EventType = "login_succeeded"
	EventLoginFailed          EventType = "login_failed"
	EventUserRegistered       EventType = "user_registered"
	EventRegistrationRejected EventType = "registration_rejected"
	EventTokenRejected        EventType = "token_rejected"
)

// Event represents an authentication event emitted by services.
// Payload never carries passwords or tokens.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Username  string      `json:"username"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, username string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Username:  username,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// RejectionPayload explains why a registration or token was turned away.
type RejectionPayload struct {
	Reason string `json:"reason"`
}

// RegisteredPayload describes a newly created account.
type RegisteredPayload struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}
