package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeUserRegistered = "auth.user_registered"
	EventTypeUserLoggedIn   = "auth.user_logged_in"
	EventTypeUserLoggedOut  = "auth.user_logged_out"
	EventTypeTokenRotated   = "auth.token_rotated"
	EventTypeUserBanned     = "user.banned"
	EventTypeUserUnbanned   = "user.unbanned"
)

// SecurityEventTypes lists every event type the audit relay subscribes to.
func SecurityEventTypes() []string {
	return []string{
		EventTypeUserRegistered,
		EventTypeUserLoggedIn,
		EventTypeUserLoggedOut,
		EventTypeTokenRotated,
		EventTypeUserBanned,
		EventTypeUserUnbanned,
	}
}

// SecurityEvent is the shape relayed to the audit queue for every
// session-lifecycle transition. IPAddress is the client address that caused
// the transition ("System" for administrative actions).
type SecurityEvent struct {
	BaseEvent
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	IPAddress string `json:"ip_address"`
}

func newSecurityEvent(eventType string, userID int64, username, ipAddress string) *SecurityEvent {
	return &SecurityEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":    userID,
				"username":   username,
				"ip_address": ipAddress,
			},
		},
		UserID:    userID,
		Username:  username,
		IPAddress: ipAddress,
	}
}

func NewUserRegisteredEvent(userID int64, username, ipAddress string) *SecurityEvent {
	return newSecurityEvent(EventTypeUserRegistered, userID, username, ipAddress)
}

func NewUserLoggedInEvent(userID int64, username, ipAddress string) *SecurityEvent {
	return newSecurityEvent(EventTypeUserLoggedIn, userID, username, ipAddress)
}

func NewUserLoggedOutEvent(userID int64, ipAddress string) *SecurityEvent {
	return newSecurityEvent(EventTypeUserLoggedOut, userID, "", ipAddress)
}

func NewTokenRotatedEvent(userID int64, ipAddress string) *SecurityEvent {
	return newSecurityEvent(EventTypeTokenRotated, userID, "", ipAddress)
}

func NewUserBannedEvent(userID int64, revokedTokens int64) *SecurityEvent {
	ev := newSecurityEvent(EventTypeUserBanned, userID, "", "System")
	ev.Data["revoked_tokens"] = revokedTokens
	return ev
}

func NewUserUnbannedEvent(userID int64) *SecurityEvent {
	return newSecurityEvent(EventTypeUserUnbanned, userID, "", "System")
}
