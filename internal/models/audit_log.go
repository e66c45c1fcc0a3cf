package models

import (
	"encoding/json"
	"time"
)

// AuditEvent represents the type of audit event.
type AuditEvent string

const (
	AuditEventLogin        AuditEvent = "auth.login"
	AuditEventLoginFailed  AuditEvent = "auth.login_failed"
	AuditEventLogout       AuditEvent = "auth.logout"
	AuditEventOAuthLogin   AuditEvent = "auth.oauth_login"
	AuditEventOAuthFailed  AuditEvent = "auth.oauth_failed"
	AuditEventRegister     AuditEvent = "auth.register"
	AuditEventTokenRefresh AuditEvent = "auth.token_refresh"
	AuditEventUnlink       AuditEvent = "auth.provider_unlink"
)

// AuditLog records a security-relevant event.
type AuditLog struct {
	ID        string          `json:"id" db:"id"`
	UserID    *string         `json:"user_id,omitempty" db:"user_id"`
	EventType AuditEvent      `json:"event_type" db:"event_type"`
	IPAddress *string         `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent *string         `json:"user_agent,omitempty" db:"user_agent"`
	Success   bool            `json:"success" db:"success"`
	Details   json.RawMessage `json:"details,omitempty" db:"details"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// AuditLogFilter narrows audit log queries.
type AuditLogFilter struct {
	UserID    *string
	EventType *AuditEvent
	Success   *bool
	Since     *time.Time
	Until     *time.Time
	Limit     int
	Offset    int
}
