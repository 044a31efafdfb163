package nats

import (
	"fmt"
	"time"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// StreamEvents holds audit events from the admin surface and the
// quota gate.
const StreamEvents = "ALBUMFORGE_EVENTS"

// SubjectAuditEvent is where audit events are published.
const SubjectAuditEvent = "albumforge.events.audit"

// AuditEvent records a key lifecycle action or a quota denial.
// ResourceID is the quota record's id, when one is involved.
type AuditEvent struct {
	EventType  string    `json:"event_type"`
	Severity   string    `json:"severity"` // info, warn, error
	ResourceID string    `json:"resource_id,omitempty"`
	ClientKey  string    `json:"client_key,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Audit event types.
const (
	EventKeyCreated  = "key_created"
	EventKeyUpdated  = "key_updated"
	EventKeyDeleted  = "key_deleted"
	EventQuotaDenied = "quota_denied"
	EventSchemaSetup = "schema_setup"
)

func NewKeyCreatedEvent(resourceID, clientKey string, dailyLimit int) AuditEvent {
	return AuditEvent{
		EventType:  EventKeyCreated,
		Severity:   "info",
		ResourceID: resourceID,
		ClientKey:  clientKey,
		Details:    fmt.Sprintf("key created with daily limit %d", dailyLimit),
		Timestamp:  time.Now().UTC(),
	}
}

func NewKeyUpdatedEvent(resourceID, tier string, dailyLimit int) AuditEvent {
	return AuditEvent{
		EventType:  EventKeyUpdated,
		Severity:   "info",
		ResourceID: resourceID,
		Details:    fmt.Sprintf("key updated to tier %q, daily limit %d", tier, dailyLimit),
		Timestamp:  time.Now().UTC(),
	}
}

func NewKeyDeletedEvent(resourceID string) AuditEvent {
	return AuditEvent{
		EventType:  EventKeyDeleted,
		Severity:   "warn",
		ResourceID: resourceID,
		Details:    "key deleted",
		Timestamp:  time.Now().UTC(),
	}
}

func NewQuotaDeniedEvent(clientKey string, dailyLimit int) AuditEvent {
	return AuditEvent{
		EventType: EventQuotaDenied,
		Severity:  "warn",
		ClientKey: clientKey,
		Details:   fmt.Sprintf("daily limit of %d exhausted", dailyLimit),
		Timestamp: time.Now().UTC(),
	}
}

func NewSchemaSetupEvent(version uint) AuditEvent {
	return AuditEvent{
		EventType: EventSchemaSetup,
		Severity:  "info",
		Details:   fmt.Sprintf("schema migrated to version %d", version),
		Timestamp: time.Now().UTC(),
	}
}
