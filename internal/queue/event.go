// Package queue defines message payloads exchanged over the message broker.
package queue

// Activity event types published by the API.
const (
	EventUserRegistered  = "user.registered"
	EventUserDeactivated = "user.deactivated"
	EventProjectCreated  = "project.created"
	EventProjectDeleted  = "project.deleted"
	EventTaskCompleted   = "task.completed"
	EventSessionsRevoked = "sessions.revoked"
)

// ActivityEvent is published whenever something auditable happens.  It
// carries enough information for downstream consumers to log or notify
// without querying the primary database.  Credentials never appear here.
type ActivityEvent struct {
	EventID    string `json:"event_id"`
	Type       string `json:"type"`
	ActorID    uint64 `json:"actor_id"`
	SubjectID  uint64 `json:"subject_id,omitempty"`
	Resource   string `json:"resource,omitempty"`
	ResourceID uint64 `json:"resource_id,omitempty"`
	Detail     string `json:"detail,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
