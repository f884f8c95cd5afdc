package core

import "time"

// EventType names an observable member state change.
type EventType string

const (
	EventMemberRegistered  EventType = "member.registered"
	EventOAuthConnected    EventType = "member.oauth_connected"
	EventOAuthDisconnected EventType = "member.oauth_disconnected"
	EventPasswordSet       EventType = "member.password_set"
	EventPasswordChanged   EventType = "member.password_changed"
	EventEmailVerified     EventType = "member.email_verified"
	EventProfileUpdated    EventType = "member.profile_updated"
)

// Event is a domain event emitted by Member mutations. No-op operations
// emit nothing.
type Event struct {
	Type       EventType `json:"type"`
	MemberID   string    `json:"memberId"`
	Provider   Provider  `json:"provider,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventSink receives domain events for out-of-band delivery. Delivery
// semantics are the sink's concern; at-least-once is acceptable. Workflows
// log publish failures and move on.
type EventSink interface {
	Publish(events ...Event) error
}
