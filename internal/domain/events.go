package domain

type EventType string

const (
	EventInstanceCreated  EventType = "instance_created"
	EventInstanceClaimed  EventType = "instance_claimed"
	EventInstanceApproved EventType = "instance_approved"
	EventInstanceRejected EventType = "instance_rejected"
	EventInstanceMissed   EventType = "instance_missed"
	EventPointsChanged    EventType = "points_changed"
	EventRewardClaimed    EventType = "reward_claimed"
	EventRewardApproved   EventType = "reward_approved"
	EventRewardRejected   EventType = "reward_rejected"
)

// Event describes a committed state transition. Events carry the affected
// entity's id plus the minimal fields needed to describe the change; how they
// leave the process (websocket, webhook, queue) is the sink's concern.
type Event struct {
	Type   EventType      `json:"type"`
	Entity string         `json:"entity"`
	ID     int64          `json:"id"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Sink receives events after the transition that produced them has committed.
// Publish must not block for long and must never fail the business operation.
type Sink interface {
	Publish(Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(Event) {}
