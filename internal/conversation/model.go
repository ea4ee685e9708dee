// Package conversation owns the chat session lifecycle: one active
// conversation per customer, moved between the bot and human agents.
package conversation

import (
	"time"

	"github.com/tiendatec/chat-platform/internal/flow"
)

// Status is the owner of a conversation.
type Status string

const (
	// StatusBot means the dialogue engine is answering.
	StatusBot Status = "BOT"
	// StatusWaiting means the customer asked for a human and no agent has
	// taken the conversation yet.
	StatusWaiting Status = "WAITING"
	// StatusAssigned means exactly one agent owns the conversation.
	StatusAssigned Status = "ASSIGNED"
	// StatusResolved closes the conversation; the next message opens a new one.
	StatusResolved Status = "RESOLVED"
)

// Conversation is one customer session. Flow is non-nil only while a
// dialogue flow is in progress; its fields are written and cleared together.
// StoreID and ZoneID are set together once a flow picks a branch; routing
// visibility keys off both.
type Conversation struct {
	ID              string
	CustomerID      string
	Status          Status
	AssignedAgentID string
	StoreID         string
	ZoneID          string
	Flow            *flow.State
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Direction tells who authored a stored message.
type Direction string

const (
	DirectionInbound  Direction = "in"
	DirectionOutbound Direction = "out"
)

// Message is one entry in a conversation's permanent log.
type Message struct {
	ID             string
	ConversationID string
	Direction      Direction
	// Author is "customer", "bot" or the agent id.
	Author    string
	Body      string
	Kind      string
	CreatedAt time.Time
}
