// Package model holds the canonical data model the rest of the client
// operates on. Backend payloads are normalized into these types exactly
// once, at the transport boundary; nothing past that point probes
// alternate field names.
package model

import "time"

// ConversationType classifies a conversation by what it is about.
type ConversationType string

const (
	TypeDirect  ConversationType = "direct"
	TypeBooking ConversationType = "booking"
	TypeInquiry ConversationType = "inquiry"
	TypeListing ConversationType = "listing"
	TypeSupport ConversationType = "support"
	TypeDispute ConversationType = "dispute"
)

// Role is the local user's side of a conversation.
type Role string

const (
	RoleNone   Role = ""
	RoleHost   Role = "host"
	RoleRenter Role = "renter"
)

// MessageStatus tracks the delivery lifecycle of a message.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// UserRef identifies a conversation participant.
type UserRef struct {
	ID          int64
	DisplayName string
}

// MessagePreview is the last-message summary shown on a conversation row.
type MessagePreview struct {
	Content  string
	SenderID int64
	SentAt   time.Time
}

// Conversation mirrors a server-side conversation summary. The client
// never originates one of these; it only caches what the backend returns.
type Conversation struct {
	ID             int64
	Type           ConversationType
	Role           Role
	Title          string
	Participants   []UserRef
	LastMessage    *MessagePreview
	UnreadCount    int
	LastActivityAt time.Time
}

// OtherParticipant returns the first participant that is not the given
// local user, or a zero UserRef if there is none.
func (c *Conversation) OtherParticipant(selfID int64) UserRef {
	for _, p := range c.Participants {
		if p.ID != selfID {
			return p
		}
	}
	return UserRef{}
}

// Clone returns a deep copy, so snapshots handed to readers cannot alias
// engine-owned state.
func (c *Conversation) Clone() Conversation {
	out := *c
	if c.Participants != nil {
		out.Participants = append([]UserRef(nil), c.Participants...)
	}
	if c.LastMessage != nil {
		lm := *c.LastMessage
		out.LastMessage = &lm
	}
	return out
}

// Message is a single message within a conversation. Pending messages
// carry a client-generated ID until the server assigns a canonical one.
type Message struct {
	ID             string
	ConversationID int64
	SenderID       int64
	SenderName     string
	Content        string
	CreatedAt      time.Time
	Status         MessageStatus
	IsOwn          bool
}

// Local reports whether the message still carries a client-generated ID,
// i.e. it has not been acknowledged by the server yet.
func (m *Message) Local() bool {
	return len(m.ID) > len(LocalIDPrefix) && m.ID[:len(LocalIDPrefix)] == LocalIDPrefix
}

// LocalIDPrefix marks client-generated message IDs. Canonical server IDs
// are decimal integers, so the prefix can never collide.
const LocalIDPrefix = "local-"

// Before orders messages by creation time with ID as tiebreak, giving a
// total order within a conversation.
func (m *Message) Before(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}
