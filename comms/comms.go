// Package comms provides the shared communication channels between agents:
// persisted channel messages (the historical record) and an ephemeral
// best-effort signal queue for activity notifications.
package comms

import (
	"errors"
	"time"
)

// ChannelKind distinguishes broadcast channels from private pairs.
type ChannelKind string

const (
	KindGroup  ChannelKind = "group"
	KindDirect ChannelKind = "direct"
)

// Well-known group channels seeded at startup.
const (
	ChannelGeneral       = "#general"
	ChannelRandom        = "#random"
	ChannelBrainstorming = "#brainstorming"
)

// ErrNotFound is returned when a channel or message does not exist.
var ErrNotFound = errors.New("channel not found")

// Channel is a named conversation. Direct channels hold exactly two
// members and are created lazily on first use.
type Channel struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Kind      ChannelKind `json:"kind"`
	Members   []string    `json:"members,omitempty"` // empty for open group channels
	CreatedAt time.Time   `json:"created_at"`
}

// Message is one append-only entry in a channel, ordered by timestamp.
type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists channels and their messages.
type Store interface {
	// EnsureChannel creates the named group channel if it does not exist
	// and returns it.
	EnsureChannel(name string) (*Channel, error)

	// DirectChannel returns the direct channel between the two agents,
	// creating it on first use. The pair is unordered: (a,b) and (b,a)
	// resolve to the same channel.
	DirectChannel(a, b string) (*Channel, error)

	// GetChannel retrieves a channel by ID.
	GetChannel(id string) (*Channel, error)

	// ListChannels returns all channels, oldest first.
	ListChannels() ([]*Channel, error)

	// Post appends a message to a channel and returns it.
	Post(channelID, senderID, content string) (*Message, error)

	// History returns a channel's most recent messages in chronological
	// order, at most limit.
	History(channelID string, limit int) ([]*Message, error)

	// Inbox returns messages visible to the agent (group channels plus its
	// direct channels) sent by others since the given time, oldest first.
	Inbox(agentID string, since time.Time, limit int) ([]*Message, error)
}
