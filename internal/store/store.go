package store

import "context"

// Scope says who a message is addressed to.
type Scope string

const (
	// ScopeGroup messages go to everyone online.
	ScopeGroup Scope = "group"
	// ScopePrivate messages go to exactly two named participants.
	ScopePrivate Scope = "pm"
)

// Message is a persisted chat message. ID is assigned by the store on
// append and breaks ties between messages carrying the same timestamp.
type Message struct {
	ID     int64
	TS     int64 // unix seconds
	Sender string
	Scope  Scope
	Target string // empty unless Scope is ScopePrivate
	Text   string
}

// MessageStore is the durable append-only message log. History reads return
// point-in-time snapshots ordered oldest-first.
type MessageStore interface {
	// Append persists a message and sets its ID.
	Append(ctx context.Context, msg *Message) error

	// GroupHistory returns up to limit most-recent group messages.
	GroupHistory(ctx context.Context, limit int) ([]*Message, error)

	// PrivateHistory returns up to limit most-recent private messages
	// between userA and userB, in either sender/target order.
	PrivateHistory(ctx context.Context, userA, userB string, limit int) ([]*Message, error)

	// PrivatePartners returns the distinct usernames that have ever
	// exchanged a private message with username.
	PrivatePartners(ctx context.Context, username string) ([]string, error)
}

// Store aggregates persistence concerns.
type Store interface {
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
