// Package chatlog appends one {message, reply} record per completed chat turn
// to an external store. Records are never updated or deleted.
package chatlog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultTable is the table (or PostgREST resource) records are written to.
const DefaultTable = "chat_messages"

// Record is one logged chat turn.
type Record struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Reply     string    `json:"reply"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRecord stamps a record with a fresh ID and the current UTC time.
func NewRecord(message, reply, model string) Record {
	return Record{
		ID:        uuid.NewString(),
		Message:   message,
		Reply:     reply,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}
}

// Sink is an append-only record store. Implementations must be safe for
// concurrent use.
type Sink interface {
	// Append inserts one record.
	Append(ctx context.Context, rec Record) error

	// Name identifies the sink in logs and traces.
	Name() string

	// Close releases any resources held by the sink.
	Close() error
}

// NopSink discards every record.
type NopSink struct{}

func (NopSink) Append(context.Context, Record) error { return nil }
func (NopSink) Name() string                         { return "none" }
func (NopSink) Close() error                         { return nil }
