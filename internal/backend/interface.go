// Package backend selects and wires the data backend the binaries run
// against.
package backend

import (
	"context"

	"haybase/internal/event"
	"haybase/internal/ledger"
)

// Type names a supported data backend.
type Type string

const (
	Memory Type = "memory"
	SQLite Type = "sqlite"
)

func (t Type) IsValid() bool {
	return t == Memory || t == SQLite
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result is a wired backend: the store, the optional event publisher,
// a readiness probe and the cleanup hook.
type Result struct {
	Store   ledger.Store
	Events  *event.Client // nil when AMQP is not configured
	Ready   func(context.Context) error
	Cleanup CleanupFunc
}

// Factory creates backends from configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds what backend creation needs.
type Config struct {
	Type Type

	SQLiteDBPath string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}
