package backend

import (
	"context"

	"qltc/internal/amqp"
	"qltc/internal/sheets"
)

// CleanupFunc releases what a backend holds open.
type CleanupFunc func() error

// Result is a ready row-store plus what was built around it. When Missing is
// non-empty the sheets backend could not be configured and Rows is nil.
type Result struct {
	Rows      sheets.RowStore
	Missing   []string
	Publisher *amqp.Client
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Type names a row-store implementation.
type Type string

const (
	SheetsBackend Type = "sheets"
	MemoryBackend Type = "memory"
	SQLiteBackend Type = "sqlite"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case SheetsBackend, MemoryBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}

// Types returns every valid backend type.
func Types() []Type {
	return []Type{SheetsBackend, MemoryBackend, SQLiteBackend}
}
