package sheets

import (
	"context"
	"errors"
)

// ErrRowOutOfRange is returned when a positional write targets a row that no
// longer exists (for example after a concurrent delete shifted the table).
var ErrRowOutOfRange = errors.New("row position out of range")

// Ports for outbound adapters.
//
// A table is a named sheet holding one header row followed by data rows.
// Positions are 0-based indexes into the data rows as returned by Rows at the
// time of the call; they are only valid until the next structural change.
type (
	RowReader interface {
		// Rows returns every data row below the header, cells as text.
		Rows(ctx context.Context, table string) ([][]string, error)
	}

	RowWriter interface {
		// AppendRow adds a row after the last data row.
		AppendRow(ctx context.Context, table string, row []string) error
		// UpdateRow overwrites the row at the given data position.
		UpdateRow(ctx context.Context, table string, pos int, row []string) error
	}

	RowDeleter interface {
		// DeleteRow removes the row at pos, shifting later rows up by one.
		DeleteRow(ctx context.Context, table string, pos int) error
	}

	// HeaderStore reads and writes the header row of a table.
	HeaderStore interface {
		Header(ctx context.Context, table string) ([]string, error)
		SetHeader(ctx context.Context, table string, header []string) error
	}

	// RowStore is the full row-store contract used by the transaction adapter.
	RowStore interface {
		RowReader
		RowWriter
		RowDeleter
		HeaderStore
	}
)
