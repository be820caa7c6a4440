package services

import (
	"fmt"
	"strings"

	"qltc/internal/core"
)

// Column binds one table column to a transaction field.
type Column struct {
	Name   string
	Encode func(core.Transaction) string
	Decode func(*core.Transaction, string)
}

// Schema is the ordered column layout of the transactions table. The header
// row of the table holds the column names; data starts on the next row.
type Schema struct {
	Version int
	Columns []Column
}

// SchemaV1 is [id, date, type, category, amount, note].
var SchemaV1 = Schema{
	Version: 1,
	Columns: []Column{
		{
			Name:   "id",
			Encode: func(t core.Transaction) string { return t.ID },
			Decode: func(t *core.Transaction, s string) { t.ID = strings.TrimSpace(s) },
		},
		{
			Name:   "date",
			Encode: func(t core.Transaction) string { return t.Date.String() },
			Decode: func(t *core.Transaction, s string) { t.Date = core.ParseDateLenient(s) },
		},
		{
			Name:   "type",
			Encode: func(t core.Transaction) string { return t.Type },
			Decode: func(t *core.Transaction, s string) { t.Type = strings.TrimSpace(s) },
		},
		{
			Name:   "category",
			Encode: func(t core.Transaction) string { return t.Category },
			Decode: func(t *core.Transaction, s string) { t.Category = s },
		},
		{
			Name:   "amount",
			Encode: func(t core.Transaction) string { return t.Amount.String() },
			Decode: func(t *core.Transaction, s string) { t.Amount = core.ParseAmount(s) },
		},
		{
			Name:   "note",
			Encode: func(t core.Transaction) string { return t.Note },
			Decode: func(t *core.Transaction, s string) { t.Note = s },
		},
	},
}

// Header returns the column names in order.
func (s Schema) Header() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Width is the fixed number of cells written per row.
func (s Schema) Width() int { return len(s.Columns) }

// Encode renders a transaction as a full-width row.
func (s Schema) Encode(t core.Transaction) []string {
	row := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		row[i] = c.Encode(t)
	}
	return row
}

// Decode maps a row by position. Missing trailing cells read as "".
func (s Schema) Decode(row []string) core.Transaction {
	var t core.Transaction
	for i, c := range s.Columns {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		c.Decode(&t, cell)
	}
	return t
}

// Check compares a stored header with the schema. Names match case-insensitively
// and ignoring surrounding whitespace; extra trailing columns are allowed.
func (s Schema) Check(table string, header []string) error {
	want := s.Header()
	ok := len(header) >= len(want)
	for i := 0; ok && i < len(want); i++ {
		ok = strings.EqualFold(strings.TrimSpace(header[i]), want[i])
	}
	if ok {
		return nil
	}
	return &SchemaMismatchError{Table: table, Version: s.Version, Want: want, Got: header}
}

// SchemaMismatchError reports a table whose header does not match the schema.
type SchemaMismatchError struct {
	Table   string
	Version int
	Want    []string
	Got     []string
}

func (e *SchemaMismatchError) Error() string {
	if len(e.Got) == 0 {
		return fmt.Sprintf("table %q has no header (schema v%d expects %s)", e.Table, e.Version, strings.Join(e.Want, ","))
	}
	return fmt.Sprintf("table %q header %s does not match schema v%d %s",
		e.Table, strings.Join(e.Got, ","), e.Version, strings.Join(e.Want, ","))
}
