package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"qltc/internal/core"
	applog "qltc/internal/log"
	"qltc/internal/sheets"
)

// DefaultStoreTimeout bounds every row-store call.
const DefaultStoreTimeout = 10 * time.Second

// Change actions carried to a ChangeNotifier.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// Change describes a successful mutation.
type Change struct {
	Action      string
	Transaction core.Transaction
	At          time.Time
}

// ChangeNotifier is told about mutations after they are persisted.
type ChangeNotifier interface {
	NotifyChange(ctx context.Context, c Change) error
}

// TransactionStore maps between the positional rows of a table and
// transactions addressed by id. Rows are located by scanning the id column at
// call time; positions are never cached.
type TransactionStore struct {
	rows     sheets.RowStore
	table    string
	schema   Schema
	timeout  time.Duration
	notifier ChangeNotifier
	newID    func() string
	now      func() time.Time

	unconfigured *core.ConfigError
}

type StoreOption func(*TransactionStore)

func WithStoreTimeout(d time.Duration) StoreOption {
	return func(s *TransactionStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithChangeNotifier(n ChangeNotifier) StoreOption {
	return func(s *TransactionStore) { s.notifier = n }
}

func WithIDGenerator(f func() string) StoreOption {
	return func(s *TransactionStore) { s.newID = f }
}

func WithSchema(schema Schema) StoreOption {
	return func(s *TransactionStore) { s.schema = schema }
}

func NewTransactionStore(rows sheets.RowStore, table string, opts ...StoreOption) *TransactionStore {
	s := &TransactionStore{
		rows:    rows,
		table:   table,
		schema:  SchemaV1,
		timeout: DefaultStoreTimeout,
		newID:   NewTransactionID,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewUnconfiguredStore returns a store whose every operation fails with a
// ConfigError naming the missing settings.
func NewUnconfiguredStore(missing []string) *TransactionStore {
	return &TransactionStore{unconfigured: &core.ConfigError{Missing: missing}}
}

// NewTransactionID returns a random UUIDv4.
func NewTransactionID() string {
	return uuid.NewString()
}

// Table is the name of the backing table.
func (s *TransactionStore) Table() string { return s.table }

func (s *TransactionStore) ready() error {
	if s.unconfigured != nil {
		return s.unconfigured
	}
	if s.rows == nil {
		return &core.ConfigError{Missing: []string{"row store"}}
	}
	return nil
}

func (s *TransactionStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// List returns every transaction in table order. Rows with an empty id cell
// are skipped; malformed cells degrade instead of failing the read.
func (s *TransactionStore) List(ctx context.Context) ([]core.Transaction, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.rows.Rows(ctx, s.table)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		if rowID(row) == "" {
			continue
		}
		out = append(out, s.schema.Decode(row))
	}
	slog.DebugContext(ctx, "Rows listed", applog.FieldTable, s.table, applog.FieldCount, len(out))
	return out, nil
}

// Create assigns a fresh id and appends the transaction. tx.ID is ignored.
func (s *TransactionStore) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := s.ready(); err != nil {
		return core.Transaction{}, err
	}
	tx = normalize(tx)
	tx.ID = s.newID()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.rows.AppendRow(ctx, s.table, s.schema.Encode(tx)); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	slog.DebugContext(ctx, "Row appended",
		applog.FieldTransactionID, tx.ID,
		applog.FieldTxType, tx.Type,
		applog.FieldTable, s.table)
	s.notify(ctx, ChangeCreated, tx)
	return tx, nil
}

// Update overwrites the row holding tx.ID with every field of tx.
func (s *TransactionStore) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := s.ready(); err != nil {
		return core.Transaction{}, err
	}
	tx = normalize(tx)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pos, _, err := s.locate(ctx, tx.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	if err := s.rows.UpdateRow(ctx, s.table, pos, s.schema.Encode(tx)); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", tx.ID, mapRowErr(err))
	}
	slog.DebugContext(ctx, "Row updated", applog.FieldTransactionID, tx.ID, applog.FieldRow, pos)
	s.notify(ctx, ChangeUpdated, tx)
	return tx, nil
}

// Delete removes the row holding id; later rows shift up. The change
// notification carries the removed transaction as it was read.
func (s *TransactionStore) Delete(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pos, row, err := s.locate(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if err := s.rows.DeleteRow(ctx, s.table, pos); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, mapRowErr(err))
	}
	slog.DebugContext(ctx, "Row deleted", applog.FieldTransactionID, id, applog.FieldRow, pos)
	s.notify(ctx, ChangeDeleted, s.schema.Decode(row))
	return nil
}

// CheckSchema verifies the table header against the schema.
func (s *TransactionStore) CheckSchema(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	header, err := s.rows.Header(ctx, s.table)
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	return s.schema.Check(s.table, header)
}

// EnsureHeader writes the schema header into a table that has none. A table
// with a different header is reported, never overwritten.
func (s *TransactionStore) EnsureHeader(ctx context.Context) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	header, err := s.rows.Header(ctx, s.table)
	if err != nil {
		return false, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		return false, s.schema.Check(s.table, header)
	}
	if err := s.rows.SetHeader(ctx, s.table, s.schema.Header()); err != nil {
		return false, fmt.Errorf("write header: %w", err)
	}
	return true, nil
}

// locate scans the id column for the first row whose id equals id and
// returns its position and cells.
func (s *TransactionStore) locate(ctx context.Context, id string) (int, []string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, nil, core.ErrNotFound
	}
	rows, err := s.rows.Rows(ctx, s.table)
	if err != nil {
		return 0, nil, fmt.Errorf("scan ids: %w", err)
	}
	for i, row := range rows {
		if rowID(row) == id {
			return i, row, nil
		}
	}
	return 0, nil, core.ErrNotFound
}

func (s *TransactionStore) notify(ctx context.Context, action string, tx core.Transaction) {
	if s.notifier == nil {
		return
	}
	c := Change{Action: action, Transaction: tx, At: s.now()}
	if err := s.notifier.NotifyChange(ctx, c); err != nil {
		slog.WarnContext(ctx, "Failed to publish transaction change",
			applog.FieldAction, action,
			applog.FieldTransactionID, tx.ID,
			applog.FieldError, err)
	}
}

// A row removed between the scan and the write surfaces as not found.
func mapRowErr(err error) error {
	if errors.Is(err, sheets.ErrRowOutOfRange) {
		return fmt.Errorf("%w: %v", core.ErrNotFound, err)
	}
	return err
}

func rowID(row []string) string {
	if len(row) == 0 {
		return ""
	}
	return strings.TrimSpace(row[0])
}

func normalize(tx core.Transaction) core.Transaction {
	tx.ID = strings.TrimSpace(tx.ID)
	tx.Type = strings.TrimSpace(tx.Type)
	return tx
}
