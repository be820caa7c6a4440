package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	applog "qltc/internal/log"
	ports "qltc/internal/sheets"

	_ "modernc.org/sqlite"
)

var _ ports.RowStore = (*SQLiteRepository)(nil)

// SQLiteRepository persists sheet-shaped tables locally and keeps the audit
// log of transaction changes.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; each call is serialised by the database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Rows(ctx context.Context, sheet string) ([][]string, error) {
	rs, err := r.db.QueryContext(ctx, `SELECT cells FROM sheet_rows WHERE sheet = ? ORDER BY id`, sheet)
	if err != nil {
		return nil, fmt.Errorf("query rows of %s: %w", sheet, err)
	}
	defer rs.Close()

	var out [][]string
	for rs.Next() {
		var raw string
		if err := rs.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		cells, err := decodeCells(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, cells)
	}
	return out, rs.Err()
}

func (r *SQLiteRepository) AppendRow(ctx context.Context, sheet string, row []string) error {
	raw, err := encodeCells(row)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `INSERT INTO sheet_rows (sheet, cells) VALUES (?, ?)`, sheet, raw); err != nil {
		return fmt.Errorf("append row to %s: %w", sheet, err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateRow(ctx context.Context, sheet string, pos int, row []string) error {
	raw, err := encodeCells(row)
	if err != nil {
		return err
	}
	return r.atPosition(ctx, sheet, pos, func(tx *sql.Tx, rowID int64) error {
		_, err := tx.ExecContext(ctx, `UPDATE sheet_rows SET cells = ? WHERE id = ?`, raw, rowID)
		return err
	})
}

func (r *SQLiteRepository) DeleteRow(ctx context.Context, sheet string, pos int) error {
	return r.atPosition(ctx, sheet, pos, func(tx *sql.Tx, rowID int64) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE id = ?`, rowID)
		return err
	})
}

// atPosition resolves the pos-th row of sheet and runs fn on it inside one
// database transaction.
func (r *SQLiteRepository) atPosition(ctx context.Context, sheet string, pos int, fn func(*sql.Tx, int64) error) error {
	if pos < 0 {
		return fmt.Errorf("%s row %d: %w", sheet, pos, ports.ErrRowOutOfRange)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rowID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM sheet_rows WHERE sheet = ? ORDER BY id LIMIT 1 OFFSET ?`, sheet, pos).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s row %d: %w", sheet, pos, ports.ErrRowOutOfRange)
	}
	if err != nil {
		return fmt.Errorf("locate %s row %d: %w", sheet, pos, err)
	}
	if err := fn(tx, rowID); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, pos, err)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) Header(ctx context.Context, sheet string) ([]string, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT cells FROM sheet_headers WHERE sheet = ?`, sheet).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", sheet, err)
	}
	return decodeCells(raw)
}

func (r *SQLiteRepository) SetHeader(ctx context.Context, sheet string, header []string) error {
	raw, err := encodeCells(header)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sheet_headers (sheet, cells) VALUES (?, ?)
		 ON CONFLICT(sheet) DO UPDATE SET cells = excluded.cells`, sheet, raw)
	if err != nil {
		return fmt.Errorf("write header of %s: %w", sheet, err)
	}
	return nil
}

// AuditEvent is one recorded change to a transaction.
type AuditEvent struct {
	EventID       string
	Action        string
	TransactionID string
	OccurredAt    time.Time
	Payload       string
	RecordedAt    time.Time
}

// RecordEvent stores an audit event. Redelivered events (same EventID) are
// ignored and reported as not inserted.
func (r *SQLiteRepository) RecordEvent(ctx context.Context, e AuditEvent) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO audit_events (event_id, action, transaction_id, occurred_at, payload)
		 VALUES (?, ?, ?, ?, ?)`,
		e.EventID, e.Action, e.TransactionID, e.OccurredAt.UTC(), e.Payload)
	if err != nil {
		return false, fmt.Errorf("record audit event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record audit event: %w", err)
	}
	if n == 0 {
		slog.DebugContext(ctx, "Duplicate audit event ignored",
			applog.FieldComponent, applog.ComponentStorage,
			applog.FieldEventID, e.EventID)
	}
	return n > 0, nil
}

// ListEvents returns the most recent audit events first. transactionID
// narrows the list when not empty.
func (r *SQLiteRepository) ListEvents(ctx context.Context, transactionID string, limit int) ([]AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT event_id, action, transaction_id, occurred_at, payload, recorded_at
	      FROM audit_events`
	args := []any{}
	if transactionID != "" {
		q += ` WHERE transaction_id = ?`
		args = append(args, transactionID)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rs, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rs.Close()

	var out []AuditEvent
	for rs.Next() {
		var e AuditEvent
		if err := rs.Scan(&e.EventID, &e.Action, &e.TransactionID, &e.OccurredAt, &e.Payload, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		out = append(out, e)
	}
	return out, rs.Err()
}

func encodeCells(row []string) (string, error) {
	if row == nil {
		row = []string{}
	}
	b, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("encode cells: %w", err)
	}
	return string(b), nil
}

func decodeCells(raw string) ([]string, error) {
	var cells []string
	if err := json.Unmarshal([]byte(raw), &cells); err != nil {
		return nil, fmt.Errorf("decode cells: %w", err)
	}
	return cells, nil
}
