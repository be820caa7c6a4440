package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ports "qltc/internal/sheets"
)

var _ ports.RowStore = (*Store)(nil)

type table struct {
	header []string
	rows   [][]string
}

// Store is an in-process row-store. Each call is serialised; there is no
// coordination across calls, matching a remote sheet.
type Store struct {
	mu     sync.Mutex
	tables map[string]*table
}

func New() *Store {
	return &Store{tables: map[string]*table{}}
}

// NewFromFiles seeds tables from <base>/seed_<table>.csv files. The first CSV
// record is the header. Missing or unreadable files are skipped.
func NewFromFiles(base string, tables ...string) *Store {
	s := New()
	for _, name := range tables {
		records := readCSV(filepath.Join(base, "seed_"+strings.ToLower(name)+".csv"))
		if len(records) == 0 {
			continue
		}
		t := s.table(name)
		t.header = records[0]
		t.rows = records[1:]
	}
	return s
}

// Seed replaces a table's contents.
func (s *Store) Seed(name string, header []string, rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(name)
	t.header = cloneRow(header)
	t.rows = make([][]string, 0, len(rows))
	for _, r := range rows {
		t.rows = append(t.rows, cloneRow(r))
	}
}

func (s *Store) Rows(_ context.Context, name string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(name)
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = cloneRow(r)
	}
	return out, nil
}

func (s *Store) AppendRow(_ context.Context, name string, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(name)
	t.rows = append(t.rows, cloneRow(row))
	return nil
}

func (s *Store) UpdateRow(_ context.Context, name string, pos int, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(name)
	if pos < 0 || pos >= len(t.rows) {
		return fmt.Errorf("update %s row %d: %w", name, pos, ports.ErrRowOutOfRange)
	}
	t.rows[pos] = cloneRow(row)
	return nil
}

func (s *Store) DeleteRow(_ context.Context, name string, pos int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(name)
	if pos < 0 || pos >= len(t.rows) {
		return fmt.Errorf("delete %s row %d: %w", name, pos, ports.ErrRowOutOfRange)
	}
	t.rows = append(t.rows[:pos], t.rows[pos+1:]...)
	return nil
}

func (s *Store) Header(_ context.Context, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRow(s.table(name).header), nil
}

func (s *Store) SetHeader(_ context.Context, name string, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table(name).header = cloneRow(header)
	return nil
}

// table must be called with mu held.
func (s *Store) table(name string) *table {
	t, ok := s.tables[name]
	if !ok {
		t = &table{}
		s.tables[name] = t
	}
	return t
}

func cloneRow(r []string) []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r...)
}

func readCSV(path string) [][]string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.Comment = '#'
	records, err := r.ReadAll()
	if err != nil {
		return nil
	}
	return records
}
