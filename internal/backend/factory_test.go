package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"qltc/internal/config"
	"qltc/internal/core"
)

func quietFactory() Factory {
	return NewFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "excel"}); err == nil {
		t.Error("expected error for unknown backend")
	}

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sheets", TransactionsSheet: "Data"})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != SheetsBackend || len(cfg.MissingSheets) == 0 {
		t.Errorf("cfg = %+v, want sheets with missing settings", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend, TransactionsSheet: "Data"}, false},
		{"bad type", Config{Type: "csv", TransactionsSheet: "Data"}, true},
		{"no table", Config{Type: MemoryBackend}, true},
		{"sqlite without path", Config{Type: SQLiteBackend, TransactionsSheet: "Data"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend_UnconfiguredSheets(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Type: SheetsBackend, TransactionsSheet: "Data", UsersSheet: "Users", MissingSheets: []string{"SPREADSHEET_ID"}}

	res, err := quietFactory().CreateBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Close()

	if _, err := res.TransactionStore(cfg).List(ctx); !errors.Is(err, core.ErrConfiguration) {
		t.Errorf("List() error = %v, want configuration error", err)
	}

	auth, err := res.Authenticator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := auth.Authenticate(ctx, "a", "b"); !errors.Is(err, core.ErrConfiguration) {
		t.Errorf("Authenticate() error = %v, want configuration error", err)
	}

	cfg.AppUsers = "lan:pw:Lan"
	auth, err = res.Authenticator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if u, err := auth.Authenticate(ctx, "lan", "pw"); err != nil || u.Name != "Lan" {
		t.Errorf("Authenticate() = %+v, %v", u, err)
	}
}

func TestCreateBackend_Memory(t *testing.T) {
	dir := t.TempDir()
	seed := "id,date,type,category,amount,note\nt1,01/01/2024,Thu,Salary,\"1,000\",\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_data.csv"), []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}
	users := "username,password,name\nlan,pw,Lan Nguyen\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_users.csv"), []byte(users), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	cfg := Config{Type: MemoryBackend, TransactionsSheet: "Data", UsersSheet: "Users", MemorySeedDir: dir}
	res, err := quietFactory().CreateBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}

	txs, err := res.TransactionStore(cfg).List(ctx)
	if err != nil || len(txs) != 1 || txs[0].ID != "t1" {
		t.Fatalf("List() = %+v, %v", txs, err)
	}

	auth, err := res.Authenticator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if u, err := auth.Authenticate(ctx, "lan", "pw"); err != nil || u.Name != "Lan Nguyen" {
		t.Errorf("Authenticate() = %+v, %v", u, err)
	}
}

func TestCreateBackend_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		Type:              SQLiteBackend,
		TransactionsSheet: "Data",
		SQLiteDBPath:      filepath.Join(t.TempDir(), "qltc.db"),
	}
	res, err := quietFactory().CreateBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Close()

	store := res.TransactionStore(cfg)
	if created, err := store.EnsureHeader(ctx); err != nil || !created {
		t.Fatalf("EnsureHeader() = %v, %v", created, err)
	}
	tx, err := store.Create(ctx, core.Transaction{Type: "Chi", Category: "Food"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Delete(ctx, tx.ID); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestResultCloseRunsEveryCleanup(t *testing.T) {
	var calls []string
	res := &Result{Cleanup: chain(
		func() error { calls = append(calls, "store"); return nil },
		func() error { calls = append(calls, "amqp"); return errors.New("boom") },
	)}
	err := res.Close()
	if err == nil || len(calls) != 2 || calls[0] != "amqp" {
		t.Errorf("Close() = %v, calls %v", err, calls)
	}
}
