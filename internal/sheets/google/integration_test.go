//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"qltc/internal/config"
)

// Integration tests require a real spreadsheet shared with the service account.
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_RowStoreFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cfg := config.Load()
	if missing := cfg.MissingSheetsSettings(); len(missing) > 0 {
		t.Skipf("sheets not configured (%v), skipping integration test", missing)
	}
	table := os.Getenv("INTEGRATION_SHEET")
	if table == "" {
		t.Skip("INTEGRATION_SHEET not set; refusing to write into the live transactions sheet")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	creds := Credentials{JSON: []byte(cfg.ServiceAccountJSON), Email: cfg.ServiceAccountEmail, PrivateKey: cfg.PrivateKey}
	if cfg.ServiceAccountFile != "" {
		var err error
		if creds, err = CredentialsFromFile(cfg.ServiceAccountFile); err != nil {
			t.Fatalf("read credentials: %v", err)
		}
	}
	client, err := New(ctx, cfg.SpreadsheetID, creds)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	before, err := client.Rows(ctx, table)
	if err != nil {
		t.Fatalf("Failed to read rows: %v", err)
	}

	marker := "it-" + time.Now().Format("150405.000")
	if err := client.AppendRow(ctx, table, []string{marker, "01/01/2024", "Chi", "Test", "1", ""}); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	after, err := client.Rows(ctx, table)
	if err != nil {
		t.Fatalf("Failed to read rows: %v", err)
	}
	if len(after) != len(before)+1 {
		t.Fatalf("expected %d rows, got %d", len(before)+1, len(after))
	}
	pos := len(after) - 1
	if after[pos][0] != marker {
		t.Fatalf("appended row not last: %v", after[pos])
	}
	if err := client.DeleteRow(ctx, table, pos); err != nil {
		t.Fatalf("Failed to delete test row: %v", err)
	}
}
