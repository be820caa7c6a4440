package services

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"qltc/internal/core"
)

func TestSchemaV1_EncodeDecode(t *testing.T) {
	tx := core.Transaction{
		ID:       "abc",
		Date:     core.NewDate(2024, 12, 31),
		Type:     "Thu",
		Category: "Bonus",
		Amount:   decimal.RequireFromString("2500000.75"),
		Note:     "year end",
	}
	row := SchemaV1.Encode(tx)
	want := []string{"abc", "31/12/2024", "Thu", "Bonus", "2500000.75", "year end"}
	if !reflect.DeepEqual(row, want) {
		t.Fatalf("Encode() = %v, want %v", row, want)
	}
	if got := SchemaV1.Encode(SchemaV1.Decode(row)); !reflect.DeepEqual(got, want) {
		t.Errorf("Encode(Decode()) = %v, want %v", got, want)
	}
}

func TestSchemaV1_DecodeShortRow(t *testing.T) {
	got := SchemaV1.Decode([]string{" x1 ", "2024-01-05", "Chi"})
	if got.ID != "x1" || got.Date.String() != "05/01/2024" || got.Category != "" || !got.Amount.IsZero() || got.Note != "" {
		t.Errorf("Decode(short) = %+v", got)
	}
}

func TestSchema_Check(t *testing.T) {
	tests := []struct {
		name    string
		header  []string
		wantErr bool
	}{
		{"exact", []string{"id", "date", "type", "category", "amount", "note"}, false},
		{"case and spaces", []string{" ID", "Date", "TYPE ", "Category", "Amount", "Note"}, false},
		{"extra trailing column", []string{"id", "date", "type", "category", "amount", "note", "tags"}, false},
		{"missing column", []string{"id", "date", "type", "category", "amount"}, true},
		{"reordered", []string{"date", "id", "type", "category", "amount", "note"}, true},
		{"empty", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SchemaV1.Check("Data", tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
			var mismatch *SchemaMismatchError
			if tt.wantErr && !errors.As(err, &mismatch) {
				t.Fatalf("expected SchemaMismatchError, got %T", err)
			}
			if tt.wantErr && !strings.Contains(err.Error(), `"Data"`) {
				t.Errorf("error should name the table: %v", err)
			}
		})
	}
}
