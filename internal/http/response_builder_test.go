package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"qltc/internal/core"
	"qltc/internal/ledger"
)

func TestJSONResponseBuilder(t *testing.T) {
	tests := []struct {
		name        string
		builder     *JSONResponseBuilder
		wantStatus  int
		wantBody    string
		wantHeaders map[string]string
	}{
		{
			name:       "bare success",
			builder:    NewJSONResponse(),
			wantStatus: http.StatusOK,
			wantBody:   `{"success":true}`,
		},
		{
			name:       "data list",
			builder:    NewJSONResponse().Data(toDTOs(nil)),
			wantStatus: http.StatusOK,
			wantBody:   `{"success":true,"data":[]}`,
		},
		{
			name:       "user data",
			builder:    NewJSONResponse().UserData(core.User{Username: "lan", Name: "Lan"}),
			wantStatus: http.StatusOK,
			wantBody:   `{"success":true,"userData":{"username":"lan","name":"Lan"}}`,
		},
		{
			name:       "not found",
			builder:    NotFoundError("Transaction not found."),
			wantStatus: http.StatusNotFound,
			wantBody:   `{"success":false,"message":"Transaction not found."}`,
		},
		{
			name:        "method not allowed",
			builder:     MethodNotAllowedError("GET, POST"),
			wantStatus:  http.StatusMethodNotAllowed,
			wantBody:    `{"success":false,"message":"Method not allowed."}`,
			wantHeaders: map[string]string{"Allow": "GET, POST"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.builder.Write(rec)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var got, want any
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			_ = json.Unmarshal([]byte(tt.wantBody), &want)
			if fmt.Sprint(got) != fmt.Sprint(want) {
				t.Errorf("body = %s, want %s", rec.Body.String(), tt.wantBody)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
				t.Errorf("Content-Type = %q", ct)
			}
			for k, v := range tt.wantHeaders {
				if rec.Header().Get(k) != v {
					t.Errorf("header %s = %q, want %q", k, rec.Header().Get(k), v)
				}
			}
		})
	}
}

func TestStoreErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"not found", fmt.Errorf("update x: %w", core.ErrNotFound), http.StatusNotFound, "Transaction not found."},
		{"config", &core.ConfigError{Missing: []string{"SECRET_KEY"}}, http.StatusInternalServerError, msgConfigError},
		{"timeout", fmt.Errorf("list: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "The spreadsheet did not answer in time."},
		{"other", errors.New("quota exceeded"), http.StatusInternalServerError, "quota exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := storeErrorResponse(tt.err)
			if b.statusCode != tt.wantStatus || b.envelope.Message != tt.wantMsg || b.envelope.Success {
				t.Errorf("got %d %+v", b.statusCode, b.envelope)
			}
		})
	}
}

func TestFilterQueryRoundTrip(t *testing.T) {
	tests := []struct {
		query string
		want  ledger.Filter
		back  string
	}{
		{"", ledger.Filter{Type: ledger.FilterAll}, ""},
		{"type=all", ledger.Filter{Type: ledger.FilterAll}, ""},
		{"type=Chi&q=c%C3%A0+ph%C3%AA", ledger.Filter{Type: "Chi", Search: "cà phê"}, "q=c%C3%A0+ph%C3%AA&type=Chi"},
	}
	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		f := filterFromQuery(q)
		if f != tt.want {
			t.Errorf("filterFromQuery(%q) = %+v, want %+v", tt.query, f, tt.want)
		}
		if got := filterQuery(f); got != tt.back {
			t.Errorf("filterQuery(%+v) = %q, want %q", f, got, tt.back)
		}
	}
}
