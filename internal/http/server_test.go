package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	applog "qltc/internal/log"
	"qltc/internal/services"
	"qltc/internal/sheets/memory"
)

type envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	UserData *struct {
		Username string `json:"username"`
		Name     string `json:"name"`
	} `json:"userData"`
	Message string `json:"message"`
}

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{
		Level:   slog.LevelError,
		Handler: slog.NewTextHandler(io.Discard, nil),
	})
}

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	mem := memory.New()
	mem.Seed("Data", services.SchemaV1.Header(), [][]string{
		{"t1", "01/01/2024", "Thu", "Salary", "1,000,000", ""},
		{"t2", "02/01/2024", "Chi", "Food", "300,000", "lunch"},
	})
	txs := services.NewTransactionStore(mem, "Data")
	auth := services.NewAuthenticator(services.StaticDirectory{
		{Username: "lan", Password: "pw", Name: "Lan Nguyen"},
	}, 0)
	s := NewServer(Options{Logger: quietLogger()}, txs, auth)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, mem
}

func do(t *testing.T, s *Server, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not a JSON envelope: %v\n%s", err, rec.Body.String())
	}
	return env
}

func dataList(t *testing.T, env envelope) []transactionDTO {
	t.Helper()
	var out []transactionDTO
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("data is not a list: %v", err)
	}
	return out
}

func TestListTransactions(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/transactions", "/api/qltc/transactions"} {
		t.Run(path, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, path, "", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Errorf("Content-Type = %q", ct)
			}
			env := decode(t, rec)
			if !env.Success {
				t.Fatal("success = false")
			}
			list := dataList(t, env)
			if len(list) != 2 {
				t.Fatalf("got %d transactions, want 2", len(list))
			}
			if list[0].ID != "t1" || list[0].Date != "01/01/2024" || list[0].Amount != "1000000" {
				t.Errorf("first = %+v", list[0])
			}
		})
	}
}

func TestListTransactions_EmptyTableIsEmptyList(t *testing.T) {
	s, mem := newTestServer(t)
	mem.Seed("Data", services.SchemaV1.Header(), nil)

	rec := do(t, s, http.MethodGet, "/transactions", "", "")
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("body = %s, want an empty data list", rec.Body.String())
	}
}

func TestCreateTransaction(t *testing.T) {
	tests := []struct {
		name string
		body string
		want json.Number
	}{
		{"number amount", `{"date":"15/03/2024","type":"Chi","category":"Books","amount":120000.5,"note":"x"}`, "120000.5"},
		{"string amount", `{"date":"15/03/2024","type":"Chi","category":"Books","amount":"1,250,000"}`, "1250000"},
		{"garbage amount", `{"date":"15/03/2024","type":"Chi","category":"Books","amount":"abc"}`, "0"},
		{"large amount keeps every digit", `{"date":"15/03/2024","type":"Thu","category":"Salary","amount":12345678901234567.89}`, "12345678901234567.89"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			rec := do(t, s, http.MethodPost, "/transactions", "application/json", tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			var created transactionDTO
			if err := json.Unmarshal(decode(t, rec).Data, &created); err != nil {
				t.Fatal(err)
			}
			if created.ID == "" {
				t.Error("created transaction has no id")
			}
			if created.Amount != tt.want || created.Date != "15/03/2024" {
				t.Errorf("created = %+v", created)
			}

			list := dataList(t, decode(t, do(t, s, http.MethodGet, "/transactions", "", "")))
			if len(list) != 3 || list[2].ID != created.ID || list[2].Amount != tt.want {
				t.Errorf("list after create = %+v", list)
			}
		})
	}
}

func TestUpdateTransaction(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/transactions/update", "application/json",
		`{"id":"t2","date":"03/01/2024","type":"Chi","category":"Food","amount":"350,000","note":"dinner"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	list := dataList(t, decode(t, do(t, s, http.MethodGet, "/transactions", "", "")))
	if list[1].ID != "t2" || list[1].Amount != "350000" || list[1].Note != "dinner" {
		t.Errorf("t2 after update = %+v", list[1])
	}
}

func TestUpdateAndDelete_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    string
		status  int
		message string
	}{
		{"update missing id", "/transactions/update", `{"type":"Chi"}`, http.StatusBadRequest, "Missing transaction id."},
		{"update unknown id", "/transactions/update", `{"id":"nope","type":"Chi"}`, http.StatusNotFound, "Transaction not found."},
		{"delete missing id", "/transactions/delete", `{}`, http.StatusBadRequest, "Missing transaction id."},
		{"delete unknown id", "/transactions/delete", `{"id":"nope"}`, http.StatusNotFound, "Transaction not found."},
		{"malformed json", "/transactions/update", `{"id":`, http.StatusBadRequest, "Invalid request body."},
		{"json array", "/transactions", `[1,2]`, http.StatusBadRequest, "Invalid request body."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			rec := do(t, s, http.MethodPost, tt.path, "application/json", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			env := decode(t, rec)
			if env.Success || env.Message != tt.message {
				t.Errorf("envelope = %+v, want message %q", env, tt.message)
			}
		})
	}
}

func TestDeleteTransaction(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/transactions/delete", "application/json", `{"id":"t1"}`)
	if rec.Code != http.StatusOK || !decode(t, rec).Success {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	list := dataList(t, decode(t, do(t, s, http.MethodGet, "/transactions", "", "")))
	if len(list) != 1 || list[0].ID != "t2" {
		t.Errorf("list after delete = %+v", list)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)
	tests := []struct {
		method, path, allow string
	}{
		{http.MethodPut, "/transactions", "GET, POST"},
		{http.MethodGet, "/transactions/update", "POST"},
		{http.MethodGet, "/transactions/delete", "POST"},
		{http.MethodGet, "/login", "POST"},
		{http.MethodPost, "/api/qltc/transactions", "GET"},
	}
	for _, tt := range tests {
		rec := do(t, s, tt.method, tt.path, "", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: status = %d, want 405", tt.method, tt.path, rec.Code)
		}
		if got := rec.Header().Get("Allow"); got != tt.allow {
			t.Errorf("%s %s: Allow = %q, want %q", tt.method, tt.path, got, tt.allow)
		}
	}
}

func TestLogin(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/login", "application/json", `{"username":"lan","password":"pw"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decode(t, rec)
	if !env.Success || env.UserData == nil || env.UserData.Name != "Lan Nguyen" {
		t.Errorf("envelope = %+v", env)
	}

	form := url.Values{"username": {"lan"}, "password": {"wrong"}}.Encode()
	rec = do(t, s, http.MethodPost, "/login", "application/x-www-form-urlencoded", form)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if env := decode(t, rec); env.Success || env.Message != "Invalid username or password." {
		t.Errorf("envelope = %+v", env)
	}
}

func TestUnconfiguredStore(t *testing.T) {
	missing := []string{"GOOGLE_SPREADSHEET_ID"}
	s := NewServer(Options{Logger: quietLogger()},
		services.NewUnconfiguredStore(missing),
		services.NewAuthenticator(services.NewUnconfiguredDirectory(missing), 0))
	defer s.Shutdown(context.Background())

	for _, req := range []struct{ method, path, body string }{
		{http.MethodGet, "/transactions", ""},
		{http.MethodPost, "/transactions", `{"type":"Chi"}`},
		{http.MethodPost, "/transactions/update", `{"id":"a"}`},
		{http.MethodPost, "/transactions/delete", `{"id":"a"}`},
		{http.MethodPost, "/login", `{"username":"a","password":"b"}`},
	} {
		rec := do(t, s, req.method, req.path, "application/json", req.body)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s %s: status = %d, want 500", req.method, req.path, rec.Code)
			continue
		}
		env := decode(t, rec)
		if env.Message != "Server configuration error." {
			t.Errorf("%s %s: message = %q", req.method, req.path, env.Message)
		}
		if strings.Contains(rec.Body.String(), "GOOGLE_SPREADSHEET_ID") {
			t.Errorf("%s %s: response leaks setting names", req.method, req.path)
		}
	}

	rec := do(t, s, http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not_configured") {
		t.Errorf("readyz body = %s", rec.Body.String())
	}
}

func TestHealthAndReady(t *testing.T) {
	s, _ := newTestServer(t)

	if rec := do(t, s, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
	rec := do(t, s, http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Status != "ready" {
		t.Errorf("readyz body = %s", rec.Body.String())
	}
}

func TestReady_SchemaMismatch(t *testing.T) {
	s, mem := newTestServer(t)
	mem.Seed("Data", []string{"id", "when", "kind"}, nil)

	rec := do(t, s, http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "schema_mismatch") {
		t.Errorf("readyz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/transactions", "application/json", `{"type":"Chi","amount":1}`)
	do(t, s, http.MethodPost, "/login", "application/json", `{"username":"lan","password":"bad"}`)

	rec := do(t, s, http.MethodGet, "/metrics", "", "")
	body := rec.Body.String()
	for _, want := range []string{
		`transactions_changes_total{action="created"} 1`,
		"logins_failed_total 1",
		"# TYPE http_requests_total counter",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q\n%s", want, body)
		}
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/transactions", "", "")

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
	if !strings.HasPrefix(rec.Header().Get("X-Request-ID"), "req_") {
		t.Errorf("X-Request-ID = %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestDashboard(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/?type=Chi", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Food") || strings.Contains(body, "Salary") {
		t.Error("type filter not applied to the table")
	}
	if !strings.Contains(body, "/summary/chart.png?type=Chi") {
		t.Error("chart link does not carry the filter")
	}

	rec = do(t, s, http.MethodGet, "/?edit=t2", "", "")
	if !strings.Contains(rec.Body.String(), `value="lunch"`) {
		t.Error("edit did not stage the draft")
	}

	if rec := do(t, s, http.MethodGet, "/nope", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
}

func TestLogin_PasswordIsNotTrimmed(t *testing.T) {
	s, _ := newTestServer(t)

	for _, body := range []string{
		`{"username":"lan","password":" pw "}`,
		`{"username":"lan","password":"pw "}`,
	} {
		rec := do(t, s, http.MethodPost, "/login", "application/json", body)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", body, rec.Code)
		}
	}

	rec := do(t, s, http.MethodPost, "/login", "application/json", `{"username":" lan ","password":"pw"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("padded username: status = %d, want 200", rec.Code)
	}
}

func TestCreateTransaction_KeepsNoteWhitespace(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/transactions", "application/json",
		`{"date":"15/03/2024","type":"Chi","category":" Books ","amount":"10","note":"  spaced  "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	list := dataList(t, decode(t, do(t, s, http.MethodGet, "/transactions", "", "")))
	if len(list) != 3 || list[2].Note != "  spaced  " || list[2].Category != " Books " {
		t.Errorf("stored = %+v", list[len(list)-1])
	}
}

func TestDashboardSubmitRedirects(t *testing.T) {
	s, _ := newTestServer(t)

	form := url.Values{
		"date":        {"2024-03-15"},
		"type":        {"Chi"},
		"category":    {"Books"},
		"amount":      {"50,000"},
		"filter_type": {"Chi"},
	}
	rec := do(t, s, http.MethodPost, "/ui/transactions", "application/x-www-form-urlencoded", form.Encode())
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/?done=created&type=Chi" {
		t.Errorf("Location = %q", loc)
	}

	page := do(t, s, http.MethodGet, "/?done=created", "", "").Body.String()
	if !strings.Contains(page, "Books") || !strings.Contains(page, "Transaction added.") {
		t.Error("created row or notice missing from dashboard")
	}

	rec = do(t, s, http.MethodPost, "/ui/transactions/delete", "application/x-www-form-urlencoded", "id=t1")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/?done=deleted" {
		t.Errorf("delete = %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestDashboardSubmit_UnknownIDKeepsDraft(t *testing.T) {
	s, _ := newTestServer(t)

	form := url.Values{"id": {"ghost"}, "type": {"Chi"}, "category": {"Keepme"}}
	rec := do(t, s, http.MethodPost, "/ui/transactions", "application/x-www-form-urlencoded", form.Encode())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `value="Keepme"`) || !strings.Contains(body, "Transaction not found.") {
		t.Error("failed submit should re-render the draft with the error")
	}
}

func TestSummaryChart(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/summary/chart.png?q=food", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}

	rec = do(t, s, http.MethodGet, "/summary/categories.png?type=Thu", "", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("income-only category chart status = %d, want 204", rec.Code)
	}
}
