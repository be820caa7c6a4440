package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	ports "qltc/internal/sheets"

	"golang.org/x/oauth2"
	xgoogle "golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// lastColumn bounds every row range; the widest table schema fits well inside.
const lastColumn = "Z"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// Ensure interface conformance
var _ ports.RowStore = (*Client)(nil)

// Credentials identifies the service account. Either JSON (a key file's
// content) or the Email/PrivateKey pair must be set.
type Credentials struct {
	JSON       []byte
	Email      string
	PrivateKey string
}

// CredentialsFromFile reads a service account key file.
func CredentialsFromFile(path string) (Credentials, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read service account file: %w", err)
	}
	return Credentials{JSON: b}, nil
}

// New creates a Sheets row-store authenticated as a service account. The
// underlying transport is pooled and carries dial, TLS and header timeouts.
func New(ctx context.Context, spreadsheetID string, creds Credentials) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	base := newHTTPClientWithPooling()
	ts, err := tokenSource(context.WithValue(ctx, oauth2.HTTPClient, base), creds)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: base.Transport},
		Timeout:   base.Timeout,
	}

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "has_json", len(creds.JSON) > 0, "has_key_pair", creds.Email != "")
	return NewWithService(svc, spreadsheetID), nil
}

// NewWithService wraps an already configured service.
func NewWithService(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetIDs: map[string]int64{}}
}

func tokenSource(ctx context.Context, creds Credentials) (oauth2.TokenSource, error) {
	switch {
	case len(creds.JSON) > 0:
		c, err := xgoogle.CredentialsFromJSON(ctx, creds.JSON, gsheet.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("parse service account json: %w", err)
		}
		return c.TokenSource, nil
	case creds.Email != "" && creds.PrivateKey != "":
		cfg := &jwt.Config{
			Email:      creds.Email,
			PrivateKey: []byte(creds.PrivateKey),
			Scopes:     []string{gsheet.SpreadsheetsScope},
			TokenURL:   xgoogle.JWTTokenURL,
		}
		return cfg.TokenSource(ctx), nil
	default:
		return nil, errors.New("missing service account credentials")
	}
}

// newHTTPClientWithPooling creates an HTTP client optimized for Google Sheets API
// with connection pooling, proper timeouts, and keep-alive settings
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

// Rows reads every data row below the header.
func (c *Client) Rows(ctx context.Context, table string) ([][]string, error) {
	rng := a1(table, "A2:"+lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = toStrings(row)
	}
	return out, nil
}

// AppendRow inserts the row after the last row of the table. Cells are
// written RAW so ids, dates and amounts are stored exactly as given.
func (c *Client) AppendRow(ctx context.Context, table string, row []string) error {
	rng := a1(table, "A1")
	vr := &gsheet.ValueRange{Values: [][]any{toCells(row)}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", table, err)
	}
	return nil
}

// UpdateRow overwrites the data row at pos (sheet row pos+2).
func (c *Client) UpdateRow(ctx context.Context, table string, pos int, row []string) error {
	if pos < 0 {
		return fmt.Errorf("update %s row %d: %w", table, pos, ports.ErrRowOutOfRange)
	}
	n := pos + 2
	rng := a1(table, fmt.Sprintf("A%d:%s%d", n, lastColumn, n))
	vr := &gsheet.ValueRange{Values: [][]any{toCells(row)}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// DeleteRow removes the data row at pos; rows below shift up.
func (c *Client) DeleteRow(ctx context.Context, table string, pos int) error {
	if pos < 0 {
		return fmt.Errorf("delete %s row %d: %w", table, pos, ports.ErrRowOutOfRange)
	}
	sheetID, err := c.sheetID(ctx, table)
	if err != nil {
		return err
	}
	start := int64(pos + 1) // header occupies index 0
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: start,
					EndIndex:   start + 1,
					// sheetId 0 is valid and must be sent.
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete %s row %d: %w", table, pos, err)
	}
	return nil
}

func (c *Client) Header(ctx context.Context, table string) ([]string, error) {
	rng := a1(table, "A1:"+lastColumn+"1")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	return toStrings(resp.Values[0]), nil
}

func (c *Client) SetHeader(ctx context.Context, table string, header []string) error {
	rng := a1(table, "A1")
	vr := &gsheet.ValueRange{Values: [][]any{toCells(header)}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header %s: %w", rng, err)
	}
	return nil
}

// sheetID resolves the numeric id of a tab, needed for structural edits.
func (c *Client) sheetID(ctx context.Context, table string) (int64, error) {
	c.mu.Lock()
	id, ok := c.sheetIDs[table]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range ss.Sheets {
		if s.Properties == nil {
			continue
		}
		c.sheetIDs[s.Properties.Title] = s.Properties.SheetId
	}
	id, ok = c.sheetIDs[table]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found", table)
	}
	return id, nil
}

// a1 builds an A1 range, quoting the sheet title when needed.
func a1(table, cells string) string {
	if strings.ContainsAny(table, " '!:") {
		table = "'" + strings.ReplaceAll(table, "'", "''") + "'"
	}
	return table + "!" + cells
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toCells(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
