// Package client talks to the qltc JSON API. It implements ledger.API so a
// ledger.Session can run against a remote server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"qltc/internal/core"
	"qltc/internal/ledger"
	applog "qltc/internal/log"
)

// DefaultTimeout bounds every request, including reading the response.
const DefaultTimeout = 15 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

var _ ledger.API = (*Client)(nil)

// APIError is a failed envelope, or a non-JSON answer, from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server answered %d", e.StatusCode)
	}
	return e.Message
}

// Is maps well-known statuses onto the core sentinels.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusNotFound:
		return target == core.ErrNotFound
	case http.StatusUnauthorized:
		return target == core.ErrInvalidCredentials
	}
	return false
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(),
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With(applog.FieldComponent, applog.ComponentClient)
	return c
}

func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			MaxIdleConns:          4,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
		},
		Timeout: DefaultTimeout,
	}
}

// transaction is the wire form of core.Transaction.
type transaction struct {
	ID       string      `json:"id,omitempty"`
	Date     string      `json:"date"`
	Type     string      `json:"type"`
	Category string      `json:"category"`
	Amount   json.Number `json:"amount"`
	Note     string      `json:"note"`
}

func fromCore(t core.Transaction) transaction {
	return transaction{
		ID:       t.ID,
		Date:     t.Date.String(),
		Type:     t.Type,
		Category: t.Category,
		Amount:   json.Number(t.Amount.String()),
		Note:     t.Note,
	}
}

func (t transaction) toCore() core.Transaction {
	amount, err := decimal.NewFromString(t.Amount.String())
	if err != nil {
		amount = core.ParseAmount(t.Amount.String())
	}
	return core.Transaction{
		ID:       t.ID,
		Date:     core.ParseDateLenient(t.Date),
		Type:     t.Type,
		Category: t.Category,
		Amount:   amount,
		Note:     t.Note,
	}
}

type envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	UserData *core.User      `json:"userData"`
	Message  string          `json:"message"`
}

func (c *Client) Login(ctx context.Context, username, password string) (core.User, error) {
	env, err := c.post(ctx, "/login", map[string]string{"username": username, "password": password})
	if err != nil {
		return core.User{}, err
	}
	if env.UserData == nil {
		return core.User{}, errors.New("login response carried no user")
	}
	return *env.UserData, nil
}

func (c *Client) List(ctx context.Context) ([]core.Transaction, error) {
	env, err := c.do(ctx, http.MethodGet, "/transactions", nil)
	if err != nil {
		return nil, err
	}
	var wire []transaction
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &wire); err != nil {
			return nil, fmt.Errorf("decode transactions: %w", err)
		}
	}
	out := make([]core.Transaction, 0, len(wire))
	for _, t := range wire {
		out = append(out, t.toCore())
	}
	return out, nil
}

func (c *Client) Create(ctx context.Context, tx core.Transaction) error {
	tx.ID = ""
	_, err := c.post(ctx, "/transactions", fromCore(tx))
	return err
}

func (c *Client) Update(ctx context.Context, tx core.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("update: %w", core.ErrNotFound)
	}
	_, err := c.post(ctx, "/transactions/update", fromCore(tx))
	return err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("delete: %w", core.ErrNotFound)
	}
	_, err := c.post(ctx, "/transactions/delete", map[string]string{"id": id})
	return err
}

func (c *Client) post(ctx context.Context, path string, body any) (*envelope, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, b)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*envelope, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.DebugContext(ctx, "API call",
		applog.FieldMethod, method,
		applog.FieldPath, path,
		applog.FieldStatusCode, resp.StatusCode,
		applog.FieldDuration, time.Since(start).Milliseconds())

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if resp.StatusCode >= 400 || !env.Success {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	return &env, nil
}
