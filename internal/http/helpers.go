package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"qltc/internal/core"
	"qltc/internal/ledger"
	applog "qltc/internal/log"
)

const msgConfigError = "Server configuration error."

// transactionDTO is the JSON form of a transaction. Dates travel as
// dd/mm/yyyy and amounts as plain JSON numbers carrying the exact decimal.
type transactionDTO struct {
	ID       string      `json:"id"`
	Date     string      `json:"date"`
	Type     string      `json:"type"`
	Category string      `json:"category"`
	Amount   json.Number `json:"amount"`
	Note     string      `json:"note"`
}

func toDTO(t core.Transaction) transactionDTO {
	return transactionDTO{
		ID:       t.ID,
		Date:     t.Date.String(),
		Type:     t.Type,
		Category: t.Category,
		Amount:   json.Number(t.Amount.String()),
		Note:     t.Note,
	}
}

func toDTOs(txs []core.Transaction) []transactionDTO {
	out := make([]transactionDTO, 0, len(txs))
	for _, t := range txs {
		out = append(out, toDTO(t))
	}
	return out
}

// storeErrorResponse maps a store failure to a status and a client-safe
// message. The full error is logged by the caller.
func storeErrorResponse(err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError("Transaction not found.")
	case errors.Is(err, core.ErrConfiguration):
		return InternalServerError(msgConfigError)
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse(http.StatusGatewayTimeout, "The spreadsheet did not answer in time.")
	default:
		return InternalServerError(err.Error())
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return applog.ErrorTypeNotFound
	case errors.Is(err, core.ErrInvalidCredentials):
		return applog.ErrorTypeAuth
	case errors.Is(err, core.ErrConfiguration):
		return applog.ErrorTypeConfiguration
	case errors.Is(err, context.DeadlineExceeded):
		return applog.ErrorTypeTimeout
	default:
		return applog.ErrorTypeBackend
	}
}

// filterFromQuery reads the dashboard filter from ?type=&q=.
func filterFromQuery(q url.Values) ledger.Filter {
	f := ledger.Filter{Type: sanitizeInput(q.Get("type")), Search: sanitizeInput(q.Get("q"))}
	if f.Type == "" {
		f.Type = ledger.FilterAll
	}
	return f
}

// filterQuery is the inverse of filterFromQuery, omitting defaults.
func filterQuery(f ledger.Filter) string {
	v := url.Values{}
	if f.Type != "" && f.Type != ledger.FilterAll {
		v.Set("type", f.Type)
	}
	if f.Search != "" {
		v.Set("q", f.Search)
	}
	return v.Encode()
}

// sanitizeInput trims and strips control characters except tab and newlines.
func sanitizeInput(s string) string {
	return stripControl(strings.TrimSpace(s))
}

// stripControl drops control characters other than tab and line breaks.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		if r == 0x7f {
			return -1
		}
		return r
	}, s)
}
