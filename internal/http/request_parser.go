// Package http provides the JSON API, the server-rendered dashboard and the
// chart endpoints.
//
// This file implements reading request bodies. API clients send JSON; the
// dashboard forms send url-encoded bodies. Both end up behind the same Get.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"qltc/internal/core"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

var (
	errBodyTooLarge  = errors.New("request body too large")
	errNotJSONObject = errors.New("request body must be a JSON object")
)

// RequestBodyParser reads a body once and exposes its fields by name.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	var tooLarge *http.MaxBytesError
	if errors.As(p.err, &tooLarge) {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse decodes the body as JSON when it looks like JSON or is declared as
// such, and as a url-encoded form otherwise.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.declaresJSON() || trimmed[0] == '{' || trimmed[0] == '[' {
		if trimmed[0] != '{' {
			p.err = errNotJSONObject
			return p.err
		}
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

func (p *RequestBodyParser) declaresJSON() bool {
	mt, _, err := mime.ParseMediaType(p.contentType)
	return err == nil && (mt == "application/json" || strings.HasSuffix(mt, "+json"))
}

// Get returns the trimmed, sanitised value of key, or "".
func (p *RequestBodyParser) Get(key string) string {
	return strings.TrimSpace(p.Value(key))
}

// Value is Get without the trimming, for free text whose surrounding
// whitespace belongs to the value.
func (p *RequestBodyParser) Value(key string) string {
	return stripControl(p.Raw(key))
}

// Raw returns the value of key exactly as sent. Secrets are read this way.
func (p *RequestBodyParser) Raw(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return stringValue(val)
		}
		return ""
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue renders a decoded JSON scalar as text. Numbers keep their
// exact literal so amounts are not rounded through float64.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// Transaction builds a transaction from the body fields. Coercion is lenient:
// an unreadable date becomes the zero date and an unreadable amount zero.
// Category and note are kept as typed.
func (p *RequestBodyParser) Transaction() core.Transaction {
	return core.Transaction{
		ID:       p.Get("id"),
		Date:     core.ParseDateLenient(p.Get("date")),
		Type:     p.Get("type"),
		Category: p.Value("category"),
		Amount:   core.ParseAmount(p.Get("amount")),
		Note:     p.Value("note"),
	}
}

// RequireMethod returns a 405 response when r.Method is not one of methods.
func RequireMethod(r *http.Request, methods ...string) *JSONResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

func RequirePOST(r *http.Request) *JSONResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// parseBody reads and parses the request body, answering 400 or 413 itself
// when that fails.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "Request body too large.").Write(w)
		} else {
			BadRequestError("Invalid request body.").Write(w)
		}
		return nil, false
	}
	return p, true
}
