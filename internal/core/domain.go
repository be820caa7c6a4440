package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// WireDateLayout is the dd/mm/yyyy form used in the table and over JSON.
	WireDateLayout = "02/01/2006"
	// InputDateLayout is the yyyy-mm-dd form used by date inputs.
	InputDateLayout = "2006-01-02"
)

type (
	Date struct {
		time.Time
	}

	Transaction struct {
		ID       string
		Date     Date
		Type     string // "Thu"/"Income" count as income, anything else is an expense
		Category string
		Amount   decimal.Decimal
		Note     string
	}

	// User is the identity returned by a successful login.
	User struct {
		Username string `json:"username"`
		Name     string `json:"name"`
	}
)

var (
	ErrNotFound           = errors.New("transaction not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrConfiguration      = errors.New("server configuration error")
	ErrInvalidDate        = errors.New("invalid date")
)

// ConfigError reports which settings are missing. It never carries values.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	if len(e.Missing) == 0 {
		return ErrConfiguration.Error()
	}
	return "missing configuration: " + strings.Join(e.Missing, ", ")
}

// Is lets callers match any ConfigError with errors.Is(err, ErrConfiguration).
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// accepted input layouts, tried in order
var dateLayouts = []string{
	"2/1/2006",
	"2006-1-2",
	"2-1-2006",
	"2.1.2006",
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts dd/mm/yyyy and yyyy-mm-dd (plus a few lenient variants).
// An empty string yields the zero Date and no error.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, ErrInvalidDate
}

// ParseDateLenient degrades unparseable input to the zero Date.
func ParseDateLenient(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		return Date{}
	}
	return d
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String renders the wire form (dd/mm/yyyy), or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(WireDateLayout)
}

// InputValue renders the date-input form (yyyy-mm-dd), or "".
func (d Date) InputValue() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(InputDateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON is lenient: anything it cannot read becomes the zero date.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*d = Date{}
		return nil
	}
	*d = ParseDateLenient(s)
	return nil
}

// IsIncome reports whether a type label counts as income.
func IsIncome(txType string) bool {
	t := strings.TrimSpace(txType)
	return strings.EqualFold(t, "thu") || strings.EqualFold(t, "income")
}

func (t Transaction) IsIncome() bool {
	return IsIncome(t.Type)
}
