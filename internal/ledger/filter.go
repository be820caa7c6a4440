package ledger

import (
	"strings"

	"golang.org/x/text/cases"

	"qltc/internal/core"
)

// Apply returns the transactions that pass f, in order.
func Apply(txs []core.Transaction, f Filter) []core.Transaction {
	m := newMatcher(f)
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if m.match(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// Matches reports whether tx passes f: the type must equal the filter type
// unless it is "all", and the search text must occur in category + " " + note,
// ignoring case.
func Matches(tx core.Transaction, f Filter) bool {
	return newMatcher(f).match(tx)
}

type matcher struct {
	typ    string
	needle string
	fold   cases.Caser
}

func newMatcher(f Filter) matcher {
	// A Caser keeps state; one per matcher.
	fold := cases.Fold()
	return matcher{typ: f.Type, needle: fold.String(f.Search), fold: fold}
}

func (m matcher) match(tx core.Transaction) bool {
	if m.typ != "" && m.typ != FilterAll && tx.Type != m.typ {
		return false
	}
	if m.needle == "" {
		return true
	}
	return strings.Contains(m.fold.String(tx.Category+" "+tx.Note), m.needle)
}
