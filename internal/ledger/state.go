// Package ledger holds the client-side view of the transaction list: the
// current filter, the visible subset, its summary and the edit slot.
//
// State changes are plain functions from AppState to AppState. They never
// mutate their input, so a caller can keep an old state around for
// comparison or undo. Every reducer that touches data or filters re-derives
// Visible and Summary before returning.
package ledger

import (
	"strings"

	"qltc/internal/core"
)

// FilterAll disables the type filter.
const FilterAll = "all"

type (
	Filter struct {
		Type   string
		Search string
	}

	// Draft is the form being edited. Date is in yyyy-mm-dd; Amount is the
	// text the user typed.
	Draft struct {
		Date     string
		Type     string
		Category string
		Amount   string
		Note     string
	}

	NoticeKind string

	// Notice is a non-blocking message for the user.
	Notice struct {
		Kind    NoticeKind
		Message string
	}

	AppState struct {
		User    *core.User
		All     []core.Transaction
		Filter  Filter
		Visible []core.Transaction
		Summary core.Summary
		// Editing is the id in the edit slot; "" means idle.
		Editing string
		Draft   Draft
		Notice  *Notice
	}
)

const (
	NoticeInfo  NoticeKind = "info"
	NoticeError NoticeKind = "error"
)

// New returns the logged-out initial state.
func New() AppState {
	return AppState{Filter: Filter{Type: FilterAll}}
}

// IsEditing reports whether the edit slot holds a transaction.
func (s AppState) IsEditing() bool { return s.Editing != "" }

// Pending builds the transaction a submit would send. With the slot empty it
// is a create (no id); otherwise an update of the edited id.
func (s AppState) Pending() core.Transaction {
	return s.Draft.Transaction(s.Editing)
}

// Transaction converts the draft. Unparseable amounts and dates degrade.
func (d Draft) Transaction(id string) core.Transaction {
	return core.Transaction{
		ID:       id,
		Date:     core.ParseDateLenient(d.Date),
		Type:     strings.TrimSpace(d.Type),
		Category: d.Category,
		Amount:   core.ParseAmount(d.Amount),
		Note:     d.Note,
	}
}

// DraftOf stages a copy of tx for editing.
func DraftOf(tx core.Transaction) Draft {
	return Draft{
		Date:     tx.Date.InputValue(),
		Type:     tx.Type,
		Category: tx.Category,
		Amount:   tx.Amount.String(),
		Note:     tx.Note,
	}
}

// Loaded replaces the full transaction set.
func Loaded(s AppState, txs []core.Transaction) AppState {
	s.All = append([]core.Transaction(nil), txs...)
	return recompute(s)
}

func SetTypeFilter(s AppState, t string) AppState {
	t = strings.TrimSpace(t)
	if t == "" {
		t = FilterAll
	}
	s.Filter.Type = t
	return recompute(s)
}

func SetSearch(s AppState, q string) AppState {
	s.Filter.Search = q
	return recompute(s)
}

// BeginEdit puts id in the edit slot and stages its draft. An id not in the
// current set leaves the slot untouched and raises a notice.
func BeginEdit(s AppState, id string) AppState {
	for _, tx := range s.All {
		if tx.ID == id {
			s.Editing = id
			s.Draft = DraftOf(tx)
			s.Notice = nil
			return s
		}
	}
	s.Notice = &Notice{Kind: NoticeError, Message: "Transaction not found."}
	return s
}

func CancelEdit(s AppState) AppState {
	s.Editing = ""
	s.Draft = Draft{}
	return s
}

func UpdateDraft(s AppState, d Draft) AppState {
	s.Draft = d
	return s
}

// SubmitSucceeded returns the slot to idle. The caller reloads the set.
func SubmitSucceeded(s AppState) AppState {
	wasEdit := s.IsEditing()
	s = CancelEdit(s)
	msg := "Transaction added."
	if wasEdit {
		msg = "Transaction updated."
	}
	s.Notice = &Notice{Kind: NoticeInfo, Message: msg}
	return s
}

// SubmitFailed keeps the slot and draft so the user can retry.
func SubmitFailed(s AppState, err error) AppState {
	s.Notice = &Notice{Kind: NoticeError, Message: errorMessage(err)}
	return s
}

// AcknowledgeFailure dismisses the notice and returns the slot to idle.
func AcknowledgeFailure(s AppState) AppState {
	s = CancelEdit(s)
	s.Notice = nil
	return s
}

// Failed records a failure of an operation that has no edit slot, such as
// a reload or delete.
func Failed(s AppState, err error) AppState {
	s.Notice = &Notice{Kind: NoticeError, Message: errorMessage(err)}
	return s
}

// Informed shows an informational notice.
func Informed(s AppState, msg string) AppState {
	s.Notice = &Notice{Kind: NoticeInfo, Message: msg}
	return s
}

// Dismiss clears the notice only.
func Dismiss(s AppState) AppState {
	s.Notice = nil
	return s
}

func LoggedIn(s AppState, u core.User) AppState {
	s.User = &u
	s.Notice = nil
	return s
}

// LoggedOut drops the user and everything loaded on their behalf.
func LoggedOut(AppState) AppState {
	return New()
}

// Removed drops the edit slot if it pointed at id.
func Removed(s AppState, id string) AppState {
	if s.Editing == id {
		s = CancelEdit(s)
	}
	return s
}

func recompute(s AppState) AppState {
	s.Visible = Apply(s.All, s.Filter)
	s.Summary = core.Summarize(s.Visible)
	return s
}

func errorMessage(err error) string {
	if err == nil {
		return "Something went wrong."
	}
	return err.Error()
}
