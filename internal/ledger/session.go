package ledger

import (
	"context"
	"errors"
	"sync"

	"qltc/internal/core"
)

// API is the backend the session talks to.
type API interface {
	Login(ctx context.Context, username, password string) (core.User, error)
	List(ctx context.Context) ([]core.Transaction, error)
	Create(ctx context.Context, tx core.Transaction) error
	Update(ctx context.Context, tx core.Transaction) error
	Delete(ctx context.Context, id string) error
}

var ErrNotLoggedIn = errors.New("not logged in")

// Session runs the side effects around AppState. After every successful
// mutation it reloads the whole set from the backend instead of patching the
// local copy. Failures end up in the state's Notice; the returned error is
// for callers that want to branch on it.
type Session struct {
	api API

	mu    sync.Mutex
	state AppState
}

func NewSession(api API) *Session {
	return &Session{api: api, state: New()}
}

// State returns a snapshot of the current state.
func (s *Session) State() AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) apply(f func(AppState) AppState) AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = f(s.state)
	return s.state
}

func (s *Session) Login(ctx context.Context, username, password string) error {
	u, err := s.api.Login(ctx, username, password)
	if err != nil {
		s.apply(func(st AppState) AppState { return Failed(st, err) })
		return err
	}
	s.apply(func(st AppState) AppState { return LoggedIn(st, u) })
	return s.Reload(ctx)
}

func (s *Session) Logout() {
	s.apply(LoggedOut)
}

// Reload fetches the full set and recomputes the view.
func (s *Session) Reload(ctx context.Context) error {
	if err := s.requireUser(); err != nil {
		return err
	}
	txs, err := s.api.List(ctx)
	if err != nil {
		s.apply(func(st AppState) AppState { return Failed(st, err) })
		return err
	}
	s.apply(func(st AppState) AppState { return Loaded(st, txs) })
	return nil
}

func (s *Session) SetTypeFilter(t string) AppState {
	return s.apply(func(st AppState) AppState { return SetTypeFilter(st, t) })
}

func (s *Session) SetSearch(q string) AppState {
	return s.apply(func(st AppState) AppState { return SetSearch(st, q) })
}

func (s *Session) BeginEdit(id string) AppState {
	return s.apply(func(st AppState) AppState { return BeginEdit(st, id) })
}

func (s *Session) CancelEdit() AppState {
	return s.apply(CancelEdit)
}

func (s *Session) UpdateDraft(d Draft) AppState {
	return s.apply(func(st AppState) AppState { return UpdateDraft(st, d) })
}

func (s *Session) AcknowledgeFailure() AppState {
	return s.apply(AcknowledgeFailure)
}

// Submit sends the draft: a create when the slot is idle, an update of the
// edited id otherwise.
func (s *Session) Submit(ctx context.Context) error {
	if err := s.requireUser(); err != nil {
		return err
	}
	st := s.State()
	tx := st.Pending()

	var err error
	if st.IsEditing() {
		err = s.api.Update(ctx, tx)
	} else {
		err = s.api.Create(ctx, tx)
	}
	if err != nil {
		s.apply(func(st AppState) AppState { return SubmitFailed(st, err) })
		return err
	}
	s.apply(SubmitSucceeded)
	return s.Reload(ctx)
}

func (s *Session) Delete(ctx context.Context, id string) error {
	if err := s.requireUser(); err != nil {
		return err
	}
	if err := s.api.Delete(ctx, id); err != nil {
		s.apply(func(st AppState) AppState { return Failed(st, err) })
		return err
	}
	s.apply(func(st AppState) AppState { return Removed(st, id) })
	return s.Reload(ctx)
}

func (s *Session) requireUser() error {
	if s.State().User == nil {
		s.apply(func(st AppState) AppState { return Failed(st, ErrNotLoggedIn) })
		return ErrNotLoggedIn
	}
	return nil
}
