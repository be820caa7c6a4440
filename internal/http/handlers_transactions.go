package http

import (
	"net/http"
	"sync/atomic"

	"qltc/internal/core"
	applog "qltc/internal/log"
)

// handleTransactions serves GET (list) and POST (create) on /transactions.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTransactions(w, r)
	case http.MethodPost:
		s.handleCreateTransaction(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	txs, err := s.txs.List(r.Context())
	if err != nil {
		s.storeFailure(w, r, applog.OpList, "", err)
		return
	}
	NewJSONResponse().Data(toDTOs(txs)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	tx := p.Transaction()

	created, err := s.txs.Create(r.Context(), tx)
	if err != nil {
		s.storeFailure(w, r, applog.OpCreate, "", err)
		return
	}
	atomic.AddInt64(&s.appMetrics.created, 1)
	s.logChange(r, applog.OpCreate, created)
	NewJSONResponse().Data(toDTO(created)).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	tx := p.Transaction()
	if tx.ID == "" {
		BadRequestError("Missing transaction id.").Write(w)
		return
	}

	updated, err := s.txs.Update(r.Context(), tx)
	if err != nil {
		s.storeFailure(w, r, applog.OpUpdate, tx.ID, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.updated, 1)
	s.logChange(r, applog.OpUpdate, updated)
	NewJSONResponse().Data(toDTO(updated)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	id := p.Get("id")
	if id == "" {
		BadRequestError("Missing transaction id.").Write(w)
		return
	}

	if err := s.txs.Delete(r.Context(), id); err != nil {
		s.storeFailure(w, r, applog.OpDelete, id, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.deleted, 1)
	s.logChange(r, applog.OpDelete, core.Transaction{ID: id})
	NewJSONResponse().Write(w)
}

func (s *Server) logChange(r *http.Request, op string, tx core.Transaction) {
	amount := ""
	if op != applog.OpDelete {
		amount = tx.Amount.String()
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogTransactionChange(r.Context(), op, tx.ID, tx.Type, tx.Category, amount)
}

// storeFailure logs err in full and answers with the mapped envelope.
func (s *Server) storeFailure(w http.ResponseWriter, r *http.Request, op, id string, err error) {
	s.logStoreError(r, op, id, err)
	storeErrorResponse(err).Write(w)
}
