package http

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"sort"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"qltc/internal/charts"
	"qltc/internal/core"
	"qltc/internal/ledger"
	applog "qltc/internal/log"
)

var templateFuncs = template.FuncMap{
	"money":    core.FormatCurrency,
	"isIncome": core.IsIncome,
	"negative": func(d decimal.Decimal) bool { return d.IsNegative() },
}

// completed maps the ?done= marker set after a redirect to its notice.
var completed = map[string]string{
	"created": "Transaction added.",
	"updated": "Transaction updated.",
	"deleted": "Transaction deleted.",
}

type dashboardView struct {
	State ledger.AppState
	Types []string
	// Filter is the encoded filter query, reused by links and the chart.
	Filter template.URL
}

// loadState lists the table and applies the filter in q. A store failure
// becomes the state's notice; the returned error is for logging and status.
func (s *Server) loadState(r *http.Request, f ledger.Filter) (ledger.AppState, error) {
	st := ledger.New()
	txs, err := s.txs.List(r.Context())
	if err != nil {
		st = ledger.Failed(st, publicError(err))
	} else {
		st = ledger.Loaded(st, txs)
	}
	st = ledger.SetTypeFilter(st, f.Type)
	st = ledger.SetSearch(st, f.Search)
	return st, err
}

// handleIndex renders the dashboard for the filter in ?type=&q=. ?edit=<id>
// stages that transaction in the form.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError("Not found.").Write(w)
		return
	}
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
		resp.Write(w)
		return
	}

	q := r.URL.Query()
	st, err := s.loadState(r, filterFromQuery(q))
	status := http.StatusOK
	if err != nil {
		s.logStoreError(r, applog.OpList, "", err)
		status = storeErrorResponse(err).statusCode
	} else {
		if id := sanitizeInput(q.Get("edit")); id != "" {
			st = ledger.BeginEdit(st, id)
		}
		if msg, ok := completed[q.Get("done")]; ok {
			st = ledger.Informed(st, msg)
		}
	}
	s.renderDashboard(w, r, status, st)
}

// handleDashboardSubmit creates (no id) or updates (id) from the form, then
// redirects back to the filtered dashboard.
func (s *Server) handleDashboardSubmit(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	f := ledger.Filter{Type: p.Get("filter_type"), Search: p.Get("filter_q")}
	draft := ledger.Draft{
		Date:     p.Get("date"),
		Type:     p.Get("type"),
		Category: p.Value("category"),
		Amount:   p.Get("amount"),
		Note:     p.Value("note"),
	}
	id := p.Get("id")
	tx := draft.Transaction(id)

	op, done := applog.OpCreate, "created"
	var err error
	if id == "" {
		tx, err = s.txs.Create(r.Context(), tx)
	} else {
		op, done = applog.OpUpdate, "updated"
		tx, err = s.txs.Update(r.Context(), tx)
	}
	if err != nil {
		s.logStoreError(r, op, id, err)
		st, _ := s.loadState(r, f)
		if id != "" {
			st = ledger.BeginEdit(st, id)
		}
		st = ledger.UpdateDraft(st, draft)
		st = ledger.SubmitFailed(st, publicError(err))
		s.renderDashboard(w, r, storeErrorResponse(err).statusCode, st)
		return
	}

	if id == "" {
		atomic.AddInt64(&s.appMetrics.created, 1)
	} else {
		atomic.AddInt64(&s.appMetrics.updated, 1)
	}
	s.logChange(r, op, tx)
	http.Redirect(w, r, dashboardURL(f, done), http.StatusSeeOther)
}

func (s *Server) handleDashboardDelete(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	f := ledger.Filter{Type: p.Get("filter_type"), Search: p.Get("filter_q")}
	id := p.Get("id")
	if id == "" {
		BadRequestError("Missing transaction id.").Write(w)
		return
	}

	if err := s.txs.Delete(r.Context(), id); err != nil {
		s.logStoreError(r, applog.OpDelete, id, err)
		st, _ := s.loadState(r, f)
		st = ledger.Failed(st, publicError(err))
		s.renderDashboard(w, r, storeErrorResponse(err).statusCode, st)
		return
	}
	atomic.AddInt64(&s.appMetrics.deleted, 1)
	s.logChange(r, applog.OpDelete, core.Transaction{ID: id})
	http.Redirect(w, r, dashboardURL(f, "deleted"), http.StatusSeeOther)
}

// handleSummaryChart draws the summary of the filtered set as a PNG.
func (s *Server) handleSummaryChart(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	st, err := s.loadState(r, filterFromQuery(r.URL.Query()))
	if err != nil {
		s.storeFailure(w, r, applog.OpList, "", err)
		return
	}

	png, err := charts.SummaryChart(st.Summary, chartTitle(st.Filter))
	if err != nil {
		s.renderFailure(w, r, err)
		return
	}
	writePNG(w, png)
}

// handleCategoryChart draws the expense split of the filtered set. An empty
// split answers 204.
func (s *Server) handleCategoryChart(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	st, err := s.loadState(r, filterFromQuery(r.URL.Query()))
	if err != nil {
		s.storeFailure(w, r, applog.OpList, "", err)
		return
	}

	png, err := charts.CategoryChart(st.Visible, "Expenses by category")
	if errors.Is(err, charts.ErrNoData) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.renderFailure(w, r, err)
		return
	}
	writePNG(w, png)
}

func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, status int, st ledger.AppState) {
	if s.templates == nil {
		s.logger.WithComponent(applog.ComponentTemplate).
			ErrorContext(r.Context(), "Templates not loaded", applog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	view := dashboardView{
		State:  st,
		Types:  typeOptions(st),
		Filter: template.URL(filterQuery(st.Filter)),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, "index.html", view); err != nil {
		s.logger.WithComponent(applog.ComponentTemplate).ErrorContext(r.Context(), "Index template execution failed",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpRender)
	}
}

func (s *Server) renderFailure(w http.ResponseWriter, r *http.Request, err error) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentHTTP).
		ErrorContext(r.Context(), "Chart rendering failed", applog.FieldError, err, applog.FieldOperation, applog.OpRender)
	InternalServerError("Could not render chart.").Write(w)
}

func (s *Server) logStoreError(r *http.Request, op, id string, err error) {
	fields := applog.NewFields().WithErrorType(errorType(err))
	if id != "" {
		fields[applog.FieldTransactionID] = id
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogError(r.Context(), "Transaction store request failed", err, applog.ComponentStore, op, fields)
}

// publicError is err reduced to the message a user may see.
func publicError(err error) error {
	return errors.New(storeErrorResponse(err).envelope.Message)
}

// typeOptions lists the distinct types of the loaded set, sorted, plus the
// active filter type if no row carries it.
func typeOptions(st ledger.AppState) []string {
	seen := map[string]bool{}
	var out []string
	add := func(t string) {
		if t == "" || t == ledger.FilterAll || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	}
	for _, tx := range st.All {
		add(tx.Type)
	}
	add(st.Filter.Type)
	sort.Strings(out)
	return out
}

func dashboardURL(f ledger.Filter, done string) string {
	v, _ := url.ParseQuery(filterQuery(f))
	if done != "" {
		v.Set("done", done)
	}
	if len(v) == 0 {
		return "/"
	}
	return "/?" + v.Encode()
}

func chartTitle(f ledger.Filter) string {
	title := "Summary"
	if f.Type != "" && f.Type != ledger.FilterAll {
		title += " · " + f.Type
	}
	if f.Search != "" {
		title += " · \"" + f.Search + "\""
	}
	return title
}

func writePNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
