package http

import (
	"errors"
	"net/http"
	"sync/atomic"

	"qltc/internal/core"
	applog "qltc/internal/log"
)

// handleLogin checks a username/password pair and returns the display
// identity. There is no session: the client keeps the identity itself.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	username, password := p.Get("username"), p.Raw("password")
	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).
		With(applog.FieldOperation, applog.OpLogin)

	user, err := s.auth.Authenticate(r.Context(), username, password)
	switch {
	case err == nil:
		atomic.AddInt64(&s.appMetrics.logins, 1)
		logger.InfoContext(r.Context(), "Login succeeded", applog.FieldUsername, user.Username)
		NewJSONResponse().UserData(user).Write(w)
	case errors.Is(err, core.ErrInvalidCredentials):
		atomic.AddInt64(&s.appMetrics.failedLogins, 1)
		logger.WarnContext(r.Context(), "Login rejected", applog.FieldUsername, username)
		UnauthorizedError("Invalid username or password.").Write(w)
	case errors.Is(err, core.ErrConfiguration):
		logger.ErrorContext(r.Context(), "Login failed", applog.FieldError, err, applog.FieldErrorType, applog.ErrorTypeConfiguration)
		InternalServerError(msgConfigError).Write(w)
	default:
		logger.ErrorContext(r.Context(), "Login failed", applog.FieldError, err, applog.FieldErrorType, errorType(err))
		InternalServerError(err.Error()).Write(w)
	}
}
