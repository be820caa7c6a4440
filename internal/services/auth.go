package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"qltc/internal/core"
	applog "qltc/internal/log"
	"qltc/internal/sheets"
)

// UserRecord is one entry of the login directory. Passwords are plaintext;
// this is an identification step, not a security boundary.
type UserRecord struct {
	Username string
	Password string
	Name     string
}

// UserDirectory lists the known users.
type UserDirectory interface {
	Users(ctx context.Context) ([]UserRecord, error)
}

// StaticDirectory is a fixed list of users, typically from APP_USERS.
type StaticDirectory []UserRecord

func (d StaticDirectory) Users(context.Context) ([]UserRecord, error) {
	return d, nil
}

// ParseUserList reads "user:pass:Display Name;user2:pass2" entries. The
// display name is optional and defaults to the username.
func ParseUserList(s string) (StaticDirectory, error) {
	var out StaticDirectory
	for i, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("user entry %d: expected user:password[:name]", i+1)
		}
		rec := UserRecord{Username: strings.TrimSpace(parts[0]), Password: parts[1]}
		if len(parts) == 3 {
			rec.Name = strings.TrimSpace(parts[2])
		}
		out = append(out, rec)
	}
	return out, nil
}

// SheetDirectory reads users from a table laid out as username, password, name.
type SheetDirectory struct {
	Rows  sheets.RowReader
	Table string
}

func (d SheetDirectory) Users(ctx context.Context) ([]UserRecord, error) {
	rows, err := d.Rows.Rows(ctx, d.Table)
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}
	out := make([]UserRecord, 0, len(rows))
	for _, r := range rows {
		rec := UserRecord{Username: strings.TrimSpace(cell(r, 0)), Password: cell(r, 1), Name: strings.TrimSpace(cell(r, 2))}
		if rec.Username == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// MultiDirectory concatenates directories; earlier ones win on duplicate names.
// A directory that cannot be read is skipped. Users fails only when none of
// them could be read.
type MultiDirectory []UserDirectory

func (m MultiDirectory) Users(ctx context.Context) ([]UserRecord, error) {
	var (
		out  []UserRecord
		errs []error
	)
	for i, d := range m {
		users, err := d.Users(ctx)
		if err != nil {
			slog.WarnContext(ctx, "User directory unavailable, skipping",
				applog.FieldComponent, applog.ComponentAuth,
				"directory", i,
				applog.FieldError, err)
			errs = append(errs, err)
			continue
		}
		out = append(out, users...)
	}
	if len(m) > 0 && len(errs) == len(m) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// unavailableDirectory fails every lookup with the same error.
type unavailableDirectory struct{ err error }

func (u unavailableDirectory) Users(context.Context) ([]UserRecord, error) { return nil, u.err }

// NewUnconfiguredDirectory reports the missing settings on every login.
func NewUnconfiguredDirectory(missing []string) UserDirectory {
	return unavailableDirectory{err: &core.ConfigError{Missing: missing}}
}

type Authenticator struct {
	dir     UserDirectory
	timeout time.Duration
}

func NewAuthenticator(dir UserDirectory, timeout time.Duration) *Authenticator {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &Authenticator{dir: dir, timeout: timeout}
}

// Authenticate matches username and password against the directory. A
// mismatch is core.ErrInvalidCredentials; a directory failure is returned
// wrapped.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return core.User{}, core.ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	users, err := a.dir.Users(ctx)
	if err != nil {
		return core.User{}, fmt.Errorf("authenticate: %w", err)
	}
	for _, u := range users {
		if !equal(u.Username, username) {
			continue
		}
		if !equal(u.Password, password) {
			return core.User{}, core.ErrInvalidCredentials
		}
		name := u.Name
		if name == "" {
			name = u.Username
		}
		return core.User{Username: u.Username, Name: name}, nil
	}
	return core.User{}, core.ErrInvalidCredentials
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
