// Command qltc-cli is a terminal client for the qltc API.
//
//	qltc-cli [-url URL] [-user NAME] [-password PW] <command> [flags]
//
// Commands: list, summary, add, edit, delete. Credentials default to
// QLTC_USER and QLTC_PASSWORD; the URL to API_BASE_URL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"qltc/internal/cli"
	"qltc/internal/client"
	"qltc/internal/config"
	"qltc/internal/ledger"
	applog "qltc/internal/log"
)

var errUsage = errors.New("usage: qltc-cli [-url URL] [-user NAME] [-password PW] list|summary|add|edit|delete [flags]")

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentCLI)
	cfg := config.Load()

	global := flag.NewFlagSet("qltc-cli", flag.ExitOnError)
	baseURL := global.String("url", cfg.APIBaseURL, "API base URL")
	user := global.String("user", os.Getenv("QLTC_USER"), "username")
	password := global.String("password", os.Getenv("QLTC_PASSWORD"), "password")
	timeout := global.Duration("timeout", client.DefaultTimeout, "per-request timeout")
	_ = global.Parse(os.Args[1:])

	cfg.APIBaseURL = *baseURL
	if err := cfg.ValidateAPIBaseURL(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	api := client.New(*baseURL, client.WithTimeout(*timeout), client.WithLogger(logger.Logger))
	if err := run(ctx, ledger.NewSession(api), *user, *password, global.Args(), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// run logs in, loads the set and executes one command against it.
func run(ctx context.Context, s *ledger.Session, user, password string, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	if _, ok := commands[cmd]; !ok {
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}

	loginCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.Login(loginCtx, user, password); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return commands[cmd](ctx, s, rest, out)
}
