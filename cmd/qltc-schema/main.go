// Command qltc-schema checks the transaction table header against the column
// schema, and with -init writes it into an empty table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"qltc/internal/backend"
	"qltc/internal/cli"
	applog "qltc/internal/log"
	"qltc/internal/services"
)

func main() {
	initHeader := flag.Bool("init", false, "write the header into an empty table")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentCLI)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err)
		os.Exit(1)
	}
	defer res.Close()

	store := res.TransactionStore(bcfg)
	if *initHeader {
		created, err := store.EnsureHeader(ctx)
		if err != nil {
			fail(logger, err)
		}
		if created {
			fmt.Printf("%s: header written (%s)\n", store.Table(), strings.Join(services.SchemaV1.Header(), ", "))
		} else {
			fmt.Printf("%s: header already matches\n", store.Table())
		}
		return
	}

	if err := store.CheckSchema(ctx); err != nil {
		fail(logger, err)
	}
	fmt.Printf("%s: header matches schema v%d\n", store.Table(), services.SchemaV1.Version)
}

func fail(logger *applog.Logger, err error) {
	var mismatch *services.SchemaMismatchError
	if errors.As(err, &mismatch) {
		fmt.Fprintln(os.Stderr, mismatch.Error())
		os.Exit(2)
	}
	logger.Error("Schema check failed", applog.FieldError, err)
	os.Exit(1)
}
