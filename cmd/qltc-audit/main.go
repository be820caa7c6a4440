package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"qltc/internal/amqp"
	"qltc/internal/cli"
	applog "qltc/internal/log"
	"qltc/internal/storage"
	"qltc/internal/worker"
)

func main() {
	list := flag.Bool("list", false, "print recorded events and exit")
	txID := flag.String("transaction", "", "with -list, only events of this transaction id")
	limit := flag.Int("limit", 50, "with -list, maximum number of events")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	if *list {
		if err := printEvents(repo, *txID, *limit); err != nil {
			logger.Error("Failed to list events", applog.FieldError, err)
			os.Exit(1)
		}
		return
	}

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required to consume change events")
		os.Exit(1)
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	w := worker.NewAuditWorker(repo, logger.Logger)
	logger.Info("Starting qltc-audit", "queue", cfg.AMQPQueue, "db_path", cfg.SQLiteDBPath)
	if err := w.Run(ctx, client); err != nil {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}
}

func printEvents(repo *storage.SQLiteRepository, txID string, limit int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events, err := repo.ListEvents(ctx, txID, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OCCURRED\tACTION\tTRANSACTION\tEVENT")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.OccurredAt.Local().Format(time.DateTime), e.Action, e.TransactionID, e.EventID)
	}
	return tw.Flush()
}
