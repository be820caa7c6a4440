package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"qltc/internal/amqp"
	applog "qltc/internal/log"
	"qltc/internal/services"
	gsheet "qltc/internal/sheets/google"
	"qltc/internal/sheets/memory"
	"qltc/internal/storage"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger.With(applog.FieldComponent, applog.ComponentBackend)}
}

// CreateBackend builds the row-store for config.Type and, when an AMQP URL
// is set, a publisher for change events. A publisher that cannot connect is
// logged and skipped.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *Result
		err error
	)
	switch config.Type {
	case SheetsBackend:
		res, err = f.createSheetsBackend(ctx, config)
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		res = f.createMemoryBackend(config)
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change events", applog.FieldError, err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			res.Publisher = client
			res.Cleanup = chain(res.Cleanup, client.Close)
		}
	}
	return res, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*Result, error) {
	if len(config.MissingSheets) > 0 {
		f.logger.WarnContext(ctx, "Google Sheets backend not configured", "missing", config.MissingSheets)
		return &Result{Missing: config.MissingSheets}, nil
	}

	creds := gsheet.Credentials{
		JSON:       []byte(config.ServiceAccountJSON),
		Email:      config.ServiceAccountEmail,
		PrivateKey: config.PrivateKey,
	}
	if config.ServiceAccountFile != "" && config.ServiceAccountJSON == "" {
		c, err := gsheet.CredentialsFromFile(config.ServiceAccountFile)
		if err != nil {
			return nil, err
		}
		creds = c
	}

	cli, err := gsheet.New(ctx, config.SpreadsheetID, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized Google Sheets backend", applog.FieldTable, config.TransactionsSheet)
	return &Result{Rows: cli}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &Result{Rows: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) *Result {
	tables := []string{config.TransactionsSheet}
	if config.UsersSheet != "" {
		tables = append(tables, config.UsersSheet)
	}
	store := memory.NewFromFiles(config.MemorySeedDir, tables...)
	f.logger.Info("Initialized memory backend", "seed_dir", config.MemorySeedDir)
	return &Result{Rows: store}
}

// TransactionStore wires the id-addressed adapter over the result's rows.
func (r *Result) TransactionStore(config Config) *services.TransactionStore {
	if len(r.Missing) > 0 {
		return services.NewUnconfiguredStore(r.Missing)
	}
	opts := []services.StoreOption{services.WithStoreTimeout(config.StoreTimeout)}
	if r.Publisher != nil {
		opts = append(opts, services.WithChangeNotifier(services.NewAMQPNotifier(r.Publisher)))
	}
	return services.NewTransactionStore(r.Rows, config.TransactionsSheet, opts...)
}

// Authenticator reads users from the users table, then from APP_USERS. With
// the sheets backend unconfigured only APP_USERS is consulted, and without it
// every login reports the missing settings.
func (r *Result) Authenticator(config Config) (*services.Authenticator, error) {
	static, err := services.ParseUserList(config.AppUsers)
	if err != nil {
		return nil, fmt.Errorf("parse APP_USERS: %w", err)
	}

	var dir services.MultiDirectory
	if len(r.Missing) == 0 && config.UsersSheet != "" {
		dir = append(dir, services.SheetDirectory{Rows: r.Rows, Table: config.UsersSheet})
	}
	if len(static) > 0 {
		dir = append(dir, static)
	}
	if len(dir) == 0 {
		return services.NewAuthenticator(services.NewUnconfiguredDirectory(r.Missing), config.StoreTimeout), nil
	}
	return services.NewAuthenticator(dir, config.StoreTimeout), nil
}

// Close runs the cleanup, if any.
func (r *Result) Close() error {
	if r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

func chain(fns ...CleanupFunc) CleanupFunc {
	return func() error {
		var errs []error
		for i := len(fns) - 1; i >= 0; i-- {
			if fns[i] != nil {
				errs = append(errs, fns[i]())
			}
		}
		return errors.Join(errs...)
	}
}
