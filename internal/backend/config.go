package backend

import (
	"fmt"
	"time"

	"qltc/internal/config"
)

// Config holds what the factory needs to build a backend.
type Config struct {
	Type Type

	// Tables
	TransactionsSheet string
	UsersSheet        string
	AppUsers          string
	StoreTimeout      time.Duration

	// Google Sheets
	SpreadsheetID       string
	ServiceAccountEmail string
	PrivateKey          string
	ServiceAccountJSON  string
	ServiceAccountFile  string
	MissingSheets       []string

	// SQLite
	SQLiteDBPath string

	// Memory
	MemorySeedDir string

	// AMQP, optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	t := Type(appConfig.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: t,

		TransactionsSheet: appConfig.TransactionsSheet,
		UsersSheet:        appConfig.UsersSheet,
		AppUsers:          appConfig.AppUsers,
		StoreTimeout:      appConfig.StoreTimeout,

		SpreadsheetID:       appConfig.SpreadsheetID,
		ServiceAccountEmail: appConfig.ServiceAccountEmail,
		PrivateKey:          appConfig.PrivateKey,
		ServiceAccountJSON:  appConfig.ServiceAccountJSON,
		ServiceAccountFile:  appConfig.ServiceAccountFile,
		MissingSheets:       appConfig.MissingSheetsSettings(),

		SQLiteDBPath:  appConfig.SQLiteDBPath,
		MemorySeedDir: appConfig.MemorySeedDir,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

// Validate checks the settings the chosen type cannot start without. Missing
// sheets credentials are reported per request instead.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.TransactionsSheet == "" {
		return fmt.Errorf("transactions table name is required")
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	return nil
}
