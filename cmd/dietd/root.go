package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kimhsiao/dietdaily/internal/config"
	"github.com/kimhsiao/dietdaily/internal/connectivity"
	"github.com/kimhsiao/dietdaily/internal/crypto"
	"github.com/kimhsiao/dietdaily/internal/diary"
	"github.com/kimhsiao/dietdaily/internal/errors"
	"github.com/kimhsiao/dietdaily/internal/logging"
	"github.com/kimhsiao/dietdaily/internal/merge"
	"github.com/kimhsiao/dietdaily/internal/remote"
	"github.com/kimhsiao/dietdaily/internal/store"
	"github.com/kimhsiao/dietdaily/internal/sync/scheduler"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "dietd",
	Short: "Offline-first diet record sync engine",
	Long: `dietd keeps diet records on the device and syncs them to a
remote backend in the background. Records are always saved locally
first, so the app keeps working without a network connection.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./dietdaily.yaml or ~/.dietdaily/dietdaily.yaml)")
}

// loadConfig reads configuration and initializes logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	if cfg.Log.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		}
	}
	logging.Init(out, logging.ParseLevel(cfg.Log.Level))

	return cfg, nil
}

// openStore builds the persistence backend the config asks for.
func openStore(cfg *config.Config) (*store.Store, func(), error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, nil, errors.Wrap(errors.ErrStorage, "failed to create data dir", err)
	}

	var (
		persist store.Persistence
		cleanup = func() {}
		err     error
	)
	switch cfg.Storage.Driver {
	case "sqlite":
		var db *store.SQLite
		db, err = store.NewSQLite(cfg.DataDir)
		if err == nil {
			persist = db
			cleanup = func() { db.Close() }
		}
	case "file":
		persist, err = store.NewFile(filepath.Join(cfg.DataDir, "records.json"))
	default:
		persist = store.NewMemory()
	}
	if err != nil {
		return nil, nil, err
	}

	st, err := store.New(persist, store.RetryPolicy{
		MaxAttempts:   cfg.Sync.MaxAttempts,
		BackoffWindow: cfg.Sync.BackoffWindow,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return st, cleanup, nil
}

// openRemote builds the configured upstream client.
func openRemote(cfg *config.Config) remote.Store {
	if cfg.Remote.Backend == "sheets" {
		return remote.NewSheetsStore(&remote.SheetsConfig{
			SpreadsheetID: cfg.Remote.SpreadsheetID,
			APIKey:        cfg.Remote.APIKey,
			Sheet:         cfg.Remote.Sheet,
		})
	}
	return remote.NewRESTStore(&remote.RESTConfig{
		Endpoint: cfg.Remote.Endpoint,
		APIKey:   cfg.Remote.APIKey,
		Table:    cfg.Remote.Table,
	})
}

// buildService assembles the diary service over a given connectivity
// monitor.
func buildService(cfg *config.Config, monitor connectivity.Monitor) (*diary.Service, func(), error) {
	st, cleanup, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	var cipher crypto.Cipher
	if cfg.Remote.Passphrase != "" {
		cipher, err = crypto.NewAESCipher(cfg.Remote.Passphrase)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	svc, err := diary.New(diary.Options{
		Store:   st,
		Remote:  openRemote(cfg),
		Cipher:  cipher,
		Monitor: monitor,
		MergePolicy: merge.Policy{
			Window:          cfg.Merge.Window,
			AmountTolerance: cfg.Merge.AmountTolerance,
		},
		Scheduler: &scheduler.Config{Interval: cfg.Sync.Interval},
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}
