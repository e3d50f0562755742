package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/dietdaily/internal/connectivity"
)

var resetFailed bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Drain pending records to the remote once and exit",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&resetFailed, "reset-failed", false, "give permanently failed records a fresh retry budget first")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// A one-shot sync is an explicit request; assume the network is
	// there and let failures surface per record.
	svc, cleanup, err := buildService(cfg, connectivity.NewManual(true))
	if err != nil {
		return err
	}
	defer cleanup()

	if resetFailed {
		count := svc.ResetFailed()
		fmt.Printf("reset %d failed record(s)\n", count)
	}

	result, err := svc.ForceSyncNow(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("synced %d record(s), %d failed, %d skipped\n", result.Success, result.Failed, result.Skipped)
	for _, msg := range result.Errors {
		fmt.Println("  " + msg)
	}
	return nil
}
