package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/dietdaily/internal/connectivity"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status of the local record set",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Status reads only the local store; connectivity is reported as
	// unknown/offline from the CLI.
	svc, cleanup, err := buildService(cfg, connectivity.NewManual(false))
	if err != nil {
		return err
	}
	defer cleanup()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(svc.Status())
}
