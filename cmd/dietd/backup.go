package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/dietdaily/internal/connectivity"
	"github.com/kimhsiao/dietdaily/internal/errors"
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the local record set to a backup file",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the local record set from a backup file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	svc, cleanup, err := buildService(cfg, connectivity.NewManual(false))
	if err != nil {
		return err
	}
	defer cleanup()

	data, err := svc.Export()
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], data, 0o600); err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to write backup", err)
	}

	fmt.Printf("exported %d record(s) to %s\n", svc.Status().TotalCount, args[0])
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to read backup", err)
	}

	svc, cleanup, err := buildService(cfg, connectivity.NewManual(false))
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Import(data); err != nil {
		return err
	}

	fmt.Printf("imported %d record(s) from %s\n", svc.Status().TotalCount, args[0])
	return nil
}
