package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/dietdaily/internal/connectivity"
	"github.com/kimhsiao/dietdaily/internal/errors"
	"github.com/kimhsiao/dietdaily/internal/store"
)

var (
	addOwner   string
	addName    string
	addAmount  float64
	addAt      string
	addPayload string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Save a diet record locally",
	Long: `add saves a record to the local store. The record syncs to
the remote the next time a drain runs; the command itself never needs
a network connection.`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addOwner, "owner", "", "owner of the record")
	addCmd.Flags().StringVar(&addName, "name", "", "food name")
	addCmd.Flags().Float64Var(&addAmount, "amount", 1, "serving amount")
	addCmd.Flags().StringVar(&addAt, "at", "", "when it was eaten (RFC 3339, default now)")
	addCmd.Flags().StringVar(&addPayload, "payload", "", "extra record fields as JSON")
	addCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	occurredAt := time.Now()
	if addAt != "" {
		occurredAt, err = time.Parse(time.RFC3339, addAt)
		if err != nil {
			return errors.Wrap(errors.ErrInvalid, "invalid --at timestamp", err)
		}
	}

	payload := json.RawMessage(`{}`)
	if addPayload != "" {
		if !json.Valid([]byte(addPayload)) {
			return errors.New(errors.ErrInvalid, "--payload is not valid JSON")
		}
		payload = json.RawMessage(addPayload)
	}

	svc, cleanup, err := buildService(cfg, connectivity.NewManual(false))
	if err != nil {
		return err
	}
	defer cleanup()

	rec := svc.AddRecord(payload, store.Meta{
		Owner:      addOwner,
		Name:       addName,
		Amount:     addAmount,
		OccurredAt: occurredAt,
	})

	fmt.Printf("saved %s (%s), pending sync\n", rec.Name, rec.ID)
	return nil
}
