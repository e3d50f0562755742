package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/dietdaily/internal/connectivity"
	"github.com/kimhsiao/dietdaily/internal/errors"
)

var (
	viewOwner  string
	viewFrom   string
	viewTo     string
	viewOnline bool
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show the merged local and remote record list",
	RunE:  runView,
}

func init() {
	viewCmd.Flags().StringVar(&viewOwner, "owner", "", "filter by owner")
	viewCmd.Flags().StringVar(&viewFrom, "from", "", "range start (RFC 3339)")
	viewCmd.Flags().StringVar(&viewTo, "to", "", "range end (RFC 3339)")
	viewCmd.Flags().BoolVar(&viewOnline, "online", true, "include remote records")
	rootCmd.AddCommand(viewCmd)
}

func parseBound(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, errors.Wrap(errors.ErrInvalid, "invalid timestamp: "+value, err)
	}
	return t, nil
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	from, err := parseBound(viewFrom)
	if err != nil {
		return err
	}
	to, err := parseBound(viewTo)
	if err != nil {
		return err
	}

	svc, cleanup, err := buildService(cfg, connectivity.NewManual(viewOnline))
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := svc.MergedView(cmd.Context(), viewOwner, from, to)
	if err != nil {
		return err
	}

	for _, rec := range records {
		state := "synced"
		if !rec.Synced {
			state = "pending"
		}
		fmt.Printf("%s  %-20s  %6.2f  %s  [%s]\n",
			rec.OccurredAtTime().Format("2006-01-02 15:04"),
			rec.Name, rec.Amount, rec.ID, state)
	}
	fmt.Printf("%d record(s)\n", len(records))
	return nil
}
