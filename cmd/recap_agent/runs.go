package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/convo-recap/internal/db"
	"github.com/jonathan/convo-recap/internal/observability"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List processing runs",
	Long:  `List the latest run per conversation, filtered by account or by day.`,
	RunE:  runRuns,
}

var (
	runsConfigPath string
	runsAccountID  string
	runsDate       string
)

func init() {
	runsCmd.Flags().StringVar(&runsConfigPath, "config", "", "Path to config.json file")
	runsCmd.Flags().StringVarP(&runsAccountID, "account", "a", "", "List conversations for this account")
	runsCmd.Flags().StringVar(&runsDate, "date", "", "List conversations created on this day (YYYY-MM-DD, default today)")

	rootCmd.AddCommand(runsCmd)
}

func runRuns(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(runsConfigPath)
	if err != nil {
		return err
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	var runs []db.Run
	if runsAccountID != "" {
		runs, err = database.ListLatestByAccount(ctx, runsAccountID)
	} else {
		day := time.Now().UTC()
		if runsDate != "" {
			day, err = time.Parse("2006-01-02", runsDate)
			if err != nil {
				return fmt.Errorf("invalid --date (want YYYY-MM-DD): %w", err)
			}
		}
		runs, err = database.ListLatestByDate(ctx, day)
	}
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	observability.NewPrinter(os.Stdout).PrintRuns(runs)
	return nil
}
