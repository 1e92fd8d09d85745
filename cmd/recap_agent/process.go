package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/convo-recap/internal/db"
	"github.com/jonathan/convo-recap/internal/extraction"
	"github.com/jonathan/convo-recap/internal/llm"
	"github.com/jonathan/convo-recap/internal/notify"
	"github.com/jonathan/convo-recap/internal/observability"
	"github.com/jonathan/convo-recap/internal/pipeline"
	"github.com/jonathan/convo-recap/internal/report"
	"github.com/jonathan/convo-recap/internal/storage"
	"github.com/jonathan/convo-recap/internal/summarize"
	"github.com/jonathan/convo-recap/internal/tokens"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a single conversation end-to-end",
	Long: `Fetches a conversation from the provider, stores its transcript and audio,
summarizes it, renders a PDF report, and emails single-use download links.`,
	RunE: runProcess,
}

var (
	processConfigPath     string
	processConversationID string
	processAccountID      string
	processEmailID        string
	processVerbose        bool
)

func init() {
	processCmd.Flags().StringVar(&processConfigPath, "config", "", "Path to config.json file")
	processCmd.Flags().StringVarP(&processConversationID, "conversation", "c", "", "Conversation ID to process")
	processCmd.Flags().StringVarP(&processAccountID, "account", "a", "", "Account ID owning the conversation")
	processCmd.Flags().StringVar(&processEmailID, "email", "", "Recipient for the completion email")
	processCmd.Flags().BoolVarP(&processVerbose, "verbose", "v", false, "Print detailed progress information")

	_ = processCmd.MarkFlagRequired("conversation")
	_ = processCmd.MarkFlagRequired("account")
	_ = processCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(processCmd)
}

func runProcess(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(processConfigPath)
	if err != nil {
		return err
	}
	if processVerbose {
		cfg.Verbose = true
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	store, err := storage.NewStore(cfg.StorageRoot, cfg.SigningSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	llmClient, err := llm.NewClient(ctx, nil, cfg.GeminiAPIKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer func() { _ = llmClient.Close() }()

	mailer, err := notify.NewSendGridMailer(cfg.SendgridAPIKey, "", cfg.FromEmail, cfg.FromName)
	if err != nil {
		return fmt.Errorf("failed to create mailer: %w", err)
	}

	tokenTTL := time.Duration(cfg.TokenTTLHours) * time.Hour
	orchestrator := pipeline.New(
		database,
		extraction.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey),
		summarize.New(llmClient),
		report.NewRenderer(),
		store,
		tokens.NewService(database, tokenTTL),
		notify.NewNotifier(mailer, cfg.LinkBaseURL, tokenTTL),
	)
	orchestrator.SetVerbose(cfg.Verbose)

	run, err := database.RecordRun(ctx, db.RunInput{
		ConversationID: processConversationID,
		AccountID:      processAccountID,
		EmailID:        processEmailID,
	})
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	fmt.Printf("Processing conversation %s (run %s)\n", run.ConversationID, run.ProcessingID)
	execErr := orchestrator.Execute(ctx, run)

	printer := observability.NewPrinter(os.Stdout)
	final, err := database.GetRun(ctx, run.ProcessingID)
	if err == nil && final != nil {
		printer.PrintRun(final)
	}

	if cfg.Verbose {
		events, err := database.ListAuditEvents(ctx, run.ProcessingID)
		if err == nil {
			printer.PrintAuditTrail(events)
		}
	}

	return execErr
}
