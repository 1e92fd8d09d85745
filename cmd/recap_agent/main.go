// Package main provides the entry point for the conversation recap service.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "recap_agent",
	Short: "Conversation recap processing service",
	Long:  "Recap Agent fetches finished voice-agent conversations, summarizes them with an LLM, renders PDF reports, and emails single-use download links.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
