// Package main provides the entry point for the layered audit HTTP API server and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "audit_agent",
	Short: "Layered Text Audit HTTP API Server",
	Long: `Layered Text Audit analyses a document from coarse to fine layers (document, section,
paragraph, sentence, lexical), reports issues per stage, and drives targeted revisions via REST API.`,
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
