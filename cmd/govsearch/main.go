package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/govreposcrape/govsearch/internal/cli"
	"github.com/govreposcrape/govsearch/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "govsearch",
		Short: "govsearch CLI - semantic search over UK government code",
		Long: `govsearch CLI queries a govsearch API server.

Environment variables:
  GOVSEARCH_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.SearchCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
