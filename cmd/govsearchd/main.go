package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/govreposcrape/govsearch/internal/cli"
	"github.com/govreposcrape/govsearch/internal/cli/admin"
)

var version = "dev"

func main() {
	admin.Version = version

	rootCmd := &cobra.Command{
		Use:     "govsearchd",
		Short:   "govsearch daemon",
		Long:    "govsearch daemon for serving the search API and ingesting repository summaries",
		Version: version,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IngestCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
