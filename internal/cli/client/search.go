package client

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/govreposcrape/govsearch/internal/domain"
)

// SearchRequest is the search API request body.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search UK government code",
		Long:  "Runs a semantic search over UK government repository summaries.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api := NewAPIClientWithCmd(cmd)

			var resp domain.SearchResponse
			req := SearchRequest{Query: strings.Join(args, " "), Limit: limit}
			if err := api.Post(cmd.Context(), "/search", req, &resp); err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			return printSearch(cmd.OutOrStdout(), resp, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", domain.DefaultLimit, "Maximum number of results (1-20)")

	return cmd
}

func printSearch(w io.Writer, resp domain.SearchResponse, outputJSON bool) error {
	if outputJSON {
		output, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(output))
		return nil
	}

	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "Found %d results in %dms:\n\n", len(resp.Results), resp.TookMs)
	for i, result := range resp.Results {
		fmt.Fprintf(w, "%d. %s (%.2f)\n", i+1, result.Repository, result.RelevanceScore)
		if result.FilePath != "" && result.FilePath != "summary" {
			fmt.Fprintf(w, "   File: %s\n", result.FilePath)
		}
		snippet := strings.Join(strings.Fields(result.MatchSnippet), " ")
		if len(snippet) > 100 {
			snippet = snippet[:97] + "..."
		}
		if snippet != "" {
			fmt.Fprintf(w, "   %s\n", snippet)
		}
		fmt.Fprintf(w, "   %s | %s\n", result.Metadata.Language.Value, result.Metadata.GitHubURL)
		if i < len(resp.Results)-1 {
			fmt.Fprintln(w, strings.Repeat("-", 40))
		}
	}
	return nil
}
