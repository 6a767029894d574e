package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jheinecke/valet/internal/config"
)

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Send a query to the running daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}

			var resp struct {
				Response string `json:"response"`
				Model    string `json:"model"`
				Provider string `json:"provider"`
				UsedRole string `json:"used_role"`
				ToolCalls []struct {
					Tool string `json:"tool"`
				} `json:"tool_calls"`
			}
			query := strings.Join(args, " ")
			if err := client.post("/v1/query", map[string]string{"query": query}, &resp); err != nil {
				return err
			}

			fmt.Println(resp.Response)
			provenance := fmt.Sprintf("%s/%s (%s)", resp.Provider, resp.Model, resp.UsedRole)
			if len(resp.ToolCalls) > 0 {
				names := make([]string, 0, len(resp.ToolCalls))
				for _, tc := range resp.ToolCalls {
					names = append(names, tc.Tool)
				}
				provenance += ", tools: " + strings.Join(names, ", ")
			}
			printStep("%s", provenance)
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show feedback statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}

			var stats struct {
				TotalFeedback      int            `json:"total_feedback"`
				AverageRating      float64        `json:"average_rating"`
				RatingDistribution map[string]int `json:"rating_distribution"`
				TotalCorrections   int            `json:"total_corrections"`
				RecentFeedback7d   int            `json:"recent_feedback_7d"`
			}
			if err := client.get("/v1/learning/statistics", &stats); err != nil {
				return err
			}

			fmt.Printf("feedback:     %d total, %d in the last 7 days\n", stats.TotalFeedback, stats.RecentFeedback7d)
			fmt.Printf("avg rating:   %.2f\n", stats.AverageRating)
			fmt.Printf("corrections:  %d\n", stats.TotalCorrections)
			if len(stats.RatingDistribution) > 0 {
				keys := make([]string, 0, len(stats.RatingDistribution))
				for k := range stats.RatingDistribution {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				parts := make([]string, 0, len(keys))
				for _, k := range keys {
					parts = append(parts, fmt.Sprintf("%s★=%d", k, stats.RatingDistribution[k]))
				}
				fmt.Printf("distribution: %s\n", strings.Join(parts, " "))
			}
			return nil
		},
	}
}

func newIngestCmd() *cobra.Command {
	var (
		text  string
		file  string
		title string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Add a document to the knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			if text == "" && file == "" {
				return errors.New("one of --text or --file is required")
			}

			client, err := newAPIClient()
			if err != nil {
				return err
			}

			body := map[string]string{"title": title}
			if text != "" {
				body["text"] = text
			} else {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				body["content"] = base64.StdEncoding.EncodeToString(data)
				switch strings.ToLower(filepath.Ext(file)) {
				case ".pdf":
					body["type"] = "pdf"
				case ".html", ".htm":
					body["type"] = "html"
				default:
					body["type"] = "text"
				}
				if title == "" {
					body["title"] = filepath.Base(file)
				}
			}

			var resp struct {
				DocumentID string `json:"document_id"`
			}
			if err := client.post("/v1/documents", body, &resp); err != nil {
				return err
			}
			printSuccess("indexed as %s", resp.DocumentID)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "raw text to index")
	cmd.Flags().StringVar(&file, "file", "", "file to index (pdf, html or plain text)")
	cmd.Flags().StringVar(&title, "title", "", "document title")
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and modify configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			values := config.ShowAll(&cfg)
			for _, key := range config.Keys() {
				fmt.Printf("%-28s %s\n", key, values[key])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write one config key to the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.SetKey(args[0], args[1]); err != nil {
				return err
			}
			printSuccess("set %s", args[0])
			return nil
		},
	})

	return cmd
}
