package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagMaxArticles int

var processCmd = &cobra.Command{
	Use:   "process <feed-url> [feed-url...]",
	Short: "Fetch, embed and store articles from one or more feeds",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		summary, err := app.Processor.ProcessFeeds(cmd.Context(), args, flagMaxArticles)
		if err != nil {
			return err
		}

		for _, r := range summary.Results {
			switch r.Status {
			case "success":
				fmt.Printf("  ok    %s: %d new article(s) -> %s\n", r.SourceURL, r.ArticlesProcessed, r.DatasetName)
			default:
				fmt.Printf("  fail  %s: %s\n", r.SourceURL, r.Error)
			}
		}
		fmt.Println(summary.Message)

		if summary.Status == "error" {
			return fmt.Errorf("all %d feed(s) failed", summary.TotalFeeds)
		}
		return nil
	},
}

func init() {
	processCmd.Flags().IntVar(&flagMaxArticles, "max-articles", 0, "cap per feed (default from config)")
}
