package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List every processed feed and its dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		sources, err := app.Processor.ListSources(cmd.Context())
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			fmt.Println("No feeds processed yet. Run `ask-rss process <feed-url>` first.")
			return nil
		}

		for _, s := range sources {
			last := "never"
			if !s.LastProcessed.IsZero() {
				last = s.LastProcessed.Format("2006-01-02 15:04")
			}
			fmt.Printf("%-20s %4d article(s)  last processed %s\n", s.FeedTitle, s.ArticleCount, last)
			fmt.Printf("  %s\n  %s\n", s.SourceURL, s.Name)
		}
		return nil
	},
}
