package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	searchTitleStyle = lipgloss.NewStyle().Bold(true)
	searchScoreStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"})
	searchMetaStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"})
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank stored articles against a natural-language query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		query := strings.Join(args, " ")
		results, err := app.Processor.SemanticSearch(cmd.Context(), query, flagSource, flagTopK)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No matching articles.")
			return nil
		}

		for i, r := range results {
			fmt.Printf("%d. %s  %s\n", i+1,
				searchTitleStyle.Render(r.Title),
				searchScoreStyle.Render(fmt.Sprintf("%.3f", r.Score)))
			meta := r.Link
			if r.Published != "" {
				meta += "  " + r.Published
			}
			fmt.Println("   " + searchMetaStyle.Render(meta))
			fmt.Println("   " + clip(r.Summary, 200))
		}
		return nil
	},
}

func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
