package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dongsuo/ask-rss/internal/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig string
	flagSource string
	flagTopK   int
)

var rootCmd = &cobra.Command{
	Use:   "ask-rss",
	Short: "Semantic search over your RSS feeds",
	Long:  "ask-rss ingests RSS/Atom feeds, embeds every article, and answers natural-language questions about them.",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()
		return tui.Run(tui.RunOpts{
			Searcher:  app.Processor,
			SourceURL: flagSource,
			TopK:      flagTopK,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flagSource, "source", "", "restrict search to one feed URL")
	rootCmd.PersistentFlags().IntVar(&flagTopK, "top-k", 0, "maximum number of results (default from config)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ask-rss %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
