package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dongsuo/ask-rss/internal/api"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  "Serve the processing and search endpoints: /health, /process-rss, /semantic-search, /sources.",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		addr := flagListen
		if addr == "" {
			addr = app.Config.ListenAddr
		}
		if addr == "" {
			addr = "127.0.0.1:8000"
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           api.NewHandler(app.Processor).Mux(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		fmt.Printf("ask-rss API listening on http://%s\n", addr)
		return srv.ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "listen address (default from config)")
}
