package main

import (
	"os"

	"AfricaScraper/internal/app"
	"AfricaScraper/pkg/config"
	"AfricaScraper/utils"

	"github.com/MakeNowJust/heredoc"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	logLevel    string
	application *app.App
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scraper <command> [flags]",
		Short: "Scrape African open data portals",
		Long: heredoc.Doc(`
			Scrape dataset catalogues and statistics portals, keep the rows that
			concern African countries and write them as CSV, JSON, Parquet or
			database tables.
		`),
		Example: heredoc.Doc(`
			$ scraper sources
			$ scraper run openafrica --max-pages 5
			$ scraper unicef PT CME --format parquet
			$ scraper filter survey.csv --field "Country"
		`),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			utils.InitLogger("scraper", logLevel)
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			application, err = app.New(cmd.Context(), cfg)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if application != nil {
				if err := application.Close(); err != nil {
					log.Warn().Err(err).Msg("error closing store")
				}
			}
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "config.yml", "Path to the YAML config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSourcesCmd(),
		newRunCmd(),
		newUnicefCmd(),
		newFilterCmd(),
		newRunsCmd(),
	)
	return cmd
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
