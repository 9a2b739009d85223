package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"AfricaScraper/internal/app"
	"AfricaScraper/internal/scraper/africa"

	"github.com/MakeNowJust/heredoc"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// interruptible cancels the command context on Ctrl-C so that partial results are still written.
func interruptible(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the sources that can be scraped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := newTable()
			t.AppendHeader(table.Row{"Name", "Title", "Kind", "Max pages", "Country column"})
			for _, info := range application.Sources.List() {
				maxPages := "-"
				if info.MaxPages > 0 {
					maxPages = fmt.Sprint(info.MaxPages)
				}
				t.AppendRow(table.Row{info.Name, info.Title, info.Kind, maxPages, strings.Join(info.CountryFields, " / ")})
			}
			t.Render()
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var (
		opts    app.RunOptions
		confirm bool
	)
	cmd := &cobra.Command{
		Use:   "run <source>",
		Short: "Scrape one source",
		Long: heredoc.Doc(`
			Scrape one source page by page and write the result set, plus its
			African subset, to the output directory or database.

			Sources that need a manual step in the browser (a login, a search)
			start paused: the page is opened, and scraping begins once you press Enter.
		`),
		Example: heredoc.Doc(`
			$ scraper run openafrica
			$ scraper run worldbank --format parquet --out worldbank_2024
			$ scraper run unpopulation --page-size 50 --max-pages 3
			$ scraper run uninfo --confirm=false
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("confirm") {
				opts.Confirm = &confirm
			}
			ctx, stop := interruptible(cmd)
			defer stop()

			run, err := application.Prepare(ctx, args[0], opts)
			if err != nil {
				return err
			}
			if run.Status().Paused {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is open. Prepare the page, then press Enter to start scraping...\n", run.Source.Title)
				go func() {
					_, _ = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
					run.Resume()
				}()
			}

			res, err := application.Execute(ctx, run)
			if res != nil {
				printResult(res)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&opts.Format, "format", "", "Output format: csv, json, parquet or table (default from config)")
	cmd.Flags().IntVar(&opts.MaxPages, "max-pages", 0, "Stop after this many pages (0 keeps the source default)")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "Records per page for API sources")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Wait for Enter before scraping (default from source)")
	cmd.Flags().StringVar(&opts.Output, "out", "", "Artifact base name without extension (default <source>_<timestamp>)")
	return cmd
}

func printResult(res *app.Result) {
	rep := res.Report
	t := newTable()
	t.AppendHeader(table.Row{"Run", "Source", "State", "Pages", "Accepted", "Rejected", "Duplicates", "Africa rows"})
	t.AppendRow(table.Row{rep.ID, rep.Source, rep.State, rep.PagesVisited, rep.Accepted, rep.Rejected, rep.Duplicates, res.AfricaRows})
	for _, f := range res.Files {
		t.AppendFooter(table.Row{"file", f})
	}
	if res.Table != "" {
		t.AppendFooter(table.Row{"table", res.Table})
	}
	for _, key := range res.Uploaded {
		t.AppendFooter(table.Row{"uploaded", key})
	}
	if rep.Error != "" {
		t.AppendFooter(table.Row{"error", rep.Error})
	}
	t.Render()
}

func newUnicefCmd() *cobra.Command {
	var (
		format  string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "unicef [FLOW...]",
		Short: "Download UNICEF datasets and their African subsets",
		Long: heredoc.Docf(`
			Download UNICEF SDMX dataflows as CSV and keep the African rows.
			Without arguments the flows listed under sources.unicef.datasets
			are fetched, or else every known flow:

			%s
		`, strings.Join(africa.UnicefFlows, " ")),
		Example: heredoc.Doc(`
			$ scraper unicef
			$ scraper unicef PT CME NUTRITION --workers 2
		`),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := interruptible(cmd)
			defer stop()

			outcomes, err := application.RunUnicefBulk(ctx, args, format, workers)

			t := newTable()
			t.AppendHeader(table.Row{"Flow", "State", "Records", "Africa rows", "Error"})
			for _, o := range outcomes {
				row := table.Row{o.Flow, "", 0, 0, ""}
				if o.Result != nil {
					row[1], row[2], row[3] = o.Result.Report.State, o.Result.Report.Accepted, o.Result.AfricaRows
				}
				if o.Err != nil {
					row[4] = o.Err.Error()
				}
				t.AppendRow(row)
			}
			t.Render()
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Output format: csv, json, parquet or table (default from config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent downloads (default from config)")
	return cmd
}

func newFilterCmd() *cobra.Command {
	var field, out string
	cmd := &cobra.Command{
		Use:   "filter <csv>",
		Short: "Keep the African rows of an existing CSV file",
		Example: heredoc.Doc(`
			$ scraper filter downloads/indicators.csv
			$ scraper filter survey.csv --field "Country Name" --out survey_africa.csv
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, stats, err := application.FilterFile(cmd.Context(), args[0], field, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "kept %d of %d rows by %q in %s\n", stats.Kept, stats.Input, stats.Field, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "Country column (default: first configured country column present)")
	cmd.Flags().StringVar(&out, "out", "", "Output file (default <input>_africa.csv)")
	return cmd
}

func newRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := application.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			t := newTable()
			t.AppendHeader(table.Row{"Started", "Source", "State", "Pages", "Records", "Rejected", "Artifact"})
			for _, e := range entries {
				artifact := e.Artifact
				if e.Error != "" {
					artifact = e.Error
				}
				t.AppendRow(table.Row{e.StartedAt.Local().Format("2006-01-02 15:04"), e.Source, e.State, e.Pages, e.Records, e.Rejected, artifact})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	return cmd
}
