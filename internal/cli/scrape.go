package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/campus-chat/backend/internal/service/ingest"
	"github.com/zhouzirui/campus-chat/backend/internal/service/scrape"
)

// ScrapeOptions holds flags for the scrape command.
type ScrapeOptions struct {
	Catalog string
	CSV     string
	JSONL   string
}

// NewScrapeCommand creates the scrape command.
func NewScrapeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScrapeOptions{}

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetch every catalog page into CSV and JSONL files",
		Long: `Fetch every page listed in the link catalog and write the rows to a CSV
file (Link, Description, Access, Content) and the successful pages to a JSONL
file the ask and api commands index. Pages that fail keep an error row.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "YAML link catalog (default: SCRAPE_CATALOG or the built-in NYU links)")
	cmd.Flags().StringVar(&opts.CSV, "csv", "nyu_data.csv", "CSV output path (empty to skip)")
	cmd.Flags().StringVar(&opts.JSONL, "jsonl", "data.jsonl", "JSONL output path (empty to skip)")

	return cmd
}

func runScrape(cmd *cobra.Command, rootOpts *RootOptions, opts *ScrapeOptions) error {
	cfg := rootOpts.Config.Scrape

	catalog, err := loadCatalog(opts.Catalog, cfg.CatalogPath)
	if err != nil {
		return err
	}

	var sinks []ingest.Sink
	if opts.CSV != "" {
		f, err := ingest.CreateFile(opts.CSV)
		if err != nil {
			return err
		}
		sinks = append(sinks, ingest.NewCSVSink(f, f))
	}
	if opts.JSONL != "" {
		f, err := ingest.CreateFile(opts.JSONL)
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return err
		}
		sinks = append(sinks, ingest.NewJSONLSink(f, f))
	}

	fetcher := scrape.NewFetcher(scrape.Options{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
	})
	records, err := ingest.NewService(fetcher, cfg.Concurrency).Run(cmd.Context(), catalog, sinks...)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range records {
		if r.Err != nil {
			failed++
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Finished processing %d links (%d failed).\n", len(records), failed)
	if opts.CSV != "" {
		fmt.Fprintf(out, "Check the %s file.\n", opts.CSV)
	}
	return nil
}

func loadCatalog(flagPath, envPath string) (ingest.Catalog, error) {
	path := flagPath
	if path == "" {
		path = envPath
	}
	if path == "" {
		return ingest.DefaultCatalog(), nil
	}
	return ingest.LoadCatalog(path)
}
