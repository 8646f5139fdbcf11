package ingest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/campus-chat/backend/internal/logging"
	"github.com/zhouzirui/campus-chat/backend/internal/service/scrape"
)

// Record is a catalog link plus the content fetched for it.
type Record struct {
	Link
	Content string
	Err     error
}

// Fetcher is the scraping surface ingestion needs.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL, selector string) (scrape.Page, error)
	FetchText(ctx context.Context, pageURL string) (string, error)
}

// Sink receives records in catalog order.
type Sink interface {
	Write(record Record) error
	Close() error
}

// Service fetches every catalog link and hands the rows to sinks.
type Service struct {
	fetcher     Fetcher
	concurrency int
}

// NewService creates an ingestion service with bounded fetch concurrency.
func NewService(fetcher Fetcher, concurrency int) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{fetcher: fetcher, concurrency: concurrency}
}

// Run fetches the catalog. A failing page does not abort the run; its content
// becomes the error text. Sinks see records in catalog order and are closed.
func (s *Service) Run(ctx context.Context, catalog Catalog, sinks ...Sink) ([]Record, error) {
	log := logging.Named("ingest")
	records := make([]Record, len(catalog.Links))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, link := range catalog.Links {
		g.Go(func() error {
			log.Infof("processing %s ...", link.Link)
			content, err := s.fetch(gctx, link)
			if err != nil {
				log.Warnf("fetch failed url=%s: %v", link.Link, err)
				content = fmt.Sprintf("Error fetching page: %v", err)
			}
			records[i] = Record{Link: link, Content: content, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		closeAll(sinks)
		return nil, err
	}

	for _, record := range records {
		for _, sink := range sinks {
			if err := sink.Write(record); err != nil {
				closeAll(sinks)
				return nil, fmt.Errorf("write %s: %w", record.Link.Link, err)
			}
		}
	}

	for _, sink := range sinks {
		if err := sink.Close(); err != nil {
			return nil, fmt.Errorf("close sink: %w", err)
		}
	}

	log.Infof("finished processing %d links", len(records))
	return records, nil
}

func (s *Service) fetch(ctx context.Context, link Link) (string, error) {
	if link.Selector == "" {
		return s.fetcher.FetchText(ctx, link.Link)
	}
	page, err := s.fetcher.Fetch(ctx, link.Link, link.Selector)
	if err != nil {
		return "", err
	}
	return page.Markdown, nil
}

func closeAll(sinks []Sink) {
	for _, sink := range sinks {
		_ = sink.Close()
	}
}
