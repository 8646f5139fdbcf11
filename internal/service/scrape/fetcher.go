package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/zhouzirui/campus-chat/backend/internal/logging"
)

// DefaultUserAgent mimics a desktop browser; some university pages refuse bare clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/122.0.0.0 Safari/537.36"

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 8 << 20
)

var (
	ErrSelectorNotFound = errors.New("selector not found")
	ErrInvalidSelector  = errors.New("invalid css selector")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Page is the cleaned Markdown extracted from one element of a web page.
type Page struct {
	URL      string `json:"url"`
	Selector string `json:"selector,omitempty"`
	Markdown string `json:"markdown"`
}

// Options configures a Fetcher.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Client    *http.Client
}

// Fetcher downloads pages and turns them into LLM-ready text.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

// NewFetcher builds a Fetcher, filling defaults for zero options.
func NewFetcher(opts Options) *Fetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = DefaultUserAgent
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{client: client, userAgent: ua, timeout: timeout}
}

// Fetch extracts the first element matching selector from pageURL as Markdown.
func (f *Fetcher) Fetch(ctx context.Context, pageURL, selector string) (Page, error) {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return Page{}, fmt.Errorf("%w %q: %v", ErrInvalidSelector, selector, err)
	}

	doc, base, err := f.document(ctx, pageURL)
	if err != nil {
		return Page{}, err
	}

	element := doc.FindMatcher(matcher).First()
	if element.Length() == 0 {
		return Page{}, fmt.Errorf("%w: %q on %s", ErrSelectorNotFound, selector, pageURL)
	}

	absolutizeLinks(element, base)

	fragment, err := goquery.OuterHtml(element)
	if err != nil {
		return Page{}, fmt.Errorf("failed to render selected element: %w", err)
	}

	markdown, err := ToMarkdown(RemoveInlineJS(fragment))
	if err != nil {
		return Page{}, fmt.Errorf("failed to convert %s to markdown: %w", pageURL, err)
	}

	logging.Named("scrape").Debugf("fetched url=%s selector=%s chars=%d", pageURL, selector, len(markdown))
	return Page{URL: pageURL, Selector: selector, Markdown: CleanMarkdown(markdown)}, nil
}

// FetchText returns every visible text node of the page joined by single spaces.
func (f *Fetcher) FetchText(ctx context.Context, pageURL string) (string, error) {
	doc, _, err := f.document(ctx, pageURL)
	if err != nil {
		return "", err
	}

	var parts []string
	for _, node := range doc.Nodes {
		collectText(node, &parts)
	}
	return strings.Join(parts, " "), nil
}

func (f *Fetcher) document(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid url %q: %w", pageURL, err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &StatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}
	return doc, base, nil
}

func absolutizeLinks(element *goquery.Selection, base *url.URL) {
	links := element.Find("a[href]").AddSelection(element.Filter("a[href]"))
	links.Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		a.SetAttr("href", base.ResolveReference(ref).String())
	})
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
		return
	}
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			*parts = append(*parts, text)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
