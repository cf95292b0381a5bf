// Package scholar provides the discovery client that scrapes scholar search
// listings for paper titles and cross-references each title against the
// PubMed website to recover full records.
package scholar

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/scriptoria/litreview/internal/domain"
	"github.com/scriptoria/litreview/internal/observability"
	"github.com/scriptoria/litreview/internal/papersources"
)

const (
	// DefaultBaseURL is the scholar search endpoint.
	DefaultBaseURL = "https://scholar.google.com"

	// DefaultCrossRefBaseURL is the PubMed website used for cross-referencing.
	DefaultCrossRefBaseURL = "https://pubmed.ncbi.nlm.nih.gov"

	// DefaultListingPages is the number of result pages scraped per topic.
	DefaultListingPages = 4

	// DefaultPageSize is the listing page size used for the start offset.
	DefaultPageSize = 10

	// DefaultRateLimit keeps the scrape polite.
	DefaultRateLimit = 2.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// browserUserAgent is sent on listing requests; the scholar endpoint
	// rejects obvious non-browser agents.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/103.0.0.0 Safari/537.36"
)

var (
	digitsRe = regexp.MustCompile(`\d+`)
	yearRe   = regexp.MustCompile(`(\d{4})`)
)

// Config holds the configuration for the scholar client.
type Config struct {
	// BaseURL is the scholar search base URL.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// CrossRefBaseURL is the PubMed website base URL.
	// Defaults to DefaultCrossRefBaseURL if empty.
	CrossRefBaseURL string

	// Timeout is the request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit if zero.
	RateLimit float64

	// ListingPages is the number of result pages to scrape.
	// Defaults to DefaultListingPages if zero.
	ListingPages int

	// PageSize is the number of results per listing page.
	// Defaults to DefaultPageSize if zero.
	PageSize int
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.CrossRefBaseURL == "" {
		c.CrossRefBaseURL = DefaultCrossRefBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.ListingPages == 0 {
		c.ListingPages = DefaultListingPages
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
}

// Client discovers papers through the scholar listing scrape.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	logger     zerolog.Logger
}

// Compile-time check that Client implements Discoverer.
var _ papersources.Discoverer = (*Client)(nil)

// New creates a new scholar client with the given configuration.
func New(cfg Config, logger zerolog.Logger) *Client {
	cfg.applyDefaults()

	httpCfg := papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		UserAgent: browserUserAgent,
	}

	return NewWithHTTPClient(cfg, logger, papersources.NewHTTPClient(httpCfg))
}

// NewWithHTTPClient creates a new scholar client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, logger zerolog.Logger, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("source", "scholar").Logger(),
	}
}

// Discover scrapes the listing pages for the topic, then cross-references
// every discovered title concurrently. Titles that cannot be resolved to a
// record with an abstract are dropped; records are deduplicated by
// normalized abstract text, preserving listing order.
func (c *Client) Discover(ctx context.Context, topic string) ([]domain.Paper, error) {
	logger := c.runLogger(ctx)

	titles, err := c.listTitles(ctx, topic)
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("titles", len(titles)).Msg("listing scrape complete")

	results := make([]*domain.Paper, len(titles))

	g, gctx := errgroup.WithContext(ctx)
	for i, title := range titles {
		g.Go(func() error {
			paper, err := c.crossReference(gctx, title)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Debug().Err(err).Str("title", title).Msg("dropping title")
				return nil
			}
			results[i] = paper
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seenAbstracts := make(map[string]struct{})
	papers := make([]domain.Paper, 0, len(titles))
	for _, p := range results {
		if p == nil {
			continue
		}
		key := domain.NormalizeAbstract(p.Abstract)
		if _, ok := seenAbstracts[key]; ok {
			continue
		}
		seenAbstracts[key] = struct{}{}
		papers = append(papers, *p)
	}

	return papers, nil
}

// runLogger attaches the pipeline run ID carried by the context, when
// present, so log lines from the shared client correlate with their run.
func (c *Client) runLogger(ctx context.Context) zerolog.Logger {
	if runID := observability.RunIDFromContext(ctx); runID != "" {
		return c.logger.With().Str("run_id", runID).Logger()
	}
	return c.logger
}

// listTitles scrapes the listing pages sequentially and returns the
// distinct titles in the order they appeared.
func (c *Client) listTitles(ctx context.Context, topic string) ([]string, error) {
	seen := make(map[string]struct{})
	var titles []string

	for page := 0; page < c.config.ListingPages; page++ {
		q := url.Values{}
		q.Set("q", topic)
		q.Set("hl", "en")
		q.Set("as_sdt", "0,29")
		q.Set("start", strconv.Itoa(page*c.config.PageSize))

		body, err := c.httpClient.Get(ctx, c.config.BaseURL+"/scholar?"+q.Encode())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn().Err(err).Int("page", page).Msg("listing page fetch failed")
			continue
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			c.logger.Warn().Err(err).Int("page", page).Msg("listing page parse failed")
			continue
		}

		doc.Find("h3.gs_rt").Each(func(_ int, h3 *goquery.Selection) {
			link := h3.Find("a").First()
			if link.Length() == 0 {
				return
			}
			title := strings.TrimSpace(link.Text())
			if title == "" {
				return
			}
			if _, ok := seen[title]; ok {
				return
			}
			seen[title] = struct{}{}
			titles = append(titles, title)
		})
	}

	return titles, nil
}

// crossReference resolves one listing title through the PubMed website:
// search for the title, follow the first result, and scrape the detail
// page. Any missing element drops the title.
func (c *Client) crossReference(ctx context.Context, title string) (*domain.Paper, error) {
	q := url.Values{}
	q.Set("term", title)

	body, err := c.httpClient.Get(ctx, c.config.CrossRefBaseURL+"/?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("search page fetch failed: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("search page parse failed: %w", err)
	}

	href, ok := doc.Find("a.docsum-title").First().Attr("href")
	if !ok {
		return nil, fmt.Errorf("no search result for title")
	}

	detailURL := c.config.CrossRefBaseURL + href
	body, err = c.httpClient.Get(ctx, detailURL)
	if err != nil {
		return nil, fmt.Errorf("detail page fetch failed: %w", err)
	}

	detail, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("detail page parse failed: %w", err)
	}

	abstract := strings.TrimSpace(detail.Find("div.abstract-content").Text())
	if abstract == "" {
		return nil, fmt.Errorf("record has no abstract")
	}

	paper := &domain.Paper{
		Title:        metaContent(detail, "citation_title"),
		Authors:      extractAuthors(detail),
		Date:         extractYear(detail),
		Journal:      firstMetaContent(detail, "citation_journal_title", "citation_source"),
		DOI:          strings.TrimSpace(detail.Find(`elocationid[eidtype="doi"]`).First().Text()),
		URL:          detailURL,
		Abstract:     abstract,
		ListingTitle: title,
		Source:       domain.SourceTypeScholar,
	}
	if paper.Title == "" {
		paper.Title = title
	}

	return paper, nil
}

// extractAuthors collects the author list items, strips digits (affiliation
// markers), trims trailing punctuation, and deduplicates preserving order.
func extractAuthors(doc *goquery.Document) string {
	seen := make(map[string]struct{})
	var authors []string

	doc.Find("div.authors-list span.authors-list-item").Each(func(_ int, s *goquery.Selection) {
		name := strings.Trim(digitsRe.ReplaceAllString(strings.TrimSpace(s.Text()), ""), ",. ")
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		authors = append(authors, name)
	})

	return strings.Join(authors, ", ")
}

// extractYear finds a four-digit year in the citation date meta tags,
// falling back to the free-form citation line.
func extractYear(doc *goquery.Document) string {
	for _, name := range []string{"citation_publication_date", "citation_date"} {
		if content := metaContent(doc, name); content != "" {
			if m := yearRe.FindString(content); m != "" {
				return m
			}
		}
	}
	if m := yearRe.FindString(doc.Find("div.cit").First().Text()); m != "" {
		return m
	}
	return ""
}

// metaContent returns the content attribute of the named meta tag.
func metaContent(doc *goquery.Document, name string) string {
	content, _ := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
	return strings.TrimSpace(content)
}

// firstMetaContent returns the first non-empty content among the named
// meta tags.
func firstMetaContent(doc *goquery.Document, names ...string) string {
	for _, name := range names {
		if content := metaContent(doc, name); content != "" {
			return content
		}
	}
	return ""
}
