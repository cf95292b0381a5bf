package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/scriptoria/litreview/internal/domain"
	"github.com/scriptoria/litreview/internal/observability"
	"github.com/scriptoria/litreview/internal/papersources"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	// With an API key, the limit increases to 10 requests/second.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultFetchConcurrency bounds concurrent efetch requests per phrase.
	DefaultFetchConcurrency = 3

	// DefaultThrottleRetries is how many times a throttled esearch is retried.
	DefaultThrottleRetries = 3

	// DefaultThrottleDelay is the fixed pause between throttled esearch retries.
	DefaultThrottleDelay = time.Second

	// DefaultPhrasePause staggers sequential phrase searches.
	DefaultPhrasePause = 300 * time.Millisecond
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits.
	// Optional but recommended for production use.
	APIKey string

	// Timeout is the request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit (3 req/sec) if zero.
	// With an API key, you can increase this to 10 req/sec.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize if zero.
	BurstSize int

	// FetchConcurrency bounds concurrent efetch requests per phrase.
	// Defaults to DefaultFetchConcurrency if zero.
	FetchConcurrency int

	// ThrottleRetries is how many esearch attempts are made when the API
	// reports throttling. Defaults to DefaultThrottleRetries if zero.
	ThrottleRetries int

	// ThrottleDelay is the fixed pause between throttled esearch attempts.
	// Defaults to DefaultThrottleDelay if zero.
	ThrottleDelay time.Duration

	// PhrasePause is the pause between sequential phrase searches.
	// Defaults to DefaultPhrasePause if zero.
	PhrasePause time.Duration

	// Parser selects the efetch record parser variant ("official" or
	// "generic"). Defaults to the official schema.
	Parser string
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.FetchConcurrency == 0 {
		c.FetchConcurrency = DefaultFetchConcurrency
	}
	if c.ThrottleRetries == 0 {
		c.ThrottleRetries = DefaultThrottleRetries
	}
	if c.ThrottleDelay == 0 {
		c.ThrottleDelay = DefaultThrottleDelay
	}
	if c.PhrasePause == 0 {
		c.PhrasePause = DefaultPhrasePause
	}
}

// Client searches PubMed through the E-utilities endpoints.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	parser     RecordParser
	logger     zerolog.Logger
}

// Compile-time check that Client implements MetadataSearcher.
var _ papersources.MetadataSearcher = (*Client)(nil)

// New creates a new PubMed client with the given configuration.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	cfg.applyDefaults()

	httpCfg := papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
	}

	return NewWithHTTPClient(cfg, logger, papersources.NewHTTPClient(httpCfg))
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, logger zerolog.Logger, httpClient *papersources.HTTPClient) (*Client, error) {
	cfg.applyDefaults()

	parser, err := NewParser(cfg.Parser)
	if err != nil {
		return nil, err
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		parser:     parser,
		logger:     logger.With().Str("source", "pubmed").Logger(),
	}, nil
}

// SearchPhrases runs one esearch per phrase, strictly in order, fetching
// the matched records concurrently per phrase. Records that fail to fetch
// or parse are dropped; a short pause staggers consecutive phrases.
func (c *Client) SearchPhrases(ctx context.Context, phrases []string, budget papersources.PhraseBudget) ([]domain.Paper, error) {
	logger := c.runLogger(ctx)
	var papers []domain.Paper

	for i, phrase := range phrases {
		if i > 0 {
			if err := sleepCtx(ctx, c.config.PhrasePause); err != nil {
				return papers, err
			}
		}

		ids, err := c.esearch(ctx, phrase, budget.MaxResults)
		if err != nil {
			if ctx.Err() != nil {
				return papers, ctx.Err()
			}
			logger.Warn().Err(err).Str("phrase", phrase).Msg("esearch failed, skipping phrase")
			continue
		}
		if len(ids) == 0 {
			logger.Debug().Str("phrase", phrase).Msg("no record IDs for phrase")
			continue
		}

		logger.Debug().Str("phrase", phrase).Int("ids", len(ids)).Msg("fetching records")

		fetched, err := c.fetchRecords(ctx, ids)
		if err != nil {
			return papers, err
		}
		papers = append(papers, fetched...)
	}

	return papers, nil
}

// SearchTopic runs a single-phrase search for the raw topic.
func (c *Client) SearchTopic(ctx context.Context, topic string, maxResults int) ([]domain.Paper, error) {
	return c.SearchPhrases(ctx, []string{topic}, papersources.PhraseBudget{MaxResults: maxResults})
}

// esearch returns the record IDs matching a phrase. A payload carrying an
// "error" key means the API is throttling: the call is retried with a fixed
// delay, and after the attempts are exhausted the last payload is used
// as-is rather than failing the phrase.
func (c *Client) esearch(ctx context.Context, phrase string, maxResults int) ([]string, error) {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("retmode", "json")
	q.Set("retmax", strconv.Itoa(maxResults))
	q.Set("sort", "relevance")
	q.Set("term", phrase)
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	searchURL := c.config.BaseURL + "/esearch.fcgi?" + q.Encode()

	var resp esearchResponse
	for attempt := 1; attempt <= c.config.ThrottleRetries; attempt++ {
		body, err := c.httpClient.Get(ctx, searchURL)
		if err != nil {
			return nil, fmt.Errorf("esearch request failed: %w", err)
		}

		resp = esearchResponse{}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse esearch response: %w", err)
		}

		if resp.Error == "" {
			break
		}

		c.logger.Warn().
			Str("phrase", phrase).
			Int("attempt", attempt).
			Str("api_error", resp.Error).
			Msg("esearch throttled, retrying")

		if attempt < c.config.ThrottleRetries {
			if err := sleepCtx(ctx, c.config.ThrottleDelay); err != nil {
				return nil, err
			}
		}
	}

	return resp.ESearchResult.IDList, nil
}

// fetchRecords retrieves and parses the records for the given IDs with
// bounded concurrency. Order follows the ID list; failed records are
// dropped.
func (c *Client) fetchRecords(ctx context.Context, ids []string) ([]domain.Paper, error) {
	results := make([]*domain.Paper, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.FetchConcurrency)

	for i, id := range ids {
		g.Go(func() error {
			paper, err := c.fetchRecord(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logger.Debug().Err(err).Str("record_id", id).Msg("dropping record")
				return nil
			}
			results[i] = paper
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	papers := make([]domain.Paper, 0, len(ids))
	for _, p := range results {
		if p != nil {
			papers = append(papers, *p)
		}
	}
	return papers, nil
}

// fetchRecord retrieves one record through efetch and parses it.
func (c *Client) fetchRecord(ctx context.Context, id string) (*domain.Paper, error) {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("retmode", "xml")
	q.Set("id", id)
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	fetchURL := c.config.BaseURL + "/efetch.fcgi?" + q.Encode()

	body, err := c.httpClient.Get(ctx, fetchURL)
	if err != nil {
		return nil, fmt.Errorf("efetch request failed: %w", err)
	}

	paper, err := c.parser.ParseRecord(body)
	if err != nil {
		return nil, err
	}
	if paper.ExternalID == "" {
		paper.ExternalID = id
	}
	return &paper, nil
}

// runLogger attaches the pipeline run ID carried by the context, when
// present, so log lines from the shared client correlate with their run.
func (c *Client) runLogger(ctx context.Context) zerolog.Logger {
	if runID := observability.RunIDFromContext(ctx); runID != "" {
		return c.logger.With().Str("run_id", runID).Logger()
	}
	return c.logger
}

// sleepCtx waits for the duration or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
