package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// WikipediaSource describes one article to scrape.
type WikipediaSource struct {
	URL      string
	Title    string
	Category string
	Priority int
}

// DefaultWikipediaSources is the curated article set covering current
// seasons, teams (including 2026 entrants), and the 2026 rule overhaul.
var DefaultWikipediaSources = []WikipediaSource{
	{URL: "https://en.wikipedia.org/wiki/2025_Formula_One_World_Championship", Title: "2025 F1 Season", Category: "season", Priority: 1},
	{URL: "https://en.wikipedia.org/wiki/2026_Formula_One_World_Championship", Title: "2026 F1 Season", Category: "season", Priority: 1},
	{URL: "https://en.wikipedia.org/wiki/Red_Bull_Racing", Title: "Red Bull Racing", Category: "team", Priority: 1},
	{URL: "https://en.wikipedia.org/wiki/Scuderia_Ferrari", Title: "Ferrari", Category: "team", Priority: 1},
	{URL: "https://en.wikipedia.org/wiki/McLaren", Title: "McLaren", Category: "team", Priority: 1},
	{URL: "https://en.wikipedia.org/wiki/Mercedes-Benz_in_Formula_One", Title: "Mercedes F1", Category: "team", Priority: 1},
	{URL: "https://en.wikipedia.org/wiki/Cadillac_in_Formula_One", Title: "Cadillac F1 (2026 Entry)", Category: "team", Priority: 1},
	{URL: "https://en.wikipedia.org/wiki/Audi_in_Formula_One", Title: "Audi F1 (Sauber Takeover)", Category: "team", Priority: 1},
	{URL: "https://en.wikipedia.org/wiki/2026_Formula_One_regulations", Title: "2026 F1 Regulations", Category: "regulations", Priority: 1},
}

// minArticleLength rejects extraction results too short to be an article.
const minArticleLength = 100

const scraperUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// WikipediaConfig configures the scraper.
type WikipediaConfig struct {
	Sources []WikipediaSource // defaults to DefaultWikipediaSources
	Delay   time.Duration     // politeness delay between requests
	Timeout time.Duration
	Retries int
	Logger  *slog.Logger
}

// Wikipedia scrapes the configured article set and extracts readable
// article text.
type Wikipedia struct {
	collector *colly.Collector
	sources   []WikipediaSource
	retries   int
	logger    *slog.Logger
}

// NewWikipedia builds a scraper with a rate-limited collector.
func NewWikipedia(cfg WikipediaConfig) *Wikipedia {
	if cfg.Sources == nil {
		cfg.Sources = DefaultWikipediaSources
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := colly.NewCollector(
		colly.UserAgent(scraperUserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(cfg.Timeout)
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: cfg.Delay})

	return &Wikipedia{
		collector: c,
		sources:   cfg.Sources,
		retries:   cfg.Retries,
		logger:    cfg.Logger,
	}
}

// ScrapeAll fetches every configured source. URLs present in seen are
// skipped unless forceRefresh is set. Individual failures are recorded
// in Stats and do not abort the run.
func (w *Wikipedia) ScrapeAll(ctx context.Context, forceRefresh bool, seen map[string]bool) ([]Document, Stats) {
	stats := Stats{Total: len(w.sources)}

	sources := make([]WikipediaSource, len(w.sources))
	copy(sources, w.sources)
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Priority < sources[j].Priority })

	var documents []Document
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("canceled: %s", src.Title))
			continue
		}
		if !forceRefresh && seen[src.URL] {
			stats.Skipped++
			continue
		}

		content, err := w.fetchArticle(src.URL)
		if err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("failed: %s (%s): %v", src.Title, src.URL, err))
			w.logger.Warn("scrape failed", "title", src.Title, "url", src.URL, "error", err)
			continue
		}

		documents = append(documents, Document{
			Content:       content,
			Title:         src.Title,
			URL:           src.URL,
			Category:      src.Category,
			Priority:      src.Priority,
			ScrapedAt:     time.Now().UTC(),
			ContentLength: len(content),
		})
		stats.Success++
		w.logger.Info("scraped article", "title", src.Title, "chars", len(content))
	}

	w.logger.Info("wikipedia scraping complete",
		"success", stats.Success, "failed", stats.Failed, "skipped", stats.Skipped)

	return documents, stats
}

// fetchArticle retrieves one URL with retries and extracts article text.
func (w *Wikipedia) fetchArticle(url string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < w.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}

		body, err := w.fetch(url)
		if err != nil {
			lastErr = err
			continue
		}

		content, err := extractArticle(body)
		if err != nil {
			// Unextractable content will not improve on retry.
			return "", err
		}
		return content, nil
	}
	return "", fmt.Errorf("all %d attempts failed: %w", w.retries, lastErr)
}

func (w *Wikipedia) fetch(url string) ([]byte, error) {
	var body []byte
	var fetchErr error

	c := w.collector.Clone()
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(url); err != nil {
		return nil, err
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	return body, nil
}

// extractArticle pulls readable article text out of a Wikipedia page:
// chrome elements are dropped, then block-level text is collected from
// the main content container with paragraph breaks preserved.
func extractArticle(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing page: %w", err)
	}

	doc.Find("script, style, nav, footer, header, .mw-editsection, sup.reference").Remove()

	var root *goquery.Selection
	for _, selector := range []string{"#mw-content-text", "main", "article", "body"} {
		if s := doc.Find(selector).First(); s.Length() > 0 {
			root = s
			break
		}
	}
	if root == nil {
		return "", fmt.Errorf("no content container found")
	}

	var blocks []string
	root.Find("p, h2, h3, li").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})

	content := strings.Join(blocks, "\n\n")
	if len(content) < minArticleLength {
		return "", fmt.Errorf("extracted content too short (%d chars)", len(content))
	}
	return content, nil
}
