// Package crawler walks the open web from a seed list, respecting robots.txt
// and per-host page caps, and emits crawled pages as JSONL ingest records
// consumable by cmd/indexer.
package crawler

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	list "github.com/bahlo/generic-list-go"
	"github.com/rs/zerolog"

	"github.com/kestrel-search/kestrel/internal/cache"
	"github.com/kestrel-search/kestrel/internal/fetcher"
	"github.com/kestrel-search/kestrel/internal/parser"
)

const maxBodyBytes = 2 * 1024 * 1024

// Config controls crawl scope and politeness.
type Config struct {
	MaxDepth     int
	MaxPages     int
	MaxPerHost   int
	SameHostOnly bool
	UserAgent    string
}

// OutDoc is a single crawled page in the ingest record schema emitted to the
// output JSONL file.
type OutDoc struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
}

// Crawler performs a breadth-first crawl starting from a seed list.
type Crawler struct {
	client   *fetcher.HTTPClient
	pageCache *cache.CrawlPageCache
	cfg      Config
	logger   zerolog.Logger

	robotsCache map[string]robotsRules
	visited     map[string]struct{}
	perHost     map[string]int
}

// frontierItem is a single pending URL with its crawl depth.
type frontierItem struct {
	url   *url.URL
	depth int
}

// NewCrawler builds a Crawler over an HTTP client and optional page cache
// (pageCache may be nil to disable caching).
func NewCrawler(client *fetcher.HTTPClient, pageCache *cache.CrawlPageCache, cfg Config, logger zerolog.Logger) *Crawler {
	return &Crawler{
		client:      client,
		pageCache:   pageCache,
		cfg:         cfg,
		logger:      logger,
		robotsCache: make(map[string]robotsRules),
		visited:     make(map[string]struct{}),
		perHost:     make(map[string]int),
	}
}

// LoadSeeds reads one URL per non-blank, non-comment line from path,
// defaulting a bare host (no scheme) to https.
func LoadSeeds(path string) ([]*url.URL, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seeds file: %w", err)
	}
	defer f.Close()

	var seeds []*url.URL
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := url.Parse(line)
		if err != nil || u.Scheme == "" {
			u, err = url.Parse("https://" + line)
			if err != nil {
				continue
			}
		}
		seeds = append(seeds, u)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan seeds file: %w", err)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("no valid seeds found in %s", path)
	}
	return seeds, nil
}

// Crawl walks the frontier breadth-first starting from seeds and writes one
// JSON line per emitted page to w.
func (c *Crawler) Crawl(ctx context.Context, seeds []*url.URL, w io.Writer) error {
	frontier := list.New[frontierItem]()
	for _, s := range seeds {
		frontier.PushBack(frontierItem{url: normalizeURL(s), depth: 0})
	}

	emitted := 0
	encoder := json.NewEncoder(w)

	for frontier.Len() > 0 && emitted < c.cfg.MaxPages {
		elem := frontier.Front()
		frontier.Remove(elem)
		item := elem.Value

		key := item.url.String()
		if _, seen := c.visited[key]; seen {
			continue
		}
		c.visited[key] = struct{}{}

		host := item.url.Host
		if c.perHost[host] >= c.cfg.MaxPerHost {
			continue
		}

		if item.depth > c.cfg.MaxDepth {
			continue
		}

		allowed, delay, err := c.checkRobots(ctx, item.url)
		if err != nil {
			c.logger.Warn().Err(err).Str("url", key).Msg("robots.txt check failed, skipping")
			continue
		}
		if !allowed {
			c.logger.Debug().Str("url", key).Msg("disallowed by robots.txt")
			continue
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		doc, links, err := c.fetchPage(ctx, item.url)
		if err != nil {
			c.logger.Debug().Err(err).Str("url", key).Msg("fetch failed")
			continue
		}
		c.perHost[host]++

		for _, link := range links {
			if c.cfg.SameHostOnly && link.Host != item.url.Host {
				continue
			}
			frontier.PushBack(frontierItem{url: link, depth: item.depth + 1})
		}

		if doc == nil {
			continue
		}
		if err := encoder.Encode(doc); err != nil {
			return fmt.Errorf("encode crawled doc: %w", err)
		}
		emitted++
		if emitted%100 == 0 {
			c.logger.Info().Int("emitted", emitted).Int("visited", len(c.visited)).Int("frontier", frontier.Len()).Msg("crawl progress")
		}
	}

	c.logger.Info().Int("emitted", emitted).Int("visited", len(c.visited)).Msg("crawl complete")
	return nil
}

// fetchPage fetches and parses a single page, returning its OutDoc and the
// links discovered on it. A non-HTML or oversized response is returned as an
// error. A page found in the page cache is returned without fetching, and
// without any links.
func (c *Crawler) fetchPage(ctx context.Context, u *url.URL) (*OutDoc, []*url.URL, error) {
	if c.pageCache != nil {
		if cached, err := c.pageCache.Load(u.String()); err == nil {
			return c.buildOutDoc(u, cached.Title, cached.Body), nil, nil
		}
	}

	resp, err := c.client.Fetch(ctx, u.String())
	if err != nil {
		return nil, nil, err
	}
	if !strings.HasPrefix(resp.ContentType, "text/html") {
		return nil, nil, fmt.Errorf("non-html content type %q", resp.ContentType)
	}
	if len(resp.Body) > maxBodyBytes {
		return nil, nil, fmt.Errorf("response body exceeds %d bytes", maxBodyBytes)
	}

	title, err := extractTitle(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse title: %w", err)
	}
	body, err := parser.ExtractBodyText(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse body: %w", err)
	}
	links, err := parser.ExtractLinks(bytes.NewReader(resp.Body), u)
	if err != nil {
		return nil, nil, fmt.Errorf("parse links: %w", err)
	}

	if c.pageCache != nil {
		if err := c.pageCache.Save(u.String(), title, body, resp.ContentType); err != nil {
			c.logger.Warn().Err(err).Str("url", u.String()).Msg("failed to cache page")
		}
	}

	return c.buildOutDoc(u, title, body), links, nil
}

func (c *Crawler) buildOutDoc(u *url.URL, title, body string) *OutDoc {
	return &OutDoc{
		ID:        idForURL(u.String()),
		Title:     title,
		Body:      body,
		URL:       u.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func (c *Crawler) checkRobots(ctx context.Context, u *url.URL) (bool, time.Duration, error) {
	host := u.Host
	rules, ok := c.robotsCache[host]
	if !ok {
		robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, host)
		resp, err := c.client.Fetch(ctx, robotsURL)
		if err != nil {
			// No robots.txt, or it errored: treat as fully permissive, same as
			// the reference crawler.
			rules = robotsRules{}
		} else {
			rules = parseRobots(string(resp.Body))
		}
		c.robotsCache[host] = rules
	}

	allowed := pathAllowed(u.Path, rules)
	var delay time.Duration
	if rules.hasCrawlDly {
		delay = rules.crawlDelay
	}
	return allowed, delay, nil
}

func extractTitle(htmlBody []byte) (string, error) {
	doc, err := parser.ParseHTML(bytes.NewReader(htmlBody))
	if err != nil {
		return "", err
	}
	return doc.Title, nil
}

// normalizeURL strips the fragment, matching the reference crawler's
// dedup key (two URLs differing only by #fragment are the same page).
func normalizeURL(u *url.URL) *url.URL {
	normalized := *u
	normalized.Fragment = ""
	return &normalized
}

// idForURL derives a stable document id from a crawled URL.
func idForURL(rawURL string) string {
	sum := sha1.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}
