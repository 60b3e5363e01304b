// Package wholesale scrapes the wholesale chain's online catalog search
// pages into ProductRecords. It satisfies the orchestrator's
// WholesaleSource interface; nothing downstream knows it scrapes.
package wholesale

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"

	"github.com/guarzo/pricegap/internal/cache"
	"github.com/guarzo/pricegap/internal/config"
	"github.com/guarzo/pricegap/internal/model"
	"github.com/guarzo/pricegap/internal/ratelimit"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Scraper fetches and parses wholesale catalog search pages.
type Scraper struct {
	baseURL    string
	pages      int
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	cache      *cache.Cache
	cacheTTL   time.Duration
}

// NewScraper builds a scraper from the loaded configuration. Caching is
// enabled only when a cache path is configured.
func NewScraper(cfg config.WholesaleConfig) *Scraper {
	var c *cache.Cache
	if cfg.CachePath != "" {
		var err error
		c, err = cache.New(cfg.CachePath)
		if err != nil {
			log.Printf("[WARN] scrape cache disabled: %v", err)
			c = nil
		}
	}

	pages := cfg.Pages
	if pages <= 0 {
		pages = 1
	}

	return &Scraper{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		pages:      pages,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		// One page fetch every 1.5s, small burst. The site publishes no
		// limits; stay polite.
		limiter:  ratelimit.NewLimiter(2, 1500*time.Millisecond),
		cache:    c,
		cacheTTL: cfg.CacheTTL,
	}
}

// Search fetches up to the configured number of search result pages for a
// keyword and returns the parsed records. Pagination stops early at the
// first empty page.
func (s *Scraper) Search(ctx context.Context, keyword string) ([]model.ProductRecord, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, &model.ValidationError{Field: "keyword", Reason: "must not be empty"}
	}

	cacheKey := cache.Key("wholesale", keyword, strconv.Itoa(s.pages))
	if s.cache != nil {
		var cached []model.ProductRecord
		if found, _ := s.cache.Get(cacheKey, &cached); found {
			return cached, nil
		}
	}

	var records []model.ProductRecord
	for page := 0; page < s.pages; page++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, &model.UpstreamError{Err: fmt.Errorf("rate limiter: %w", err)}
		}

		pageRecords, err := s.fetchPage(ctx, keyword, page)
		if err != nil {
			if page == 0 {
				return nil, err
			}
			// Later pages are best effort; keep what we have.
			log.Printf("[WARN] wholesale page %d failed: %v", page+1, err)
			break
		}
		if len(pageRecords) == 0 {
			break
		}
		records = append(records, pageRecords...)
	}

	if s.cache != nil && len(records) > 0 {
		_ = s.cache.Put(cacheKey, records, s.cacheTTL)
	}
	return records, nil
}

func (s *Scraper) fetchPage(ctx context.Context, keyword string, page int) ([]model.ProductRecord, error) {
	params := url.Values{}
	params.Set("text", keyword)
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	searchURL := s.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, &model.UpstreamError{Err: err}
	}
	setBrowserHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &model.UpstreamError{Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &model.UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	reader, err := decompressedReader(resp)
	if err != nil {
		return nil, &model.UpstreamError{Err: fmt.Errorf("decompress: %w", err)}
	}

	records, err := s.parseSearchPage(reader)
	if err != nil {
		return nil, &model.UpstreamError{Err: fmt.Errorf("parse search page: %w", err)}
	}
	return records, nil
}

// parseSearchPage extracts product tiles from one search result page.
func (s *Scraper) parseSearchPage(r io.Reader) ([]model.ProductRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var records []model.ProductRecord
	doc.Find(".product-list .product").Each(func(_ int, tile *goquery.Selection) {
		link := tile.Find(".description a").First()
		name := strings.TrimSpace(link.Text())
		if name == "" {
			return
		}

		productURL, _ := link.Attr("href")
		if strings.HasPrefix(productURL, "/") {
			productURL = s.baseURL + productURL
		}

		record := model.ProductRecord{
			Source: model.SourceWholesale,
			Name:   name,
			URL:    productURL,
		}
		if price, ok := parsePrice(tile.Find(".price").First().Text()); ok {
			record.Price = model.Price(price)
		}
		records = append(records, record)
	})

	return records, nil
}

// parsePrice turns price text like "¥3,198" into a number. Returns false
// for text with no digits so the record stays unpriced rather than zero.
func parsePrice(text string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, text)
	if cleaned == "" {
		return 0, false
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || price < 0 {
		return 0, false
	}
	return price, true
}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.9,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, br")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

func decompressedReader(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
