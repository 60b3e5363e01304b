package wholesale

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/guarzo/pricegap/internal/config"
	"github.com/guarzo/pricegap/internal/model"
)

const searchPageHTML = `<!DOCTYPE html>
<html><body>
<div class="product-list">
	<div class="product">
		<div class="description"><a href="/p/toilet-paper-30">カークランドシグネチャー トイレットペーパー 30ロール</a></div>
		<div class="price">¥3,198</div>
	</div>
	<div class="product">
		<div class="description"><a href="https://www.costco.co.jp/p/pastel-paper">パステルカラーペーパー 10冊</a></div>
		<div class="price">¥1,298</div>
	</div>
	<div class="product">
		<div class="description"><a href="/p/mystery">会員限定商品</a></div>
		<div class="price">価格はログイン後</div>
	</div>
	<div class="product">
		<div class="description"><a href="/p/nameless">   </a></div>
		<div class="price">¥500</div>
	</div>
</div>
</body></html>`

func testScraper(t *testing.T, handler http.Handler, pages int, cachePath string) *Scraper {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewScraper(config.WholesaleConfig{
		BaseURL:   srv.URL,
		Timeout:   5 * time.Second,
		Pages:     pages,
		CachePath: cachePath,
		CacheTTL:  time.Hour,
	})
}

func TestSearchParsesProductTiles(t *testing.T) {
	s := testScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("text"); got != "ペーパー" {
			t.Errorf("text = %q", got)
		}
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "Mozilla") {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Write([]byte(searchPageHTML))
	}), 1, "")

	records, err := s.Search(context.Background(), "ペーパー")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// Nameless tile is dropped, priceless tile survives without a price.
	if len(records) != 3 {
		t.Fatalf("got %d records: %+v", len(records), records)
	}

	first := records[0]
	if first.Source != model.SourceWholesale {
		t.Errorf("source = %q", first.Source)
	}
	if first.Name != "カークランドシグネチャー トイレットペーパー 30ロール" {
		t.Errorf("name = %q", first.Name)
	}
	if !first.HasPrice() || *first.Price != 3198 {
		t.Errorf("price = %v", first.Price)
	}
	if !strings.HasSuffix(first.URL, "/p/toilet-paper-30") || !strings.HasPrefix(first.URL, "http") {
		t.Errorf("relative URL not resolved: %q", first.URL)
	}

	// Absolute URLs pass through untouched.
	if records[1].URL != "https://www.costco.co.jp/p/pastel-paper" {
		t.Errorf("absolute URL rewritten: %q", records[1].URL)
	}

	if records[2].Price != nil {
		t.Errorf("unparseable price should stay nil, got %v", *records[2].Price)
	}
}

func TestSearchPaginationStopsOnEmptyPage(t *testing.T) {
	var pagesServed []string
	s := testScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		pagesServed = append(pagesServed, page)
		if page == "" {
			w.Write([]byte(searchPageHTML))
			return
		}
		w.Write([]byte(`<html><body><div class="product-list"></div></body></html>`))
	}), 3, "")

	records, err := s.Search(context.Background(), "paper")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("got %d records", len(records))
	}
	// First page plus the empty second page; the third is never fetched.
	if len(pagesServed) != 2 {
		t.Errorf("pages fetched = %v", pagesServed)
	}
}

func TestSearchUpstreamStatus(t *testing.T) {
	s := testScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}), 1, "")

	_, err := s.Search(context.Background(), "paper")
	if !model.IsUpstream(err) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
}

func TestSearchEmptyKeyword(t *testing.T) {
	s := testScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}), 1, "")
	if _, err := s.Search(context.Background(), " "); !model.IsValidation(err) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestSearchUsesCache(t *testing.T) {
	var hits int
	cachePath := filepath.Join(t.TempDir(), "scrape.json")
	s := testScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(searchPageHTML))
	}), 1, cachePath)

	for i := 0; i < 2; i++ {
		records, err := s.Search(context.Background(), "paper")
		if err != nil {
			t.Fatalf("Search %d: %v", i, err)
		}
		if len(records) != 3 {
			t.Fatalf("Search %d: %d records", i, len(records))
		}
	}
	if hits != 1 {
		t.Errorf("server hit %d times, want 1 with a warm cache", hits)
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		text string
		want float64
		ok   bool
	}{
		{"¥3,198", 3198, true},
		{"¥1,298 (税込)", 1298, true},
		{"3198", 3198, true},
		{"価格はログイン後", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parsePrice(tt.text)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parsePrice(%q) = %v,%v want %v,%v", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}
