package spapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/guarzo/pricegap/internal/config"
	"github.com/guarzo/pricegap/internal/model"
)

const (
	catalogSearchPath = "/catalog/2020-12-01/items"
	pricingPath       = "/pricing/v0/competitivePrice"
	productURLPrefix  = "https://www.amazon.co.jp/dp/"
)

// Client is the authenticated marketplace API client. It composes the
// token cache and the request signer, normalizes responses into
// ProductRecords, and makes exactly one attempt per call; retrying
// surfaced failures is the caller's business.
type Client struct {
	marketplaceID string
	baseURL       string
	tokens        *TokenCache
	signer        *Signer
	httpClient    *http.Client
	limiter       *rate.Limiter
	now           func() time.Time
}

// NewClient wires a client from the loaded configuration.
func NewClient(cfg *config.Config) *Client {
	mkt := cfg.Marketplace
	return &Client{
		marketplaceID: mkt.MarketplaceID,
		baseURL:       "https://" + mkt.Host,
		tokens:        NewTokenCache(cfg.Credentials, mkt.TokenURL, mkt.Timeout),
		signer: NewSigner(
			cfg.Credentials.AccessKeyID,
			cfg.Credentials.SecretAccessKey,
			cfg.Credentials.SecurityToken,
			mkt.Host,
			mkt.Region,
		),
		httpClient: &http.Client{Timeout: mkt.Timeout},
		// Catalog and pricing endpoints allow roughly two requests per
		// second with a small burst.
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
		now:     time.Now,
	}
}

// SearchProducts queries the catalog search endpoint for a keyword. The
// endpoint returns no pricing, so every record comes back with a nil
// price; LookupPrice fills it in per ASIN.
func (c *Client) SearchProducts(ctx context.Context, keyword string, pageSize int) ([]model.ProductRecord, error) {
	if keyword == "" {
		return nil, &model.ValidationError{Field: "keyword", Reason: "must not be empty"}
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	query := url.Values{}
	query.Set("keywords", keyword)
	query.Set("marketplaceIds", c.marketplaceID)
	query.Set("includedData", "summaries")
	query.Set("pageSize", strconv.Itoa(pageSize))

	body, err := c.doSigned(ctx, catalogSearchPath, query)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}

	var parsed struct {
		Items []struct {
			ASIN      string `json:"asin"`
			Summaries []struct {
				ItemName string `json:"itemName"`
			} `json:"summaries"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &model.UpstreamError{Body: model.Snippet(string(body), 200), Err: fmt.Errorf("malformed catalog response: %w", err)}
	}

	records := make([]model.ProductRecord, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		name := ""
		if len(item.Summaries) > 0 {
			name = item.Summaries[0].ItemName
		}
		records = append(records, model.ProductRecord{
			Source:     model.SourceMarketplace,
			Name:       name,
			Price:      nil,
			URL:        productURLPrefix + item.ASIN,
			ExternalID: item.ASIN,
		})
	}
	return records, nil
}

// LookupPrice fetches the competitive landed price for one ASIN. It
// returns (nil, nil) when the marketplace has no competitive price for
// the item, which the orchestrator treats as "no pair".
func (c *Client) LookupPrice(ctx context.Context, asin string) (*float64, error) {
	if asin == "" {
		return nil, &model.ValidationError{Field: "asin", Reason: "must not be empty"}
	}

	query := url.Values{}
	query.Set("MarketplaceId", c.marketplaceID)
	query.Set("Asins", asin)

	body, err := c.doSigned(ctx, pricingPath, query)
	if err != nil {
		return nil, fmt.Errorf("price lookup for %s: %w", asin, err)
	}

	var parsed struct {
		Payload []struct {
			Product struct {
				CompetitivePricing struct {
					CompetitivePrices []struct {
						Price struct {
							LandedPrice struct {
								Amount float64 `json:"Amount"`
							} `json:"LandedPrice"`
						} `json:"Price"`
					} `json:"CompetitivePrices"`
				} `json:"CompetitivePricing"`
			} `json:"Product"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &model.UpstreamError{Body: model.Snippet(string(body), 200), Err: fmt.Errorf("malformed pricing response: %w", err)}
	}

	if len(parsed.Payload) == 0 {
		return nil, nil
	}
	prices := parsed.Payload[0].Product.CompetitivePricing.CompetitivePrices
	if len(prices) == 0 {
		return nil, nil
	}
	amount := prices[0].Price.LandedPrice.Amount
	return &amount, nil
}

// doSigned performs one authenticated GET: token, signature, call.
func (c *Client) doSigned(ctx context.Context, path string, query url.Values) ([]byte, error) {
	token, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &model.UpstreamError{Err: fmt.Errorf("rate limiter: %w", err)}
	}

	signed := c.signer.Sign(http.MethodGet, path, query, "", c.now())

	reqURL := c.baseURL + path + "?" + canonicalQueryString(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &model.UpstreamError{Err: err}
	}
	for k, v := range signed {
		req.Header.Set(k, v)
	}
	req.Header.Set("x-amz-access-token", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.UpstreamError{Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.UpstreamError{Timeout: isTimeout(err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.UpstreamError{Status: resp.StatusCode, Body: model.Snippet(string(body), 500)}
	}
	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
