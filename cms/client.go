// Package cms reads published content from the hosted headless CMS: a
// GROQ query client with a result cache, typed helpers for the site's
// document types and an image URL builder for the CMS image CDN.
package cms

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"filmsociety/api/cache"
	"filmsociety/api/logger"
	"filmsociety/api/metrics"
)

// ErrNotFound is returned by the single-document helpers when the query
// matched nothing.
var ErrNotFound = errors.New("document not found")

type Config struct {
	ProjectID  string
	Dataset    string
	APIVersion string
	Token      string
	UseCDN     bool
	CacheTTL   time.Duration
	// BaseURL overrides the derived API host, e.g. for tests.
	BaseURL string
}

type Client struct {
	cfg    Config
	http   *http.Client
	cache  cache.Cache
	logger *zap.Logger
	images *ImageBuilder
}

// New builds a client. c may be nil to disable caching.
func New(cfg Config, c cache.Cache, l *zap.Logger) *Client {
	if cfg.Dataset == "" {
		cfg.Dataset = "production"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-01-01"
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
		cache:  c,
		logger: logger.OrNop(l).Named("cms"),
		images: NewImageBuilder(cfg.ProjectID, cfg.Dataset),
	}
}

// Configured is false when no project id is set; the site then serves its
// built-in fallback pages.
func (c *Client) Configured() bool {
	return c.cfg.ProjectID != ""
}

func (c *Client) Images() *ImageBuilder {
	return c.images
}

func (c *Client) endpoint() string {
	if c.cfg.BaseURL != "" {
		return fmt.Sprintf("%s/v%s/data/query/%s", c.cfg.BaseURL, c.cfg.APIVersion, c.cfg.Dataset)
	}
	host := "api"
	// Authenticated requests bypass the CDN.
	if c.cfg.UseCDN && c.cfg.Token == "" {
		host = "apicdn"
	}
	return fmt.Sprintf("https://%s.%s.sanity.io/v%s/data/query/%s", c.cfg.ProjectID, host, c.cfg.APIVersion, c.cfg.Dataset)
}

type queryResponse struct {
	Result json.RawMessage `json:"result"`
}

type errorResponse struct {
	Error struct {
		Description string `json:"description"`
	} `json:"error"`
}

// Query runs a GROQ query and decodes its result into out.
func (c *Client) Query(ctx context.Context, query string, params map[string]any, out any) error {
	if !c.Configured() {
		return errors.New("cms project id not configured")
	}

	values := url.Values{}
	values.Set("query", query)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		encoded, err := json.Marshal(params[k])
		if err != nil {
			return fmt.Errorf("encoding query param %s: %w", k, err)
		}
		values.Set("$"+k, string(encoded))
	}
	rawQuery := values.Encode()
	key := cacheKey(c.cfg.Dataset, rawQuery)

	if c.cache != nil {
		cached, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("cms cache read failed", zap.Error(err))
		} else if ok {
			metrics.CMSQueries.WithLabelValues("hit").Inc()
			return json.Unmarshal(cached, out)
		}
	}

	result, err := c.do(ctx, rawQuery)
	if err != nil {
		metrics.CMSQueries.WithLabelValues("error").Inc()
		return err
	}
	metrics.CMSQueries.WithLabelValues("miss").Inc()

	if c.cache != nil && c.cfg.CacheTTL > 0 {
		if err := c.cache.Set(ctx, key, result, c.cfg.CacheTTL); err != nil {
			c.logger.Warn("cms cache write failed", zap.Error(err))
		}
	}

	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("decoding cms result: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, rawQuery string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint()+"?"+rawQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("building cms request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cms request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("reading cms response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Description != "" {
			return nil, fmt.Errorf("cms query failed (%d): %s", resp.StatusCode, apiErr.Error.Description)
		}
		return nil, fmt.Errorf("cms query failed with status %d", resp.StatusCode)
	}

	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, fmt.Errorf("decoding cms response: %w", err)
	}
	if len(qr.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return qr.Result, nil
}

// Fetch is Query for page rendering: failures are logged and reported as
// false, leaving out untouched so the page falls back to placeholders.
func (c *Client) Fetch(ctx context.Context, query string, params map[string]any, out any) bool {
	if err := c.Query(ctx, query, params, out); err != nil {
		c.logger.Warn("cms query failed, rendering without it", zap.Error(err))
		return false
	}
	return true
}

func cacheKey(dataset, rawQuery string) string {
	sum := sha256.Sum256([]byte(dataset + "\x00" + rawQuery))
	return hex.EncodeToString(sum[:])
}
