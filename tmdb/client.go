// Package tmdb looks up film metadata (credits, posters, runtime) from the
// public movie database to enrich CMS film pages.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"filmsociety/api/logger"
	"filmsociety/api/metrics"
)

var (
	ErrNoAPIKey      = errors.New("tmdb api key not configured")
	ErrMovieNotFound = errors.New("movie not found")
)

const imageBase = "https://image.tmdb.org/t/p"

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[*Movie]
	logger  *zap.Logger
}

func New(apiKey, baseURL string, l *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.themoviedb.org"
	}
	log := logger.OrNop(l).Named("tmdb")

	cb := gobreaker.NewCircuitBreaker[*Movie](gobreaker.Settings{
		Name:        "tmdb-api",
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A missing film is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrMovieNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit breaker state transition",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   3 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
		cb:     cb,
		logger: log,
	}
}

// Movie fetches a film with its credits.
func (c *Client) Movie(ctx context.Context, id int) (*Movie, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if id <= 0 {
		return nil, fmt.Errorf("invalid movie id %d", id)
	}

	movie, err := c.cb.Execute(func() (*Movie, error) {
		return c.fetchMovie(ctx, id)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.MetadataLookups.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("tmdb unavailable: %w", err)
	case err != nil:
		metrics.MetadataLookups.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.MetadataLookups.WithLabelValues("ok").Inc()
	return movie, nil
}

// Lookup is Movie for page rendering: any failure is logged and yields nil.
func (c *Client) Lookup(ctx context.Context, id int) *Movie {
	if c == nil || c.apiKey == "" || id <= 0 {
		return nil
	}
	movie, err := c.Movie(ctx, id)
	if err != nil {
		c.logger.Warn("movie metadata lookup failed", zap.Int("tmdb_id", id), zap.Error(err))
		return nil
	}
	return movie
}

func (c *Client) fetchMovie(ctx context.Context, id int) (*Movie, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("append_to_response", "credits")
	endpoint := fmt.Sprintf("%s/3/movie/%d?%s", c.baseURL, id, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building tmdb request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// The request URL carries the api key; report the path only.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("tmdb request GET /3/movie/%d failed: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %d", ErrMovieNotFound, id)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("tmdb returned status %d: %s", resp.StatusCode, body)
	}

	var movie Movie
	if err := json.NewDecoder(resp.Body).Decode(&movie); err != nil {
		return nil, fmt.Errorf("decoding tmdb movie: %w", err)
	}
	return &movie, nil
}

// PosterURL builds an image URL for a poster path; size is e.g. "w342" or
// "original". An empty path yields "".
func PosterURL(path, size string) string {
	if path == "" {
		return ""
	}
	if size == "" {
		size = "w500"
	}
	return imageBase + "/" + size + path
}
