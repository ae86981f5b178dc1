package tracker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"filmsociety/api/models"
)

// Sender delivers one event to the collection endpoint.
type Sender interface {
	Send(ctx context.Context, event models.AnalyticsEvent) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, event models.AnalyticsEvent) error

func (f SenderFunc) Send(ctx context.Context, event models.AnalyticsEvent) error {
	return f(ctx, event)
}

type nopSender struct{}

func (nopSender) Send(context.Context, models.AnalyticsEvent) error { return nil }

// HTTPSender posts events as JSON to <base>/api/analytics.
type HTTPSender struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSender returns a sender for the site at baseURL. A nil client gets
// a short-timeout default; slow sends are never awaited by tracking calls
// anyway.
func NewHTTPSender(baseURL string, client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		}
	}
	return &HTTPSender{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/analytics",
		client:   client,
	}
}

func (s *HTTPSender) Send(ctx context.Context, event models.AnalyticsEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode analytics event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build analytics request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if event.UserAgent != "" {
		req.Header.Set("User-Agent", event.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post analytics event: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post analytics event: unexpected status %d", resp.StatusCode)
	}
	return nil
}
