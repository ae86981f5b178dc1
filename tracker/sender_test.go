package tracker

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmsociety/api/models"
)

func TestHTTPSender_PostsJSON(t *testing.T) {
	var got models.AnalyticsEvent
	var contentType, userAgent, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		userAgent = r.UserAgent()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewHTTPSender(srv.URL+"/", nil)
	err := sender.Send(context.Background(), models.AnalyticsEvent{
		Timestamp:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		SessionID:  "session_1_abc",
		Page:       "films/amelie",
		Event:      models.EventFilmView,
		Properties: map[string]any{"filmSlug": "amelie", "pageLoadTime": 12},
		UserAgent:  "journeysim/1.0",
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/analytics", path)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "journeysim/1.0", userAgent)
	assert.Equal(t, "session_1_abc", got.SessionID)
	assert.Equal(t, models.EventFilmView, got.Event)
	assert.Equal(t, "amelie", got.Properties["filmSlug"])
	assert.Equal(t, int64(12), got.PageLoadTime())
}

func TestHTTPSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewHTTPSender(srv.URL, nil).Send(context.Background(), models.AnalyticsEvent{Event: models.EventPageView})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestTracker_WithHTTPSenderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tr := New(NewHTTPSender(url, &http.Client{Timeout: time.Second}))
	assert.NotPanics(t, func() {
		tr.StartPageView("home")
		tr.TrackPageView("home")
		tr.EndPageView()
	})
	flush(t, tr)
	assert.Len(t, tr.Journey().Pages, 1)
}
