package models

import (
	"time"
)

// AnalyticsEvent is the wire record posted by the tracker to /api/analytics.
// EventID and IPAddress are stamped by the server and never read from the body.
type AnalyticsEvent struct {
	EventID    string         `json:"eventId,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	SessionID  string         `json:"sessionId" binding:"required"`
	Page       string         `json:"page"`
	Event      string         `json:"event" binding:"required,eventname"`
	Properties map[string]any `json:"properties"`
	UserAgent  string         `json:"userAgent"`
	Referrer   string         `json:"referrer"`
	IPAddress  string         `json:"ipAddress,omitempty"`
}

// PageLoadTime returns the pageLoadTime property in milliseconds, or 0.
func (e AnalyticsEvent) PageLoadTime() int64 {
	switch v := e.Properties["pageLoadTime"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

type TopPathResult struct {
	PagePath string `json:"pagePath"`
	Count    uint64 `json:"count"`
}

type EventCountByTime struct {
	Time  time.Time `json:"time"`
	Event *string   `json:"event,omitempty"`
	Count uint64    `json:"count"`
}

// Overview summarises traffic for the dashboard.
type Overview struct {
	TotalEvents        uint64  `json:"totalEvents"`
	UniqueSessions     uint64  `json:"uniqueSessions"`
	PageViews          uint64  `json:"pageViews"`
	Searches           uint64  `json:"searches"`
	CrossLinkClicks    uint64  `json:"crossLinkClicks"`
	AvgSessionDuration float64 `json:"avgSessionDurationMs"`
}

// PopularItem is one row of a popular-people / popular-venues ranking.
type PopularItem struct {
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Views uint64 `json:"views"`
}

type SearchTerm struct {
	Query      string  `json:"query"`
	Count      uint64  `json:"count"`
	AvgResults float64 `json:"avgResults"`
}

type SearchInsights struct {
	TopQueries        []SearchTerm `json:"topQueries"`
	ZeroResultQueries []SearchTerm `json:"zeroResultQueries"`
	TotalSearches     uint64       `json:"totalSearches"`
}

type PerformanceMetric struct {
	Event string  `json:"event"`
	Count uint64  `json:"count"`
	AvgMs float64 `json:"avgMs"`
	P95Ms float64 `json:"p95Ms"`
}
