package tracker

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	mrand "math/rand/v2"
	"time"
)

// Session is one visit's worth of journey state.
type Session struct {
	SessionID  string              `json:"sessionId"`
	StartTime  time.Time           `json:"startTime"`
	EndTime    *time.Time          `json:"endTime,omitempty"`
	Pages      []PageVisit         `json:"pages"`
	Searches   []SearchQueryRecord `json:"searches"`
	CrossLinks []CrossLinkClick    `json:"crossLinks"`
}

type PageVisit struct {
	Page         string    `json:"page"`
	Timestamp    time.Time `json:"timestamp"`
	TimeSpent    int64     `json:"timeSpent"` // ms
	Interactions []string  `json:"interactions"`
}

type SearchQueryRecord struct {
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
	Results   int       `json:"results"`
}

type CrossLinkClick struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Type      string    `json:"type"` // person, venue, film, screening
	Timestamp time.Time `json:"timestamp"`
}

// clone copies every slice so the result shares no backing arrays with s.
func (s Session) clone() Session {
	out := s
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	out.Pages = make([]PageVisit, len(s.Pages))
	for i, p := range s.Pages {
		p.Interactions = append([]string(nil), p.Interactions...)
		out.Pages[i] = p
	}
	out.Searches = append([]SearchQueryRecord(nil), s.Searches...)
	out.CrossLinks = append([]CrossLinkClick(nil), s.CrossLinks...)
	return out
}

// newSessionID returns "session_<unix millis>_<random>".
func newSessionID(now time.Time) string {
	b := make([]byte, 9)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("session_%d_%x", now.UnixMilli(), mrand.Uint64())
	}
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), base64.RawURLEncoding.EncodeToString(b))
}
