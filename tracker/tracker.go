// Package tracker records one visitor's session on the film society site:
// page views and dwell time, searches, cross-links between content types
// and timing events. Named events are forwarded to the site's collection
// endpoint fire-and-forget; a failed send is logged and dropped.
//
// A Tracker is created once per visit and handed to whatever renders or
// navigates pages. It is safe for concurrent use.
package tracker

import (
	"context"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"

	"filmsociety/api/logger"
	"filmsociety/api/metrics"
	"filmsociety/api/models"
)

type Tracker struct {
	sender    Sender
	logger    *zap.Logger
	now       func() time.Time
	userAgent string
	referrer  string

	mu          sync.Mutex
	session     Session
	currentPage string
	pageStart   time.Time
	open        *openPage
	navigations int
	ended       bool

	inflight sync.WaitGroup
}

// openPage is the single page view currently being timed. nav identifies
// the navigation it belongs to; a view resumed after the tab was hidden
// keeps the nav of the view it continues.
type openPage struct {
	index int
	nav   int
	start time.Time
}

type Option func(*Tracker)

func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithClient sets the user agent and referrer stamped on every event.
func WithClient(userAgent, referrer string) Option {
	return func(t *Tracker) {
		t.userAgent = userAgent
		t.referrer = referrer
	}
}

// New starts a session. A nil sender discards events.
func New(sender Sender, opts ...Option) *Tracker {
	t := &Tracker{
		sender: sender,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.sender == nil {
		t.sender = nopSender{}
	}
	t.logger = logger.OrNop(t.logger).Named("tracker")

	start := t.now()
	t.pageStart = start
	t.session = Session{
		SessionID: newSessionID(start),
		StartTime: start,
	}
	return t
}

func (t *Tracker) SessionID() string {
	return t.session.SessionID
}

// Journey returns a copy of the session; mutating it does not affect the tracker.
func (t *Tracker) Journey() Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.clone()
}

// CurrentPage returns the page most recently started, open or not.
func (t *Tracker) CurrentPage() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentPage
}

// StartPageView opens a page view. A view that is still open is closed
// first so its dwell time is not lost.
func (t *Tracker) StartPageView(page string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startLocked(page, false)
}

// startLocked opens a view of page and returns its navigation id. resume
// continues the current navigation instead of starting a new one.
func (t *Tracker) startLocked(page string, resume bool) int {
	now := t.now()
	if t.open != nil {
		t.logger.Debug("page view still open, closing it",
			zap.String("page", t.session.Pages[t.open.index].Page),
			zap.String("next", page),
		)
		t.closeLocked(now)
	}

	t.currentPage = page
	t.pageStart = now
	t.session.Pages = append(t.session.Pages, PageVisit{
		Page:         page,
		Timestamp:    now,
		Interactions: []string{},
	})
	if !resume {
		t.navigations++
	}
	t.open = &openPage{index: len(t.session.Pages) - 1, nav: t.navigations, start: now}
	return t.open.nav
}

// EndPageView finalizes the open page view's dwell time. Without an open
// view it does nothing.
func (t *Tracker) EndPageView() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked(t.now())
}

func (t *Tracker) closeLocked(now time.Time) {
	if t.open == nil {
		return
	}
	spent := now.Sub(t.open.start).Milliseconds()
	if spent < 0 {
		spent = 0
	}
	t.session.Pages[t.open.index].TimeSpent = spent
	t.open = nil
}

// endIfOpen closes the open view only if it belongs to navigation nav,
// including a view resumed after the tab was hidden.
func (t *Tracker) endIfOpen(nav int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open != nil && t.open.nav == nav {
		t.closeLocked(t.now())
	}
}

// RecordInteraction labels the open page view with an interaction.
func (t *Tracker) RecordInteraction(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open == nil {
		return
	}
	p := &t.session.Pages[t.open.index]
	p.Interactions = append(p.Interactions, label)
}

// VisibilityChanged pauses timing while the page is hidden and resumes it
// with a fresh view of the same page when it becomes visible again.
func (t *Tracker) VisibilityChanged(hidden bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if hidden {
		t.closeLocked(t.now())
		return
	}
	if t.open == nil && t.currentPage != "" && !t.ended {
		t.startLocked(t.currentPage, true)
	}
}

// End closes the session: the open view is finalized, the end time is
// stamped and a session_end summary is emitted. It then waits, bounded by
// ctx, for sends still in flight. Calling End again only waits.
func (t *Tracker) End(ctx context.Context) error {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return t.Flush(ctx)
	}
	now := t.now()
	t.closeLocked(now)
	t.ended = true
	t.session.EndTime = &now
	props := map[string]any{
		"sessionDuration": now.Sub(t.session.StartTime).Milliseconds(),
		"pagesVisited":    len(t.session.Pages),
		"searchCount":     len(t.session.Searches),
		"crossLinkCount":  len(t.session.CrossLinks),
	}
	t.mu.Unlock()

	t.emit(models.EventSessionEnd, props)
	return t.Flush(ctx)
}

// Flush waits for in-flight sends or until ctx is done.
func (t *Tracker) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// emit builds the wire record and hands it to the sender on its own
// goroutine. It never blocks on the network and never fails.
func (t *Tracker) emit(event string, props map[string]any) {
	t.mu.Lock()
	now := t.now()
	properties := make(map[string]any, len(props)+1)
	maps.Copy(properties, props)
	properties["pageLoadTime"] = now.Sub(t.pageStart).Milliseconds()

	rec := models.AnalyticsEvent{
		Timestamp:  now,
		SessionID:  t.session.SessionID,
		Page:       t.currentPage,
		Event:      event,
		Properties: properties,
		UserAgent:  t.userAgent,
		Referrer:   t.referrer,
	}
	t.mu.Unlock()

	t.inflight.Add(1)
	go t.send(rec)
}

func (t *Tracker) send(rec models.AnalyticsEvent) {
	defer t.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			metrics.TrackerSendFailures.Inc()
			t.logger.Error("analytics sender panicked", zap.String("event", rec.Event), zap.Any("panic", r))
		}
	}()

	if err := t.sender.Send(context.Background(), rec); err != nil {
		metrics.TrackerSendFailures.Inc()
		t.logger.Warn("failed to send analytics event",
			zap.String("event", rec.Event),
			zap.String("session_id", rec.SessionID),
			zap.Error(err),
		)
	}
}
