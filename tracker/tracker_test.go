package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"filmsociety/api/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSender struct {
	mu     sync.Mutex
	events []models.AnalyticsEvent
}

func (s *recordingSender) Send(_ context.Context, e models.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSender) Events() []models.AnalyticsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AnalyticsEvent(nil), s.events...)
}

func (s *recordingSender) Named(name string) []models.AnalyticsEvent {
	var out []models.AnalyticsEvent
	for _, e := range s.Events() {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

func newTestTracker(t *testing.T) (*Tracker, *recordingSender, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	sender := &recordingSender{}
	return New(sender, WithClock(clock.Now), WithClient("test-agent", "https://example.org")), sender, clock
}

func flush(t *testing.T, tr *Tracker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.Flush(ctx))
}

func TestPageView_TimeSpentMatchesElapsed(t *testing.T) {
	tr, _, clock := newTestTracker(t)

	tr.StartPageView("films")
	clock.Advance(1500 * time.Millisecond)
	tr.EndPageView()

	journey := tr.Journey()
	require.Len(t, journey.Pages, 1)
	assert.Equal(t, "films", journey.Pages[0].Page)
	assert.Equal(t, int64(1500), journey.Pages[0].TimeSpent)
}

func TestEndPageView_WithoutStartIsNoop(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	assert.NotPanics(t, func() {
		tr.EndPageView()
		tr.EndPageView()
	})
	assert.Empty(t, tr.Journey().Pages)
}

func TestEndPageView_SecondCallKeepsFirstMeasurement(t *testing.T) {
	tr, _, clock := newTestTracker(t)

	tr.StartPageView("archive")
	clock.Advance(time.Second)
	tr.EndPageView()
	clock.Advance(time.Minute)
	tr.EndPageView()

	assert.Equal(t, int64(1000), tr.Journey().Pages[0].TimeSpent)
}

func TestStartPageView_AutoClosesOpenView(t *testing.T) {
	tr, _, clock := newTestTracker(t)

	tr.StartPageView("films")
	clock.Advance(2 * time.Second)
	tr.StartPageView("films/amelie")
	clock.Advance(3 * time.Second)
	tr.EndPageView()

	pages := tr.Journey().Pages
	require.Len(t, pages, 2)
	assert.Equal(t, int64(2000), pages[0].TimeSpent)
	assert.Equal(t, int64(3000), pages[1].TimeSpent)
	assert.Equal(t, "films/amelie", tr.CurrentPage())
}

func TestSessionID(t *testing.T) {
	tr := New(nil)
	id := tr.SessionID()

	assert.True(t, strings.HasPrefix(id, "session_"))
	tr.StartPageView("home")
	tr.TrackSearch("noir", 4, nil)
	assert.Equal(t, id, tr.SessionID())
	assert.Equal(t, id, tr.Journey().SessionID)

	seen := map[string]bool{id: true}
	for i := 0; i < 200; i++ {
		other := New(nil).SessionID()
		require.False(t, seen[other], "duplicate session id %s", other)
		seen[other] = true
	}
}

func TestJourney_ReturnsCopy(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	tr.StartPageView("films/amelie")
	tr.RecordInteraction("trailer")
	tr.TrackSearch("amelie", 1, nil)
	tr.TrackCrossLink("films/amelie", "people/audrey-tautou", "person")
	tr.EndPageView()

	snapshot := tr.Journey()
	snapshot.Pages[0].Page = "tampered"
	snapshot.Pages[0].Interactions[0] = "tampered"
	snapshot.Searches[0].Results = 99
	snapshot.CrossLinks = append(snapshot.CrossLinks, CrossLinkClick{From: "x"})
	snapshot.SessionID = "tampered"

	fresh := tr.Journey()
	assert.Equal(t, "films/amelie", fresh.Pages[0].Page)
	assert.Equal(t, []string{"trailer"}, fresh.Pages[0].Interactions)
	assert.Equal(t, 1, fresh.Searches[0].Results)
	assert.Len(t, fresh.CrossLinks, 1)
	assert.NotEqual(t, "tampered", fresh.SessionID)
}

func TestTrackSearch_RecordsEvenWhenSendFails(t *testing.T) {
	failing := SenderFunc(func(context.Context, models.AnalyticsEvent) error {
		return errors.New("network down")
	})
	tr := New(failing)

	assert.NotPanics(t, func() { tr.TrackSearch("cinema paradiso", 3, nil) })
	flush(t, tr)

	searches := tr.Journey().Searches
	require.Len(t, searches, 1)
	assert.Equal(t, "cinema paradiso", searches[0].Query)
	assert.Equal(t, 3, searches[0].Results)
}

func TestFailingSend_DoesNotBlockLaterCalls(t *testing.T) {
	core, recorded := observer.New(zapcore.WarnLevel)
	var mu sync.Mutex
	calls := 0
	var delivered []string

	sender := SenderFunc(func(_ context.Context, e models.AnalyticsEvent) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		switch calls {
		case 1:
			return errors.New("connection refused")
		case 2:
			panic("sender bug")
		}
		delivered = append(delivered, e.Event)
		return nil
	})
	tr := New(sender, WithLogger(zap.New(core)))

	tr.TrackFilmView("amelie", "Amélie")
	flush(t, tr)
	tr.TrackPersonView("jean-pierre-jeunet", "Jean-Pierre Jeunet")
	flush(t, tr)
	tr.TrackVenueView("the-lexi", "The Lexi")
	flush(t, tr)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{models.EventVenueView}, delivered)
	assert.Equal(t, 1, recorded.FilterMessage("failed to send analytics event").Len())
	assert.Equal(t, 1, recorded.FilterMessage("analytics sender panicked").Len())
}

func TestEmit_WireRecord(t *testing.T) {
	tr, sender, clock := newTestTracker(t)

	tr.StartPageView("screenings")
	clock.Advance(750 * time.Millisecond)
	tr.TrackSort("date", "asc")
	flush(t, tr)

	events := sender.Named(models.EventSort)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, tr.SessionID(), e.SessionID)
	assert.Equal(t, "screenings", e.Page)
	assert.Equal(t, "test-agent", e.UserAgent)
	assert.Equal(t, "https://example.org", e.Referrer)
	assert.Equal(t, clock.Now(), e.Timestamp)
	assert.Equal(t, int64(750), e.Properties["pageLoadTime"])
	assert.Equal(t, "date", e.Properties["sortField"])
}

func TestVisibilityChanged(t *testing.T) {
	tr, _, clock := newTestTracker(t)

	tr.StartPageView("venues/the-lexi")
	clock.Advance(4 * time.Second)
	tr.VisibilityChanged(true)
	clock.Advance(time.Hour)
	tr.VisibilityChanged(false)
	clock.Advance(time.Second)
	tr.EndPageView()

	pages := tr.Journey().Pages
	require.Len(t, pages, 2)
	assert.Equal(t, int64(4000), pages[0].TimeSpent)
	assert.Equal(t, "venues/the-lexi", pages[1].Page)
	assert.Equal(t, int64(1000), pages[1].TimeSpent)
}

func TestEnd_EmitsSessionSummaryOnce(t *testing.T) {
	tr, sender, clock := newTestTracker(t)

	tr.StartPageView("home")
	tr.TrackSearch("kurosawa", 7, map[string]string{"decade": "1950s"})
	clock.Advance(10 * time.Second)
	tr.TrackCrossLink("home", "films/ran", "film")

	require.NoError(t, tr.End(context.Background()))
	require.NoError(t, tr.End(context.Background()))

	journey := tr.Journey()
	require.NotNil(t, journey.EndTime)
	assert.Equal(t, clock.Now(), *journey.EndTime)
	assert.Equal(t, int64(10000), journey.Pages[0].TimeSpent)

	ends := sender.Named(models.EventSessionEnd)
	require.Len(t, ends, 1)
	props := ends[0].Properties
	assert.Equal(t, int64(10000), props["sessionDuration"])
	assert.Equal(t, 1, props["pagesVisited"])
	assert.Equal(t, 1, props["searchCount"])
	assert.Equal(t, 1, props["crossLinkCount"])
}

func TestEnd_RespectsContext(t *testing.T) {
	release := make(chan struct{})
	blocking := SenderFunc(func(context.Context, models.AnalyticsEvent) error {
		<-release
		return nil
	})
	tr := New(blocking)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tr.End(ctx), context.DeadlineExceeded)
}

func TestScenario_FilmToDirectorCrossLink(t *testing.T) {
	tr, sender, clock := newTestTracker(t)

	tr.StartPageView("films/amelie")
	clock.Advance(12 * time.Second)
	tr.TrackCrossLink("films/amelie", "people/jean-pierre-jeunet", "person")
	tr.EndPageView()
	flush(t, tr)

	journey := tr.Journey()
	require.Len(t, journey.Pages, 1)
	assert.Equal(t, "films/amelie", journey.Pages[0].Page)
	assert.GreaterOrEqual(t, journey.Pages[0].TimeSpent, int64(0))

	require.Len(t, journey.CrossLinks, 1)
	link := journey.CrossLinks[0]
	assert.Equal(t, "films/amelie", link.From)
	assert.Equal(t, "people/jean-pierre-jeunet", link.To)
	assert.Equal(t, "person", link.Type)

	assert.Len(t, sender.Named(models.EventCrossLink), 1)
}

func TestScenario_TwoSearchesInOrder(t *testing.T) {
	tr, sender, _ := newTestTracker(t)

	tr.TrackSearch("cinema paradiso", 3, nil)
	tr.TrackSearch("amelie", 1, nil)
	flush(t, tr)

	searches := tr.Journey().Searches
	require.Len(t, searches, 2)
	assert.Equal(t, "cinema paradiso", searches[0].Query)
	assert.Equal(t, 3, searches[0].Results)
	assert.Equal(t, "amelie", searches[1].Query)
	assert.Equal(t, 1, searches[1].Results)
	assert.Len(t, sender.Named(models.EventSearch), 2)
}
