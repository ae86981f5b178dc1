package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmsociety/api/models"
)

func TestViewPage_DispatchesByType(t *testing.T) {
	cases := []struct {
		ref   PageRef
		path  string
		event string
		key   string
	}{
		{PageRef{Type: PageSection, Slug: "archive"}, "archive", models.EventPageView, "section"},
		{PageRef{Type: PagePerson, Slug: "agnes-varda", Name: "Agnès Varda"}, "people/agnes-varda", models.EventPersonView, "personSlug"},
		{PageRef{Type: PageVenue, Slug: "the-lexi", Name: "The Lexi"}, "venues/the-lexi", models.EventVenueView, "venueSlug"},
		{PageRef{Type: PageFilm, Slug: "amelie", Name: "Amélie"}, "films/amelie", models.EventFilmView, "filmSlug"},
		{PageRef{Type: PageScreening, Slug: "scr-42", Name: "Amélie"}, "screenings/scr-42", models.EventScreeningView, "screeningId"},
	}

	for _, tc := range cases {
		t.Run(tc.ref.Type.String(), func(t *testing.T) {
			tr, sender, clock := newTestTracker(t)

			end, err := tr.ViewPage(tc.ref)
			require.NoError(t, err)
			clock.Advance(2 * time.Second)
			end()
			flush(t, tr)

			pages := tr.Journey().Pages
			require.Len(t, pages, 1)
			assert.Equal(t, tc.path, pages[0].Page)
			assert.Equal(t, int64(2000), pages[0].TimeSpent)

			events := sender.Named(tc.event)
			require.Len(t, events, 1)
			assert.Equal(t, tc.path, events[0].Page)
			assert.Equal(t, tc.ref.Slug, events[0].Properties[tc.key])
		})
	}
}

func TestViewPage_RejectsBadRefs(t *testing.T) {
	tr, sender, _ := newTestTracker(t)

	_, err := tr.ViewPage(PageRef{Type: PageType(42), Slug: "x"})
	assert.ErrorIs(t, err, ErrUnknownPageType)

	_, err = tr.ViewPage(PageRef{Type: PageFilm})
	assert.ErrorIs(t, err, ErrEmptySlug)

	flush(t, tr)
	assert.Empty(t, tr.Journey().Pages)
	assert.Empty(t, sender.Events())
}

func TestViewPage_StaleEndIsNoop(t *testing.T) {
	tr, _, clock := newTestTracker(t)

	endFilm, err := tr.ViewPage(PageRef{Type: PageFilm, Slug: "amelie"})
	require.NoError(t, err)
	clock.Advance(time.Second)

	endPerson, err := tr.ViewPage(PageRef{Type: PagePerson, Slug: "audrey-tautou"})
	require.NoError(t, err)
	clock.Advance(5 * time.Second)

	endFilm()
	clock.Advance(time.Second)
	endPerson()
	endPerson()

	pages := tr.Journey().Pages
	require.Len(t, pages, 2)
	assert.Equal(t, int64(1000), pages[0].TimeSpent)
	assert.Equal(t, int64(6000), pages[1].TimeSpent)
}

func TestViewPage_EndClosesResumedView(t *testing.T) {
	tr, _, clock := newTestTracker(t)

	end, err := tr.ViewPage(PageRef{Type: PageFilm, Slug: "amelie"})
	require.NoError(t, err)
	clock.Advance(2 * time.Second)

	tr.VisibilityChanged(true)
	clock.Advance(time.Minute)
	tr.VisibilityChanged(false)
	clock.Advance(3 * time.Second)

	end()
	clock.Advance(10 * time.Second)
	tr.RecordInteraction("after-end")

	pages := tr.Journey().Pages
	require.Len(t, pages, 2)
	assert.Equal(t, "films/amelie", pages[1].Page)
	assert.Equal(t, int64(2000), pages[0].TimeSpent)
	assert.Equal(t, int64(3000), pages[1].TimeSpent)
	assert.Empty(t, pages[1].Interactions)
}

func TestViewPage_StaleEndSparesRevisitOfSamePage(t *testing.T) {
	tr, _, clock := newTestTracker(t)

	endFirst, err := tr.ViewPage(PageRef{Type: PageFilm, Slug: "amelie"})
	require.NoError(t, err)
	clock.Advance(time.Second)

	endSecond, err := tr.ViewPage(PageRef{Type: PageFilm, Slug: "amelie"})
	require.NoError(t, err)
	clock.Advance(time.Second)

	endFirst()
	clock.Advance(time.Second)
	endSecond()

	pages := tr.Journey().Pages
	require.Len(t, pages, 2)
	assert.Equal(t, int64(2000), pages[1].TimeSpent)
}

func TestSpans_OverlappingIDs(t *testing.T) {
	tr, sender, clock := newTestTracker(t)
	tr.StartPageView("films/amelie")
	spans := tr.Spans()

	spans.Start("poster.jpg", KindImageLoad)
	clock.Advance(100 * time.Millisecond)
	spans.Start("/api/screenings", KindAPICall)
	clock.Advance(200 * time.Millisecond)
	spans.Start("trailer", "video")
	assert.Equal(t, 3, spans.Open())

	d, ok := spans.End("poster.jpg")
	require.True(t, ok)
	assert.Equal(t, 300*time.Millisecond, d)

	clock.Advance(50 * time.Millisecond)
	d, ok = spans.End("/api/screenings")
	require.True(t, ok)
	assert.Equal(t, 250*time.Millisecond, d)

	d, ok = spans.End("trailer")
	require.True(t, ok)
	assert.Equal(t, 50*time.Millisecond, d)

	_, ok = spans.End("trailer")
	assert.False(t, ok)
	assert.Zero(t, spans.Open())

	flush(t, tr)
	require.Len(t, sender.Named(models.EventImageLoadTime), 1)
	require.Len(t, sender.Named(models.EventAPIResponseTime), 1)
	generic := sender.Named(models.EventInteractionTime)
	require.Len(t, generic, 1)
	assert.Equal(t, int64(50), generic[0].Properties["durationMs"])

	assert.Equal(t, []string{"poster.jpg", "/api/screenings", "trailer"}, tr.Journey().Pages[0].Interactions)
}

func TestSpans_RestartResetsStart(t *testing.T) {
	tr, _, clock := newTestTracker(t)
	spans := tr.Spans()

	spans.Start("search", "search")
	clock.Advance(time.Second)
	spans.Start("search", "search")
	clock.Advance(200 * time.Millisecond)

	d, ok := spans.End("search")
	require.True(t, ok)
	assert.Equal(t, 200*time.Millisecond, d)
}
