package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"filmsociety/api/tracker"
)

var sections = []string{"home", "films", "screenings", "archive", "membership"}

var crossLinkTargets = map[tracker.PageType]string{
	tracker.PagePerson:    "person",
	tracker.PageVenue:     "venue",
	tracker.PageFilm:      "film",
	tracker.PageScreening: "screening",
}

// simulator makes the navigation choices of one visitor.
type simulator struct {
	f        *gofakeit.Faker
	maxDwell time.Duration
	sleep    func(time.Duration)
}

func newSimulator(f *gofakeit.Faker, maxDwell time.Duration, sleep func(time.Duration)) *simulator {
	return &simulator{f: f, maxDwell: maxDwell, sleep: sleep}
}

func (s *simulator) referrer() string {
	if s.f.Bool() {
		return ""
	}
	return s.f.URL()
}

// run walks steps pages starting from home and returns how many pages were
// viewed.
func (s *simulator) run(tr *tracker.Tracker, steps int) int {
	spans := tr.Spans()
	current := tracker.PageRef{Type: tracker.PageSection, Slug: "home"}
	viewed := 0

	for step := 0; step < steps; step++ {
		end, err := tr.ViewPage(current)
		if err != nil {
			continue
		}
		viewed++

		spans.Start(current.Path(), tracker.KindAPICall)
		s.dwell()
		spans.End(current.Path())

		s.interact(tr, current)
		if s.f.IntRange(0, 9) == 0 {
			// Visitor switches tabs and comes back.
			tr.VisibilityChanged(true)
			s.dwell()
			tr.VisibilityChanged(false)
		}

		next := s.nextPage(current)
		if next.Type != tracker.PageSection && current.Type != next.Type {
			tr.TrackCrossLink(current.Path(), next.Path(), crossLinkTargets[next.Type])
		}
		end()
		current = next
	}
	return viewed
}

func (s *simulator) dwell() {
	if s.maxDwell <= 0 {
		return
	}
	maxMs := int(s.maxDwell / time.Millisecond)
	s.sleep(time.Duration(s.f.IntRange(maxMs/10, maxMs)) * time.Millisecond)
}

// interact fires the page-specific events a visitor would trigger.
func (s *simulator) interact(tr *tracker.Tracker, page tracker.PageRef) {
	switch {
	case page.Type == tracker.PageSection && page.Slug == "films":
		query := strings.ToLower(s.f.MovieName())
		results := s.f.IntRange(0, 12)
		var filters map[string]string
		if s.f.Bool() {
			filters = map[string]string{"genre": s.f.MovieGenre()}
		}
		tr.TrackSearch(query, results, filters)
		if filters != nil {
			tr.TrackFilter("genre", filters["genre"], results)
		}
		tr.TrackSort(s.f.RandomString([]string{"title", "year"}), "asc")
	case page.Type == tracker.PageSection && page.Slug == "archive":
		tr.TrackPagination(s.f.IntRange(1, 6), 6)
	case page.Type == tracker.PagePerson:
		if s.f.Bool() {
			tr.TrackFeaturedWorkClick(page.Slug, slugify(s.f.MovieName()))
		}
	case page.Type == tracker.PageVenue:
		if s.f.Bool() {
			tr.TrackScreeningHistoryClick(page.Slug, s.f.UUID())
		}
	case page.Type == tracker.PageFilm:
		spans := tr.Spans()
		spans.Start("poster", tracker.KindImageLoad)
		spans.End("poster")
		tr.TrackRelatedContentClick(page.Slug, slugify(s.f.MovieName()), "film")
	}
	tr.TrackPageLoadTime(page.Path(), time.Duration(s.f.IntRange(80, 1500))*time.Millisecond)
}

func (s *simulator) nextPage(from tracker.PageRef) tracker.PageRef {
	switch s.f.IntRange(0, 9) {
	case 0, 1, 2:
		title := s.f.MovieName()
		return tracker.PageRef{Type: tracker.PageFilm, Slug: slugify(title), Name: title}
	case 3, 4:
		name := s.f.Name()
		return tracker.PageRef{Type: tracker.PagePerson, Slug: slugify(name), Name: name}
	case 5:
		name := s.f.Company() + " Cinema"
		return tracker.PageRef{Type: tracker.PageVenue, Slug: slugify(name), Name: name}
	case 6:
		return tracker.PageRef{Type: tracker.PageScreening, Slug: s.f.UUID(), Name: s.f.MovieName()}
	default:
		section := s.f.RandomString(sections)
		if section == from.Slug {
			section = "home"
		}
		return tracker.PageRef{Type: tracker.PageSection, Slug: section}
	}
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return fmt.Sprintf("untitled-%d", len(s))
	}
	return out
}
