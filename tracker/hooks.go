package tracker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrUnknownPageType = errors.New("unknown page type")
	ErrEmptySlug       = errors.New("page reference has no slug")
)

// PageType selects which content-specific event a page view emits.
type PageType int

const (
	PageSection PageType = iota + 1
	PagePerson
	PageVenue
	PageFilm
	PageScreening
)

func (p PageType) String() string {
	switch p {
	case PageSection:
		return "section"
	case PagePerson:
		return "person"
	case PageVenue:
		return "venue"
	case PageFilm:
		return "film"
	case PageScreening:
		return "screening"
	default:
		return fmt.Sprintf("PageType(%d)", int(p))
	}
}

// PageRef identifies a rendered page. For sections Slug is the section
// name; Name is the display title of the document, if any.
type PageRef struct {
	Type PageType
	Slug string
	Name string
}

// Path is the page identifier recorded in the journey.
func (r PageRef) Path() string {
	switch r.Type {
	case PagePerson:
		return "people/" + r.Slug
	case PageVenue:
		return "venues/" + r.Slug
	case PageFilm:
		return "films/" + r.Slug
	case PageScreening:
		return "screenings/" + r.Slug
	default:
		return r.Slug
	}
}

// ViewPage starts a page view for ref, emits the matching content event and
// returns the function that ends the view. The returned function also ends
// the view resumed after the tab was hidden and shown again, and is a no-op
// if another page has been started since.
func (t *Tracker) ViewPage(ref PageRef) (end func(), err error) {
	if ref.Slug == "" {
		return nil, ErrEmptySlug
	}

	var track func()
	switch ref.Type {
	case PageSection:
		track = func() { t.TrackPageView(ref.Slug) }
	case PagePerson:
		track = func() { t.TrackPersonView(ref.Slug, ref.Name) }
	case PageVenue:
		track = func() { t.TrackVenueView(ref.Slug, ref.Name) }
	case PageFilm:
		track = func() { t.TrackFilmView(ref.Slug, ref.Name) }
	case PageScreening:
		track = func() { t.TrackScreeningView(ref.Slug, ref.Name) }
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPageType, ref.Type)
	}

	t.mu.Lock()
	nav := t.startLocked(ref.Path(), false)
	t.mu.Unlock()

	track()

	var once sync.Once
	return func() {
		once.Do(func() { t.endIfOpen(nav) })
	}, nil
}

// InteractionKind routes a finished span to a tracking call.
type InteractionKind string

const (
	KindImageLoad InteractionKind = "image_load"
	KindAPICall   InteractionKind = "api_call"
)

// Spans times named interactions. Any number of spans may be open at once;
// each is keyed by its id.
type Spans struct {
	t    *Tracker
	mu   sync.Mutex
	open map[string]span
}

type span struct {
	kind  InteractionKind
	start time.Time
}

func (t *Tracker) Spans() *Spans {
	return &Spans{t: t, open: make(map[string]span)}
}

// Start opens span id. Starting an id that is already open restarts it.
func (s *Spans) Start(id string, kind InteractionKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open[id] = span{kind: kind, start: s.t.now()}
}

// End closes span id and reports its duration. ok is false if id was not open.
func (s *Spans) End(id string) (d time.Duration, ok bool) {
	s.mu.Lock()
	sp, ok := s.open[id]
	if ok {
		delete(s.open, id)
	}
	s.mu.Unlock()
	if !ok {
		return 0, false
	}

	d = s.t.now().Sub(sp.start)
	switch sp.kind {
	case KindImageLoad:
		s.t.TrackImageLoadTime(id, d)
	case KindAPICall:
		s.t.TrackAPIResponseTime(id, d, 0)
	default:
		s.t.TrackInteraction(id, d)
	}
	s.t.RecordInteraction(id)
	return d, true
}

// Open returns the number of spans still running.
func (s *Spans) Open() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}
