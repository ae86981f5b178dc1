package tracker

import (
	"time"

	"filmsociety/api/models"
)

// TrackPageView records a view of a named site section (home, films, archive...).
func (t *Tracker) TrackPageView(section string) {
	t.emit(models.EventPageView, map[string]any{"section": section})
}

func (t *Tracker) TrackPersonView(slug, name string) {
	t.emit(models.EventPersonView, map[string]any{
		"personSlug": slug,
		"personName": name,
	})
}

func (t *Tracker) TrackVenueView(slug, name string) {
	t.emit(models.EventVenueView, map[string]any{
		"venueSlug": slug,
		"venueName": name,
	})
}

func (t *Tracker) TrackFilmView(slug, title string) {
	t.emit(models.EventFilmView, map[string]any{
		"filmSlug":  slug,
		"filmTitle": title,
	})
}

func (t *Tracker) TrackScreeningView(id, filmTitle string) {
	t.emit(models.EventScreeningView, map[string]any{
		"screeningId": id,
		"filmTitle":   filmTitle,
	})
}

// TrackSearch appends the search to the journey before emitting, so the
// record exists whether or not the send succeeds.
func (t *Tracker) TrackSearch(query string, results int, filters map[string]string) {
	t.mu.Lock()
	t.session.Searches = append(t.session.Searches, SearchQueryRecord{
		Query:     query,
		Timestamp: t.now(),
		Results:   results,
	})
	t.mu.Unlock()

	props := map[string]any{
		"query":        query,
		"resultsCount": results,
	}
	if len(filters) > 0 {
		props["filters"] = filters
	}
	t.emit(models.EventSearch, props)
}

func (t *Tracker) TrackFilter(filterType, value string, results int) {
	t.emit(models.EventFilter, map[string]any{
		"filterType":   filterType,
		"filterValue":  value,
		"resultsCount": results,
	})
}

func (t *Tracker) TrackSort(field, direction string) {
	t.emit(models.EventSort, map[string]any{
		"sortField":     field,
		"sortDirection": direction,
	})
}

func (t *Tracker) TrackPagination(page, totalPages int) {
	t.emit(models.EventPagination, map[string]any{
		"page":       page,
		"totalPages": totalPages,
	})
}

// TrackCrossLink records a jump between content types, e.g. film → director.
func (t *Tracker) TrackCrossLink(from, to, linkType string) {
	t.mu.Lock()
	t.session.CrossLinks = append(t.session.CrossLinks, CrossLinkClick{
		From:      from,
		To:        to,
		Type:      linkType,
		Timestamp: t.now(),
	})
	t.mu.Unlock()

	t.emit(models.EventCrossLink, map[string]any{
		"from":     from,
		"to":       to,
		"linkType": linkType,
	})
}

func (t *Tracker) TrackFeaturedWorkClick(personSlug, filmSlug string) {
	t.emit(models.EventFeaturedWorkClick, map[string]any{
		"personSlug": personSlug,
		"filmSlug":   filmSlug,
	})
}

func (t *Tracker) TrackScreeningHistoryClick(venueSlug, screeningID string) {
	t.emit(models.EventScreeningHistoryClick, map[string]any{
		"venueSlug":   venueSlug,
		"screeningId": screeningID,
	})
}

func (t *Tracker) TrackRelatedContentClick(source, target, contentType string) {
	t.emit(models.EventRelatedContentClick, map[string]any{
		"source":      source,
		"target":      target,
		"contentType": contentType,
	})
}

func (t *Tracker) TrackPageLoadTime(page string, d time.Duration) {
	t.emit(models.EventPageLoadTime, map[string]any{
		"loadedPage": page,
		"loadTimeMs": d.Milliseconds(),
	})
}

func (t *Tracker) TrackImageLoadTime(src string, d time.Duration) {
	t.emit(models.EventImageLoadTime, map[string]any{
		"imageSrc":   src,
		"loadTimeMs": d.Milliseconds(),
	})
}

// TrackAPIResponseTime records a backend call's latency. status 0 means unknown.
func (t *Tracker) TrackAPIResponseTime(endpoint string, d time.Duration, status int) {
	props := map[string]any{
		"endpoint":       endpoint,
		"responseTimeMs": d.Milliseconds(),
	}
	if status != 0 {
		props["status"] = status
	}
	t.emit(models.EventAPIResponseTime, props)
}

// TrackInteraction records a generic timed interaction.
func (t *Tracker) TrackInteraction(name string, d time.Duration) {
	t.emit(models.EventInteractionTime, map[string]any{
		"interaction": name,
		"durationMs":  d.Milliseconds(),
	})
}
