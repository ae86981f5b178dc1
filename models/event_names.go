package models

// Event names carried in AnalyticsEvent.Event. The ingest endpoint rejects
// anything not listed here.
const (
	EventPageView              = "page_view"
	EventPersonView            = "person_view"
	EventVenueView             = "venue_view"
	EventFilmView              = "film_view"
	EventScreeningView         = "screening_view"
	EventSearch                = "search_query"
	EventFilter                = "filter_used"
	EventSort                  = "sort_used"
	EventPagination            = "pagination_used"
	EventCrossLink             = "cross_link_click"
	EventFeaturedWorkClick     = "featured_work_click"
	EventScreeningHistoryClick = "screening_history_click"
	EventRelatedContentClick   = "related_content_click"
	EventPageLoadTime          = "page_load_time"
	EventImageLoadTime         = "image_load_time"
	EventAPIResponseTime       = "api_response_time"
	EventInteractionTime       = "interaction_time"
	EventSessionEnd            = "session_end"
)

var knownEvents = map[string]bool{
	EventPageView:              true,
	EventPersonView:            true,
	EventVenueView:             true,
	EventFilmView:              true,
	EventScreeningView:         true,
	EventSearch:                true,
	EventFilter:                true,
	EventSort:                  true,
	EventPagination:            true,
	EventCrossLink:             true,
	EventFeaturedWorkClick:     true,
	EventScreeningHistoryClick: true,
	EventRelatedContentClick:   true,
	EventPageLoadTime:          true,
	EventImageLoadTime:         true,
	EventAPIResponseTime:       true,
	EventInteractionTime:       true,
	EventSessionEnd:            true,
}

// IsKnownEvent reports whether name is an event the tracker emits.
func IsKnownEvent(name string) bool {
	return knownEvents[name]
}
