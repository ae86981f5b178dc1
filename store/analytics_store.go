package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"filmsociety/api/logger"
	"filmsociety/api/models"
	"filmsociety/api/utils"
)

const analyticsSchema = `
	CREATE TABLE IF NOT EXISTS analytics_events (
		event_id          UUID,
		event             LowCardinality(String),
		session_id        String,
		timestamp         DateTime64(3, 'UTC'),
		page              String,
		referrer          String,
		user_agent        String,
		ip_address        String,
		page_load_time_ms Int64,
		properties        String
	) ENGINE = MergeTree
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (event, timestamp)
`

// pageViewEvents are the events that count as a page being viewed.
const pageViewEvents = `('page_view', 'person_view', 'venue_view', 'film_view', 'screening_view')`

type AnalyticsStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewAnalyticsStore(db *sql.DB, l *zap.Logger) *AnalyticsStore {
	return &AnalyticsStore{db: db, logger: logger.OrNop(l).Named("analytics_store")}
}

func (s *AnalyticsStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, analyticsSchema); err != nil {
		return fmt.Errorf("failed to create analytics_events table: %w", err)
	}
	return nil
}

// InsertEvents writes events as one batch. The ClickHouse driver sends all
// rows prepared inside a transaction as a single block on commit.
func (s *AnalyticsStore) InsertEvents(ctx context.Context, events []models.AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO analytics_events (
			event_id, event, session_id, timestamp, page, referrer, user_agent,
			ip_address, page_load_time_ms, properties
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}
	defer stmt.Close()

	for _, event := range events {
		props, err := json.Marshal(event.Properties)
		if err != nil {
			s.logger.Warn("dropping event with unencodable properties",
				zap.String("event_id", event.EventID), zap.Error(err))
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			event.EventID,
			event.Event,
			event.SessionID,
			event.Timestamp.UTC(),
			event.Page,
			event.Referrer,
			event.UserAgent,
			event.IPAddress,
			event.PageLoadTime(),
			string(props),
		); err != nil {
			return fmt.Errorf("failed to append event %s to batch: %w", event.EventID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	s.logger.Debug("inserted analytics events", zap.Int("count", len(events)))
	return nil
}

func (s *AnalyticsStore) EventCountsOverTime(ctx context.Context, interval string, start, end time.Time, eventFilter string) ([]models.EventCountByTime, error) {
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	args := []any{start, end}
	selectCols := fmt.Sprintf("toStartOf%s(timestamp) AS time_bucket, count() AS total_events", interval)
	groupByCols := "time_bucket"
	whereClause := "WHERE timestamp >= ? AND timestamp <= ?"
	orderByCols := "time_bucket ASC"
	filtering := eventFilter != ""

	if filtering {
		selectCols += ", event"
		groupByCols += ", event"
		whereClause += " AND event = ?"
		args = append(args, eventFilter)
		orderByCols += ", event ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM analytics_events
		%s
		GROUP BY %s
		ORDER BY %s
	`, selectCols, whereClause, groupByCols, orderByCols)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query event counts over time: %w", err)
	}
	defer rows.Close()

	results := []models.EventCountByTime{}
	for rows.Next() {
		var r models.EventCountByTime
		if filtering {
			var event string
			if err := rows.Scan(&r.Time, &r.Count, &event); err != nil {
				return nil, fmt.Errorf("failed to scan event count row: %w", err)
			}
			r.Event = &event
		} else if err := rows.Scan(&r.Time, &r.Count); err != nil {
			return nil, fmt.Errorf("failed to scan event count row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during event counts over time query: %w", err)
	}
	return results, nil
}

func (s *AnalyticsStore) TopPages(ctx context.Context, start, end time.Time, limit uint64) ([]models.TopPathResult, error) {
	if limit == 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT page, count() AS view_count
		FROM analytics_events
		WHERE event IN `+pageViewEvents+` AND timestamp >= ? AND timestamp <= ?
		GROUP BY page
		ORDER BY view_count DESC
		LIMIT ?
	`, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top pages: %w", err)
	}
	defer rows.Close()

	results := []models.TopPathResult{}
	for rows.Next() {
		var r models.TopPathResult
		if err := rows.Scan(&r.PagePath, &r.Count); err != nil {
			return nil, fmt.Errorf("failed to scan top page row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for top pages: %w", err)
	}
	return results, nil
}

func (s *AnalyticsStore) Overview(ctx context.Context, start, end time.Time) (*models.Overview, error) {
	var o models.Overview
	err := s.db.QueryRowContext(ctx, `
		SELECT
			count(),
			uniqExact(session_id),
			countIf(event IN `+pageViewEvents+`),
			countIf(event = 'search_query'),
			countIf(event = 'cross_link_click'),
			avgIf(JSONExtractInt(properties, 'sessionDuration'), event = 'session_end')
		FROM analytics_events
		WHERE timestamp >= ? AND timestamp <= ?
	`, start, end).Scan(
		&o.TotalEvents,
		&o.UniqueSessions,
		&o.PageViews,
		&o.Searches,
		&o.CrossLinkClicks,
		&o.AvgSessionDuration,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query overview: %w", err)
	}
	// avgIf over no rows is NaN, which JSON cannot carry.
	if math.IsNaN(o.AvgSessionDuration) {
		o.AvgSessionDuration = 0
	}
	return &o, nil
}

func (s *AnalyticsStore) PopularPeople(ctx context.Context, start, end time.Time, limit uint64) ([]models.PopularItem, error) {
	return s.popular(ctx, models.EventPersonView, "personSlug", "personName", start, end, limit)
}

func (s *AnalyticsStore) PopularVenues(ctx context.Context, start, end time.Time, limit uint64) ([]models.PopularItem, error) {
	return s.popular(ctx, models.EventVenueView, "venueSlug", "venueName", start, end, limit)
}

func (s *AnalyticsStore) PopularFilms(ctx context.Context, start, end time.Time, limit uint64) ([]models.PopularItem, error) {
	return s.popular(ctx, models.EventFilmView, "filmSlug", "filmTitle", start, end, limit)
}

func (s *AnalyticsStore) popular(ctx context.Context, event, slugKey, nameKey string, start, end time.Time, limit uint64) ([]models.PopularItem, error) {
	if limit == 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			JSONExtractString(properties, ?) AS slug,
			any(JSONExtractString(properties, ?)) AS name,
			count() AS views
		FROM analytics_events
		WHERE event = ? AND timestamp >= ? AND timestamp <= ?
		GROUP BY slug
		HAVING slug != ''
		ORDER BY views DESC
		LIMIT ?
	`, slugKey, nameKey, event, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query popular %s: %w", event, err)
	}
	defer rows.Close()

	results := []models.PopularItem{}
	for rows.Next() {
		var r models.PopularItem
		if err := rows.Scan(&r.Slug, &r.Name, &r.Views); err != nil {
			return nil, fmt.Errorf("failed to scan popular %s row: %w", event, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for popular %s: %w", event, err)
	}
	return results, nil
}

func (s *AnalyticsStore) SearchInsights(ctx context.Context, start, end time.Time, limit uint64) (*models.SearchInsights, error) {
	if limit == 0 {
		limit = 10
	}

	insights := &models.SearchInsights{}
	err := s.db.QueryRowContext(ctx, `
		SELECT count()
		FROM analytics_events
		WHERE event = 'search_query' AND timestamp >= ? AND timestamp <= ?
	`, start, end).Scan(&insights.TotalSearches)
	if err != nil {
		return nil, fmt.Errorf("failed to count searches: %w", err)
	}

	if insights.TopQueries, err = s.searchTerms(ctx, "", start, end, limit); err != nil {
		return nil, err
	}
	zeroOnly := "AND JSONExtractInt(properties, 'resultsCount') = 0"
	if insights.ZeroResultQueries, err = s.searchTerms(ctx, zeroOnly, start, end, limit); err != nil {
		return nil, err
	}
	return insights, nil
}

func (s *AnalyticsStore) searchTerms(ctx context.Context, extraWhere string, start, end time.Time, limit uint64) ([]models.SearchTerm, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			lower(trim(JSONExtractString(properties, 'query'))) AS q,
			count() AS searches,
			avg(JSONExtractInt(properties, 'resultsCount')) AS avg_results
		FROM analytics_events
		WHERE event = 'search_query' AND timestamp >= ? AND timestamp <= ? `+extraWhere+`
		GROUP BY q
		HAVING q != ''
		ORDER BY searches DESC
		LIMIT ?
	`, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query search terms: %w", err)
	}
	defer rows.Close()

	results := []models.SearchTerm{}
	for rows.Next() {
		var r models.SearchTerm
		if err := rows.Scan(&r.Query, &r.Count, &r.AvgResults); err != nil {
			return nil, fmt.Errorf("failed to scan search term row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for search terms: %w", err)
	}
	return results, nil
}

// PerformanceMetrics aggregates the timing events by name.
func (s *AnalyticsStore) PerformanceMetrics(ctx context.Context, start, end time.Time) ([]models.PerformanceMetric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event, count(), avg(ms), quantile(0.95)(ms)
		FROM (
			SELECT
				event,
				multiIf(
					event = 'api_response_time', JSONExtractInt(properties, 'responseTimeMs'),
					event = 'interaction_time', JSONExtractInt(properties, 'durationMs'),
					JSONExtractInt(properties, 'loadTimeMs')
				) AS ms
			FROM analytics_events
			WHERE event IN ('page_load_time', 'image_load_time', 'api_response_time', 'interaction_time')
				AND timestamp >= ? AND timestamp <= ?
		)
		GROUP BY event
		ORDER BY event
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query performance metrics: %w", err)
	}
	defer rows.Close()

	results := []models.PerformanceMetric{}
	for rows.Next() {
		var r models.PerformanceMetric
		if err := rows.Scan(&r.Event, &r.Count, &r.AvgMs, &r.P95Ms); err != nil {
			return nil, fmt.Errorf("failed to scan performance row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for performance metrics: %w", err)
	}
	return results, nil
}
