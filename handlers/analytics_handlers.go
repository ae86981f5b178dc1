package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"filmsociety/api/logger"
	"filmsociety/api/metrics"
	"filmsociety/api/models"
	"filmsociety/api/utils"
)

// maxIngestBody bounds a single POST /api/analytics body.
const maxIngestBody = 1 << 20

// AnalyticsRepository is the event store behind the analytics endpoints.
type AnalyticsRepository interface {
	InsertEvents(ctx context.Context, events []models.AnalyticsEvent) error
	EventCountsOverTime(ctx context.Context, interval string, start, end time.Time, eventFilter string) ([]models.EventCountByTime, error)
	TopPages(ctx context.Context, start, end time.Time, limit uint64) ([]models.TopPathResult, error)
	Overview(ctx context.Context, start, end time.Time) (*models.Overview, error)
	PopularPeople(ctx context.Context, start, end time.Time, limit uint64) ([]models.PopularItem, error)
	PopularVenues(ctx context.Context, start, end time.Time, limit uint64) ([]models.PopularItem, error)
	PopularFilms(ctx context.Context, start, end time.Time, limit uint64) ([]models.PopularItem, error)
	SearchInsights(ctx context.Context, start, end time.Time, limit uint64) (*models.SearchInsights, error)
	PerformanceMetrics(ctx context.Context, start, end time.Time) ([]models.PerformanceMetric, error)
}

type AnalyticsHandlers struct {
	store    AnalyticsRepository
	maxBatch int
	logger   *zap.Logger
	now      func() time.Time
}

func NewAnalyticsHandlers(s AnalyticsRepository, maxBatch int, l *zap.Logger) *AnalyticsHandlers {
	if maxBatch <= 0 {
		maxBatch = 100
	}
	return &AnalyticsHandlers{
		store:    s,
		maxBatch: maxBatch,
		logger:   logger.OrNop(l),
		now:      time.Now,
	}
}

// TrackEvent accepts one event object or an array of them.
func (h *AnalyticsHandlers) TrackEvent(c *gin.Context) {
	log := logger.FromGin(c, h.logger)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxIngestBody))
	if err != nil {
		metrics.IngestErrors.WithLabelValues("too_large").Inc()
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
		return
	}

	var events []models.AnalyticsEvent
	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		err = binding.JSON.BindBody(trimmed, &events)
	} else {
		var single models.AnalyticsEvent
		if err = binding.JSON.BindBody(trimmed, &single); err == nil {
			events = []models.AnalyticsEvent{single}
		}
	}
	if err != nil {
		metrics.IngestErrors.WithLabelValues("bind").Inc()
		log.Info("rejected analytics payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if len(events) == 0 {
		c.JSON(http.StatusAccepted, gin.H{"accepted": 0})
		return
	}
	if len(events) > h.maxBatch {
		metrics.IngestErrors.WithLabelValues("too_large").Inc()
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("Batch of %d events exceeds the limit of %d", len(events), h.maxBatch),
		})
		return
	}

	now := h.now().UTC()
	ip := c.ClientIP()
	for i := range events {
		e := &events[i]
		e.EventID = uuid.NewString()
		e.IPAddress = ip
		if e.Timestamp.IsZero() || e.Timestamp.After(now.Add(time.Hour)) {
			e.Timestamp = now
		}
		if e.UserAgent == "" {
			e.UserAgent = c.Request.UserAgent()
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	if err := h.store.InsertEvents(ctx, events); err != nil {
		metrics.IngestErrors.WithLabelValues("store").Inc()
		log.Error("failed to insert analytics events", zap.Int("count", len(events)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record analytics events"})
		return
	}

	for _, e := range events {
		metrics.EventsIngested.WithLabelValues(e.Event).Inc()
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": len(events)})
}

// Insight kinds served by GET /api/analytics?type=.
const (
	InsightOverview           = "overview"
	InsightPopularPeople      = "popular-people"
	InsightPopularVenues      = "popular-venues"
	InsightPopularFilms       = "popular-films"
	InsightSearchInsights     = "search-insights"
	InsightPerformanceMetrics = "performance-metrics"
)

var errUnknownInsight = errors.New("unknown insight type")

// GetInsights serves the dashboard's aggregate reads. The response carries
// the result under a key named after the requested type.
func (h *AnalyticsHandlers) GetInsights(c *gin.Context) {
	kind := c.Query("type")
	start, end, err := utils.ParseTimeRange(c.Query("start"), c.Query("end"), h.now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, err := utils.ParseLimit(c.Query("limit"), 10, 100)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	data, err := h.insight(ctx, kind, start, end, limit)
	if errors.Is(err, errUnknownInsight) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Unknown type %q", kind),
			"types": []string{
				InsightOverview, InsightPopularPeople, InsightPopularVenues,
				InsightPopularFilms, InsightSearchInsights, InsightPerformanceMetrics,
			},
		})
		return
	}
	if err != nil {
		logger.FromGin(c, h.logger).Error("failed to load insight", zap.String("type", kind), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve analytics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"type":  kind,
		"start": start.Format(time.RFC3339),
		"end":   end.Format(time.RFC3339),
		kind:    data,
	})
}

func (h *AnalyticsHandlers) insight(ctx context.Context, kind string, start, end time.Time, limit uint64) (any, error) {
	switch kind {
	case InsightOverview:
		return h.store.Overview(ctx, start, end)
	case InsightPopularPeople:
		return h.store.PopularPeople(ctx, start, end, limit)
	case InsightPopularVenues:
		return h.store.PopularVenues(ctx, start, end, limit)
	case InsightPopularFilms:
		return h.store.PopularFilms(ctx, start, end, limit)
	case InsightSearchInsights:
		return h.store.SearchInsights(ctx, start, end, limit)
	case InsightPerformanceMetrics:
		return h.store.PerformanceMetrics(ctx, start, end)
	default:
		return nil, errUnknownInsight
	}
}

func (h *AnalyticsHandlers) GetEventCountsOverTime(c *gin.Context) {
	interval := utils.NormalizeInterval(c.Query("interval"))
	if interval == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval query parameter is required (e.g. 'Day', 'Hour')"})
		return
	}
	if !utils.IsValidInterval(interval) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid interval %q", c.Query("interval"))})
		return
	}

	eventFilter := strings.TrimSpace(c.Query("event"))
	if eventFilter != "" && !models.IsKnownEvent(eventFilter) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown event %q", eventFilter)})
		return
	}

	start, end, err := utils.ParseTimeRange(c.Query("start"), c.Query("end"), h.now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.store.EventCountsOverTime(ctx, interval, start, end, eventFilter)
	if err != nil {
		logger.FromGin(c, h.logger).Error("failed to get event counts over time", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve event statistics"})
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *AnalyticsHandlers) GetTopPages(c *gin.Context) {
	start, end, err := utils.ParseTimeRange(c.Query("start"), c.Query("end"), h.now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, err := utils.ParseLimit(c.Query("limit"), 10, 100)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.store.TopPages(ctx, start, end, limit)
	if err != nil {
		logger.FromGin(c, h.logger).Error("failed to get top pages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve top pages statistics"})
		return
	}
	c.JSON(http.StatusOK, results)
}
