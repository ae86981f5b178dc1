package handlers

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"filmsociety/api/cms"
	"filmsociety/api/models"
	"filmsociety/api/payments"
	"filmsociety/api/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeAnalytics struct {
	mu        sync.Mutex
	inserted  [][]models.AnalyticsEvent
	insertErr error
	calls     []string
}

func (f *fakeAnalytics) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeAnalytics) InsertEvents(_ context.Context, events []models.AnalyticsEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, events)
	return nil
}

func (f *fakeAnalytics) EventCountsOverTime(_ context.Context, interval string, _, _ time.Time, event string) ([]models.EventCountByTime, error) {
	f.record("counts:" + interval + ":" + event)
	return []models.EventCountByTime{}, nil
}

func (f *fakeAnalytics) TopPages(context.Context, time.Time, time.Time, uint64) ([]models.TopPathResult, error) {
	f.record("top-pages")
	return []models.TopPathResult{{PagePath: "films", Count: 3}}, nil
}

func (f *fakeAnalytics) Overview(context.Context, time.Time, time.Time) (*models.Overview, error) {
	f.record("overview")
	return &models.Overview{TotalEvents: 12, UniqueSessions: 3}, nil
}

func (f *fakeAnalytics) PopularPeople(_ context.Context, _, _ time.Time, limit uint64) ([]models.PopularItem, error) {
	f.record("people")
	return []models.PopularItem{{Slug: "agnes-varda", Name: "Agnès Varda", Views: limit}}, nil
}

func (f *fakeAnalytics) PopularVenues(context.Context, time.Time, time.Time, uint64) ([]models.PopularItem, error) {
	f.record("venues")
	return []models.PopularItem{}, nil
}

func (f *fakeAnalytics) PopularFilms(context.Context, time.Time, time.Time, uint64) ([]models.PopularItem, error) {
	f.record("films")
	return []models.PopularItem{}, nil
}

func (f *fakeAnalytics) SearchInsights(context.Context, time.Time, time.Time, uint64) (*models.SearchInsights, error) {
	f.record("search")
	return &models.SearchInsights{TotalSearches: 4}, nil
}

func (f *fakeAnalytics) PerformanceMetrics(context.Context, time.Time, time.Time) ([]models.PerformanceMetric, error) {
	f.record("performance")
	return []models.PerformanceMetric{}, nil
}

type fakeMembers struct {
	byEmail   map[string]*models.Member
	created   []*models.Member
	paid      []string
	createErr error
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{byEmail: map[string]*models.Member{}}
}

func (f *fakeMembers) CreateMember(_ context.Context, m *models.Member) (*models.Member, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	created := *m
	created.ID = len(f.created) + 1
	f.created = append(f.created, &created)
	f.byEmail[m.Email] = &created
	return &created, nil
}

func (f *fakeMembers) GetMemberByEmail(_ context.Context, email string) (*models.Member, error) {
	if m, ok := f.byEmail[email]; ok {
		return m, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeMembers) MarkMemberPaid(_ context.Context, intentID string) error {
	f.paid = append(f.paid, intentID)
	return nil
}

type fakeTickets struct {
	sold     int
	created  []models.Ticket
	paid     []string
	released []string
}

func (f *fakeTickets) ReserveTickets(_ context.Context, capacity int, tickets []models.Ticket) error {
	held := f.sold + len(f.created)
	if capacity > 0 && held+len(tickets) > capacity {
		return &store.CapacityError{Remaining: max(capacity-held, 0)}
	}
	f.created = append(f.created, tickets...)
	return nil
}

func (f *fakeTickets) CountSold(context.Context, string) (int, error) {
	return f.sold, nil
}

func (f *fakeTickets) MarkTicketsPaid(_ context.Context, intentID string) (int64, error) {
	f.paid = append(f.paid, intentID)
	return 1, nil
}

func (f *fakeTickets) ReleaseTickets(_ context.Context, intentID string) (int64, error) {
	f.released = append(f.released, intentID)
	return 1, nil
}

type fakeScreenings map[string]*cms.Screening

func (f fakeScreenings) ScreeningByID(_ context.Context, id string) (*cms.Screening, error) {
	if s, ok := f[id]; ok {
		return s, nil
	}
	return nil, cms.ErrNotFound
}

type fakePayments struct {
	requests []payments.IntentRequest
	err      error
}

func (f *fakePayments) CreatePaymentIntent(_ context.Context, req payments.IntentRequest) (*payments.Intent, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &payments.Intent{
		ID:           "pi_test",
		ClientSecret: "pi_test_secret",
		AmountPence:  req.AmountPence,
		Currency:     "gbp",
	}, nil
}
