// Package pages renders the public site: one handler per route, each
// composing CMS documents and movie metadata into an HTML template.
// CMS and metadata failures degrade to placeholder content.
package pages

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"filmsociety/api/cms"
	"filmsociety/api/logger"
	"filmsociety/api/models"
	"filmsociety/api/tmdb"
)

// ContentSource is the CMS surface the pages read.
type ContentSource interface {
	Configured() bool
	Images() *cms.ImageBuilder
	HomePage(ctx context.Context) (*cms.Page, error)
	PageBySlug(ctx context.Context, slug string) (*cms.Page, error)
	Films(ctx context.Context) ([]cms.Film, error)
	FilmBySlug(ctx context.Context, slug string) (*cms.Film, error)
	PersonBySlug(ctx context.Context, slug string) (*cms.Person, error)
	VenueBySlug(ctx context.Context, slug string) (*cms.Venue, error)
	UpcomingScreenings(ctx context.Context, limit int) ([]cms.Screening, error)
	PastScreenings(ctx context.Context, page, perPage int) ([]cms.Screening, error)
}

// MetadataSource supplies optional film details; nil means unavailable.
type MetadataSource interface {
	Lookup(ctx context.Context, id int) *tmdb.Movie
}

const archivePerPage = 24

type Handlers struct {
	content  ContentSource
	metadata MetadataSource
	view     *renderer
	tiers    map[string]int64
	logger   *zap.Logger
}

func New(content ContentSource, metadata MetadataSource, tierPrices map[string]int64, l *zap.Logger) (*Handlers, error) {
	view, err := newRenderer(content.Images())
	if err != nil {
		return nil, err
	}
	return &Handlers{
		content:  content,
		metadata: metadata,
		view:     view,
		tiers:    tierPrices,
		logger:   logger.OrNop(l).Named("pages"),
	}, nil
}

func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Home)
	r.GET("/films", h.Films)
	r.GET("/films/:slug", h.Film)
	r.GET("/people/:slug", h.Person)
	r.GET("/venues/:slug", h.Venue)
	r.GET("/screenings", h.Screenings)
	r.GET("/archive", h.Archive)
	r.GET("/membership", h.Membership)
	r.GET("/pages/:slug", h.Page)
}

// NotFound renders the 404 page; use it as the router's NoRoute handler.
func (h *Handlers) NotFound(c *gin.Context) {
	h.view.render(c, http.StatusNotFound, "notfound", view{Title: "Page not found"})
}

// view is the data every template receives.
type view struct {
	Title     string
	PageType  string
	Slug      string
	Degraded  bool
	Data      any
	CMSActive bool
}

type homeData struct {
	Page     *cms.Page
	Upcoming []cms.Screening
	Fallback bool
}

func (h *Handlers) Home(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.content.Configured() {
		h.view.render(c, http.StatusOK, "home", view{
			Title:    "Film Society",
			PageType: "section",
			Slug:     "home",
			Data:     homeData{Page: fallbackHome, Fallback: true},
		})
		return
	}

	data := homeData{}
	degraded := false
	page, err := h.content.HomePage(ctx)
	switch {
	case err == nil:
		data.Page = page
	case errors.Is(err, cms.ErrNotFound):
		data.Page = fallbackHome
	default:
		h.warn(c, "home page query failed", err)
		data.Page = fallbackHome
		degraded = true
	}

	if data.Upcoming, err = h.content.UpcomingScreenings(ctx, 6); err != nil {
		h.warn(c, "upcoming screenings query failed", err)
		degraded = true
	}

	h.view.render(c, http.StatusOK, "home", view{
		Title: data.Page.Title, PageType: "section", Slug: "home",
		Degraded: degraded, Data: data, CMSActive: true,
	})
}

type filmsData struct {
	Films  []cms.Film
	Query  string
	Genre  string
	Sort   string
	Genres []string
	Total  int
}

// Films lists films, filtered by ?q= (title or director) and ?genre=,
// sorted by ?sort=title|year.
func (h *Handlers) Films(c *gin.Context) {
	films, err := h.content.Films(c.Request.Context())
	degraded := false
	if err != nil {
		h.warn(c, "films query failed", err)
		degraded = true
	}

	data := filmsData{
		Query:  strings.TrimSpace(c.Query("q")),
		Genre:  c.Query("genre"),
		Sort:   c.DefaultQuery("sort", "title"),
		Genres: genresOf(films),
		Total:  len(films),
	}
	data.Films = filterFilms(films, data.Query, data.Genre)
	sortFilms(data.Films, data.Sort)

	h.view.render(c, http.StatusOK, "films", view{
		Title: "Films", PageType: "section", Slug: "films",
		Degraded: degraded, Data: data, CMSActive: h.content.Configured(),
	})
}

type filmData struct {
	Film  *cms.Film
	Movie *tmdb.Movie
}

func (h *Handlers) Film(c *gin.Context) {
	slug, ok := h.slug(c)
	if !ok {
		return
	}
	film, ok := loadDoc(h, c, "film", func(ctx context.Context) (*cms.Film, error) {
		return h.content.FilmBySlug(ctx, slug)
	})
	if !ok {
		return
	}

	data := filmData{Film: film}
	if film.TMDBID > 0 && h.metadata != nil {
		data.Movie = h.metadata.Lookup(c.Request.Context(), film.TMDBID)
	}

	h.view.render(c, http.StatusOK, "film", view{
		Title: film.Title, PageType: "film", Slug: film.Slug, Data: data, CMSActive: true,
	})
}

func (h *Handlers) Person(c *gin.Context) {
	slug, ok := h.slug(c)
	if !ok {
		return
	}
	person, ok := loadDoc(h, c, "person", func(ctx context.Context) (*cms.Person, error) {
		return h.content.PersonBySlug(ctx, slug)
	})
	if !ok {
		return
	}
	h.view.render(c, http.StatusOK, "person", view{
		Title: person.Name, PageType: "person", Slug: person.Slug, Data: person, CMSActive: true,
	})
}

func (h *Handlers) Venue(c *gin.Context) {
	slug, ok := h.slug(c)
	if !ok {
		return
	}
	venue, ok := loadDoc(h, c, "venue", func(ctx context.Context) (*cms.Venue, error) {
		return h.content.VenueBySlug(ctx, slug)
	})
	if !ok {
		return
	}
	h.view.render(c, http.StatusOK, "venue", view{
		Title: venue.Name, PageType: "venue", Slug: venue.Slug, Data: venue, CMSActive: true,
	})
}

func (h *Handlers) Page(c *gin.Context) {
	slug, ok := h.slug(c)
	if !ok {
		return
	}
	page, ok := loadDoc(h, c, "page", func(ctx context.Context) (*cms.Page, error) {
		return h.content.PageBySlug(ctx, slug)
	})
	if !ok {
		return
	}
	h.view.render(c, http.StatusOK, "page", view{
		Title: page.Title, PageType: "section", Slug: page.Slug, Data: page, CMSActive: true,
	})
}

func (h *Handlers) Screenings(c *gin.Context) {
	screenings, err := h.content.UpcomingScreenings(c.Request.Context(), 100)
	degraded := false
	if err != nil {
		h.warn(c, "upcoming screenings query failed", err)
		degraded = true
	}
	h.view.render(c, http.StatusOK, "screenings", view{
		Title: "What's on", PageType: "section", Slug: "screenings",
		Degraded: degraded, Data: groupByMonth(screenings), CMSActive: h.content.Configured(),
	})
}

type archiveData struct {
	Screenings []cms.Screening
	Page       int
	PrevPage   int
	NextPage   int
}

func (h *Handlers) Archive(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	page = min(page, cms.MaxArchivePage)

	screenings, err := h.content.PastScreenings(c.Request.Context(), page, archivePerPage)
	degraded := false
	if err != nil {
		h.warn(c, "archive query failed", err)
		degraded = true
	}

	data := archiveData{Screenings: screenings, Page: page}
	if page > 1 {
		data.PrevPage = page - 1
	}
	if len(screenings) == archivePerPage && page < cms.MaxArchivePage {
		data.NextPage = page + 1
	}
	h.view.render(c, http.StatusOK, "archive", view{
		Title: "Archive", PageType: "section", Slug: "archive",
		Degraded: degraded, Data: data, CMSActive: h.content.Configured(),
	})
}

type tier struct {
	Name       string
	PricePence int64
}

func (h *Handlers) Membership(c *gin.Context) {
	tiers := make([]tier, 0, len(h.tiers))
	for name, price := range h.tiers {
		tiers = append(tiers, tier{Name: name, PricePence: price})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].PricePence < tiers[j].PricePence })

	h.view.render(c, http.StatusOK, "membership", view{
		Title: "Membership", PageType: "section", Slug: "membership", Data: tiers, CMSActive: h.content.Configured(),
	})
}

func (h *Handlers) slug(c *gin.Context) (string, bool) {
	var uri models.SlugURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.NotFound(c)
		return "", false
	}
	return uri.Slug, true
}

// loadDoc fetches one document, rendering 404 when it does not exist and
// the unavailable page when the CMS cannot be reached.
func loadDoc[T any](h *Handlers, c *gin.Context, kind string, fetch func(context.Context) (*T, error)) (*T, bool) {
	if !h.content.Configured() {
		h.NotFound(c)
		return nil, false
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 8*time.Second)
	defer cancel()

	doc, err := fetch(ctx)
	switch {
	case err == nil:
		return doc, true
	case errors.Is(err, cms.ErrNotFound):
		h.NotFound(c)
	default:
		h.warn(c, kind+" query failed", err)
		h.view.render(c, http.StatusServiceUnavailable, "unavailable", view{Title: "Temporarily unavailable", Degraded: true})
	}
	return nil, false
}

func (h *Handlers) warn(c *gin.Context, msg string, err error) {
	logger.FromGin(c, h.logger).Warn(msg, zap.Error(err))
}

var fallbackHome = &cms.Page{
	Title: "Film Society",
	Slug:  "home",
	Body: "## Cinema for everyone\n\n" +
		"We screen classic, world and independent films in venues across the city. " +
		"Our programme is being updated, please check back soon or " +
		"[become a member](/membership) to hear about new seasons first.",
}
