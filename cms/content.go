package cms

import (
	"context"
	"fmt"
)

func (c *Client) Films(ctx context.Context) ([]Film, error) {
	var films []Film
	if err := c.Query(ctx, filmsQuery, nil, &films); err != nil {
		return nil, fmt.Errorf("listing films: %w", err)
	}
	return films, nil
}

func (c *Client) FilmBySlug(ctx context.Context, slug string) (*Film, error) {
	return one[Film](ctx, c, filmBySlugQuery, map[string]any{"slug": slug})
}

func (c *Client) PersonBySlug(ctx context.Context, slug string) (*Person, error) {
	return one[Person](ctx, c, personBySlugQuery, map[string]any{"slug": slug})
}

func (c *Client) VenueBySlug(ctx context.Context, slug string) (*Venue, error) {
	return one[Venue](ctx, c, venueBySlugQuery, map[string]any{"slug": slug})
}

func (c *Client) ScreeningByID(ctx context.Context, id string) (*Screening, error) {
	return one[Screening](ctx, c, screeningByIDQuery, map[string]any{"id": id})
}

func (c *Client) PageBySlug(ctx context.Context, slug string) (*Page, error) {
	return one[Page](ctx, c, pageBySlugQuery, map[string]any{"slug": slug})
}

// HomePage is the page document with slug "home".
func (c *Client) HomePage(ctx context.Context) (*Page, error) {
	return c.PageBySlug(ctx, "home")
}

func (c *Client) UpcomingScreenings(ctx context.Context, limit int) ([]Screening, error) {
	if limit <= 0 {
		limit = 50
	}
	var screenings []Screening
	if err := c.Query(ctx, upcomingScreeningsQuery, map[string]any{"limit": limit}, &screenings); err != nil {
		return nil, fmt.Errorf("listing upcoming screenings: %w", err)
	}
	return screenings, nil
}

// Archive paging bounds; larger values are clamped.
const (
	MaxArchivePage    = 10000
	maxArchivePerPage = 100
)

// PastScreenings returns one archive page, newest first. page is 1-based.
func (c *Client) PastScreenings(ctx context.Context, page, perPage int) ([]Screening, error) {
	page = min(max(page, 1), MaxArchivePage)
	if perPage <= 0 {
		perPage = 24
	}
	perPage = min(perPage, maxArchivePerPage)
	offset := (page - 1) * perPage
	var screenings []Screening
	params := map[string]any{"offset": offset, "end": offset + perPage}
	if err := c.Query(ctx, pastScreeningsQuery, params, &screenings); err != nil {
		return nil, fmt.Errorf("listing past screenings: %w", err)
	}
	return screenings, nil
}

func one[T any](ctx context.Context, c *Client, query string, params map[string]any) (*T, error) {
	var doc *T
	if err := c.Query(ctx, query, params, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}
