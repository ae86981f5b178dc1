package cms

import "time"

// Image is a CMS image field. Asset.Ref has the form
// image-<assetId>-<width>x<height>-<ext>.
type Image struct {
	Asset struct {
		Ref string `json:"_ref"`
	} `json:"asset"`
	Alt string `json:"alt,omitempty"`
}

// Ref returns the asset reference, tolerating a nil image.
func (i *Image) Ref() string {
	if i == nil {
		return ""
	}
	return i.Asset.Ref
}

type PersonRef struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Role string `json:"role,omitempty"`
}

type FilmRef struct {
	ID          string `json:"_id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	ReleaseYear int    `json:"releaseYear,omitempty"`
	Poster      *Image `json:"poster,omitempty"`
}

type VenueRef struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Film struct {
	ID          string      `json:"_id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	ReleaseYear int         `json:"releaseYear,omitempty"`
	Runtime     int         `json:"runtime,omitempty"`
	TMDBID      int         `json:"tmdbId,omitempty"`
	Synopsis    string      `json:"synopsis,omitempty"`
	Poster      *Image      `json:"poster,omitempty"`
	Directors   []PersonRef `json:"directors,omitempty"`
	Cast        []PersonRef `json:"cast,omitempty"`
	Genres      []string    `json:"genres,omitempty"`
	Language    string      `json:"language,omitempty"`
	Country     string      `json:"country,omitempty"`
	Certificate string      `json:"certificate,omitempty"`
	Screenings  []Screening `json:"screenings,omitempty"`
}

type Person struct {
	ID            string    `json:"_id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Role          string    `json:"role,omitempty"`
	Bio           string    `json:"bio,omitempty"`
	Portrait      *Image    `json:"portrait,omitempty"`
	FeaturedWorks []FilmRef `json:"featuredWorks,omitempty"`
}

type Venue struct {
	ID            string      `json:"_id"`
	Name          string      `json:"name"`
	Slug          string      `json:"slug"`
	Address       string      `json:"address"`
	Capacity      int         `json:"capacity,omitempty"`
	Accessibility string      `json:"accessibility,omitempty"`
	Website       string      `json:"website,omitempty"`
	Photo         *Image      `json:"photo,omitempty"`
	Upcoming      []Screening `json:"upcoming,omitempty"`
	History       []Screening `json:"history,omitempty"`
}

type Screening struct {
	ID           string     `json:"_id"`
	StartsAt     time.Time  `json:"startsAt"`
	PricePence   int64      `json:"pricePence"`
	Capacity     int        `json:"capacity,omitempty"`
	SoldOut      bool       `json:"soldOut,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	Film         FilmRef    `json:"film"`
	Venue        VenueRef   `json:"venue"`
	IntroducedBy *PersonRef `json:"introducedBy,omitempty"`
}

type Page struct {
	ID                 string      `json:"_id"`
	Title              string      `json:"title"`
	Slug               string      `json:"slug"`
	Body               string      `json:"body,omitempty"`
	HeroImage          *Image      `json:"heroImage,omitempty"`
	FeaturedScreenings []Screening `json:"featuredScreenings,omitempty"`
}
