package tmdb

import "sort"

type Movie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Tagline     string  `json:"tagline"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
	Runtime     int     `json:"runtime"`
	PosterPath  string  `json:"poster_path"`
	VoteAverage float64 `json:"vote_average"`
	Genres      []Genre `json:"genres"`
	Credits     Credits `json:"credits"`
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

type CastMember struct {
	Name      string `json:"name"`
	Character string `json:"character"`
	Order     int    `json:"order"`
}

type CrewMember struct {
	Name       string `json:"name"`
	Job        string `json:"job"`
	Department string `json:"department"`
}

func (m *Movie) Directors() []string {
	var names []string
	for _, c := range m.Credits.Crew {
		if c.Job == "Director" {
			names = append(names, c.Name)
		}
	}
	return names
}

// TopCast returns up to n cast members in billing order.
func (m *Movie) TopCast(n int) []CastMember {
	cast := make([]CastMember, len(m.Credits.Cast))
	copy(cast, m.Credits.Cast)
	sort.SliceStable(cast, func(i, j int) bool { return cast[i].Order < cast[j].Order })
	if n >= 0 && n < len(cast) {
		cast = cast[:n]
	}
	return cast
}

// Year is the release year, or "" when the date is unknown.
func (m *Movie) Year() string {
	if len(m.ReleaseDate) < 4 {
		return ""
	}
	return m.ReleaseDate[:4]
}
