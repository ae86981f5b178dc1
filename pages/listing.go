package pages

import (
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"filmsociety/api/cms"
)

func filterFilms(films []cms.Film, query, genre string) []cms.Film {
	query = strings.ToLower(query)
	out := make([]cms.Film, 0, len(films))
	for _, f := range films {
		if genre != "" && !containsFold(f.Genres, genre) {
			continue
		}
		if query != "" && !filmMatches(f, query) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func filmMatches(f cms.Film, query string) bool {
	if strings.Contains(strings.ToLower(f.Title), query) {
		return true
	}
	for _, d := range f.Directors {
		if strings.Contains(strings.ToLower(d.Name), query) {
			return true
		}
	}
	return false
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

func sortFilms(films []cms.Film, by string) {
	switch by {
	case "year":
		sort.SliceStable(films, func(i, j int) bool { return films[i].ReleaseYear > films[j].ReleaseYear })
	default:
		sort.SliceStable(films, func(i, j int) bool {
			return strings.ToLower(films[i].Title) < strings.ToLower(films[j].Title)
		})
	}
}

func genresOf(films []cms.Film) []string {
	seen := map[string]bool{}
	var genres []string
	for _, f := range films {
		for _, g := range f.Genres {
			if !seen[g] {
				seen[g] = true
				genres = append(genres, g)
			}
		}
	}
	sort.Strings(genres)
	return genres
}

type monthGroup struct {
	Month      string
	Screenings []cms.Screening
}

// groupByMonth assumes screenings are already in start order.
func groupByMonth(screenings []cms.Screening) []monthGroup {
	var groups []monthGroup
	for _, s := range screenings {
		label := s.StartsAt.In(london).Format("January 2006")
		if n := len(groups); n > 0 && groups[n-1].Month == label {
			groups[n-1].Screenings = append(groups[n-1].Screenings, s)
			continue
		}
		groups = append(groups, monthGroup{Month: label, Screenings: []cms.Screening{s}})
	}
	return groups
}

var london = loadLocation("Europe/London")

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
