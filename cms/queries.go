package cms

// GROQ projections shared by the queries below.
const (
	personRefProjection = `{name, "slug": slug.current, role}`
	filmRefProjection   = `{_id, title, "slug": slug.current, releaseYear, poster}`
	screeningProjection = `{
		_id, startsAt, pricePence, capacity, soldOut, notes,
		"film": film->` + filmRefProjection + `,
		"venue": venue->{name, "slug": slug.current},
		"introducedBy": introducedBy->` + personRefProjection + `
	}`
)

const (
	filmsQuery = `*[_type == "film"] | order(title asc) {
		_id, title, "slug": slug.current, releaseYear, runtime, poster,
		"directors": directors[]->` + personRefProjection + `,
		"genres": genres[]->title
	}`

	filmBySlugQuery = `*[_type == "film" && slug.current == $slug][0] {
		_id, title, "slug": slug.current, releaseYear, runtime, tmdbId, synopsis, poster,
		language, country, certificate,
		"directors": directors[]->` + personRefProjection + `,
		"cast": cast[]->` + personRefProjection + `,
		"genres": genres[]->title,
		"screenings": *[_type == "screening" && references(^._id) && startsAt >= now()] | order(startsAt asc) ` + screeningProjection + `
	}`

	personBySlugQuery = `*[_type == "person" && slug.current == $slug][0] {
		_id, name, "slug": slug.current, role, bio, portrait,
		"featuredWorks": featuredWorks[]->` + filmRefProjection + `
	}`

	venueBySlugQuery = `*[_type == "venue" && slug.current == $slug][0] {
		_id, name, "slug": slug.current, address, capacity, accessibility, website, photo,
		"upcoming": *[_type == "screening" && references(^._id) && startsAt >= now()] | order(startsAt asc) ` + screeningProjection + `,
		"history": *[_type == "screening" && references(^._id) && startsAt < now()] | order(startsAt desc) [0...20] ` + screeningProjection + `
	}`

	upcomingScreeningsQuery = `*[_type == "screening" && startsAt >= now()] | order(startsAt asc) [0...$limit] ` + screeningProjection

	pastScreeningsQuery = `*[_type == "screening" && startsAt < now()] | order(startsAt desc) [$offset...$end] ` + screeningProjection

	screeningByIDQuery = `*[_type == "screening" && _id == $id][0] ` + screeningProjection

	pageBySlugQuery = `*[_type == "page" && slug.current == $slug][0] {
		_id, title, "slug": slug.current, body, heroImage,
		"featuredScreenings": featuredScreenings[]->` + screeningProjection + `
	}`
)
