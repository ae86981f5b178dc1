package models

// SlugURI binds the :slug route parameter of content pages.
type SlugURI struct {
	Slug string `uri:"slug" binding:"required,slug"`
}
