package pages

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"filmsociety/api/cms"
	"filmsociety/api/tmdb"
)

//go:embed templates/*.html
var templateFS embed.FS

// renderer holds one template set per page, each the shared layout plus
// the page's own file.
type renderer struct {
	pages map[string]*template.Template
}

func newRenderer(images *cms.ImageBuilder) (*renderer, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM, extension.Typographer))
	funcs := templateFuncs(images, md)

	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &renderer{pages: make(map[string]*template.Template)}
	for _, name := range names {
		page := strings.TrimSuffix(strings.TrimPrefix(name, "templates/"), ".html")
		if page == "layout" {
			continue
		}
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}
		r.pages[page] = tmpl
	}
	return r, nil
}

// render executes into a buffer first so a template error yields a clean
// 500 rather than a half-written page.
func (r *renderer) render(c *gin.Context, status int, page string, v view) {
	tmpl, ok := r.pages[page]
	if !ok {
		c.String(http.StatusInternalServerError, "template %s not found", page)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "failed to render page")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func templateFuncs(images *cms.ImageBuilder, md goldmark.Markdown) template.FuncMap {
	return template.FuncMap{
		"image": func(img *cms.Image, w, h int) string {
			if img == nil || images == nil {
				return ""
			}
			return images.Image(img.Ref()).Crop(w, h).Format("webp").URL()
		},
		"poster": func(path string) string {
			return tmdb.PosterURL(path, "w342")
		},
		"markdown": func(src string) template.HTML {
			var buf bytes.Buffer
			if err := md.Convert([]byte(src), &buf); err != nil {
				return template.HTML(template.HTMLEscapeString(src))
			}
			// goldmark drops raw HTML unless WithUnsafe is set.
			return template.HTML(buf.String())
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.In(london).Format("Mon 2 Jan 2006, 15:04")
		},
		"price":    formatPrice,
	}
}

func formatPrice(pence int64) string {
	if pence <= 0 {
		return "Free"
	}
	if pence%100 == 0 {
		return fmt.Sprintf("£%d", pence/100)
	}
	return fmt.Sprintf("£%d.%02d", pence/100, pence%100)
}
