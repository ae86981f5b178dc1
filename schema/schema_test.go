package schema

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DeclaresAllDocumentTypes(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"film", "person", "venue", "screening", "showing", "member",
		"ticket", "genre", "tag", "collection", "page",
	}, s.Names())

	film, ok := s.Get("film")
	require.True(t, ok)
	assert.Equal(t, "Film", film.Title)
	assert.Equal(t, TypeSlug, film.Fields[1].Type)

	_, ok = s.Get("festival")
	assert.False(t, ok)
}

func TestParse_RejectsBrokenDeclarations(t *testing.T) {
	cases := map[string]string{
		"duplicate":      "- {name: film}\n- {name: film}\n",
		"unknown target": "- name: film\n  fields:\n    - {name: director, type: reference, to: auteur}\n",
		"missing target": "- name: film\n  fields:\n    - {name: cast, type: array}\n",
		"no name":        "- {title: Nameless}\n",
		"not yaml":       "{{{",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	s := MustLoad()

	t.Run("valid screening", func(t *testing.T) {
		err := s.Validate(map[string]any{
			"_type":      "screening",
			"film":       map[string]any{"_ref": "film-amelie"},
			"venue":      map[string]any{"_ref": "venue-lexi"},
			"startsAt":   "2026-11-05T19:30:00Z",
			"pricePence": float64(850),
			"soldOut":    false,
		})
		assert.NoError(t, err)
	})

	t.Run("reports every problem", func(t *testing.T) {
		err := s.Validate(map[string]any{
			"_type":    "screening",
			"film":     "amelie",
			"startsAt": "next tuesday",
		})
		require.Error(t, err)
		msg := err.Error()
		assert.Contains(t, msg, "screening.film: expected reference object")
		assert.Contains(t, msg, "screening.venue is required")
		assert.Contains(t, msg, "invalid datetime")
		assert.Contains(t, msg, "screening.pricePence is required")
	})

	t.Run("empty string counts as missing", func(t *testing.T) {
		err := s.Validate(map[string]any{"_type": "genre", "title": "", "slug": "drama"})
		assert.ErrorContains(t, err, "genre.title is required")
	})

	t.Run("slug object and image", func(t *testing.T) {
		err := s.Validate(map[string]any{
			"_type":    "person",
			"name":     "Agnès Varda",
			"slug":     map[string]any{"current": "agnes-varda"},
			"portrait": map[string]any{"asset": map[string]any{"_ref": "image-abc-400x600-jpg"}},
		})
		assert.NoError(t, err)

		err = s.Validate(map[string]any{
			"_type":    "person",
			"name":     "Agnès Varda",
			"slug":     "agnes-varda",
			"portrait": map[string]any{"url": "https://example.org/a.jpg"},
		})
		assert.ErrorContains(t, err, "image has no asset reference")
	})

	t.Run("unknown type", func(t *testing.T) {
		assert.Error(t, s.Validate(map[string]any{"_type": "festival"}))
		assert.Error(t, s.Validate(map[string]any{}))
	})
}

func TestJSON(t *testing.T) {
	data, err := MustLoad().JSON()
	require.NoError(t, err)

	var decoded []DocumentType
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 11)
	assert.Equal(t, "page", decoded[10].Name)
}
