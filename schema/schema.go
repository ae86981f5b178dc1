// Package schema declares the CMS document types (film, person, venue,
// screening, ...) and checks documents against them before they are
// written through the studio or read back by the site.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

//go:embed types.yaml
var typesYAML []byte

type FieldType string

const (
	TypeString    FieldType = "string"
	TypeText      FieldType = "text"
	TypeSlug      FieldType = "slug"
	TypeNumber    FieldType = "number"
	TypeBoolean   FieldType = "boolean"
	TypeDatetime  FieldType = "datetime"
	TypeDate      FieldType = "date"
	TypeURL       FieldType = "url"
	TypeEmail     FieldType = "email"
	TypeImage     FieldType = "image"
	TypeMarkdown  FieldType = "markdown"
	TypeReference FieldType = "reference"
	TypeArray     FieldType = "array"
)

type Field struct {
	Name     string    `yaml:"name" json:"name"`
	Type     FieldType `yaml:"type" json:"type"`
	Required bool      `yaml:"required" json:"required,omitempty"`
	To       string    `yaml:"to" json:"to,omitempty"`
	Of       string    `yaml:"of" json:"of,omitempty"`
}

type DocumentType struct {
	Name   string  `yaml:"name" json:"name"`
	Title  string  `yaml:"title" json:"title"`
	Fields []Field `yaml:"fields" json:"fields"`
}

// Set is the loaded collection of document types, in declaration order.
type Set struct {
	types []DocumentType
	index map[string]int
}

// Load parses the embedded type declarations.
func Load() (*Set, error) {
	return Parse(typesYAML)
}

// Parse builds a Set from YAML and checks that every reference and array
// points at a declared type.
func Parse(data []byte) (*Set, error) {
	var types []DocumentType
	if err := yaml.Unmarshal(data, &types); err != nil {
		return nil, fmt.Errorf("parsing schema types: %w", err)
	}

	s := &Set{types: types, index: make(map[string]int, len(types))}
	for i, t := range types {
		if t.Name == "" {
			return nil, fmt.Errorf("schema type %d has no name", i)
		}
		if _, dup := s.index[t.Name]; dup {
			return nil, fmt.Errorf("schema type %q declared twice", t.Name)
		}
		s.index[t.Name] = i
	}

	for _, t := range types {
		for _, f := range t.Fields {
			target := ""
			switch f.Type {
			case TypeReference:
				target = f.To
			case TypeArray:
				target = f.Of
			}
			if target == "" {
				if f.Type == TypeReference || f.Type == TypeArray {
					return nil, fmt.Errorf("%s.%s: %s field needs a target type", t.Name, f.Name, f.Type)
				}
				continue
			}
			if _, ok := s.index[target]; !ok && !isPrimitive(FieldType(target)) {
				return nil, fmt.Errorf("%s.%s: unknown type %q", t.Name, f.Name, target)
			}
		}
	}
	return s, nil
}

// MustLoad is Load for package-level initialisation.
func MustLoad() *Set {
	s, err := Load()
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Set) Names() []string {
	names := make([]string, len(s.types))
	for i, t := range s.types {
		names[i] = t.Name
	}
	return names
}

func (s *Set) Get(name string) (DocumentType, bool) {
	i, ok := s.index[name]
	if !ok {
		return DocumentType{}, false
	}
	return s.types[i], true
}

// JSON renders the set in the shape the studio consumes.
func (s *Set) JSON() ([]byte, error) {
	return json.MarshalIndent(s.types, "", "  ")
}

// Validate checks doc against the type named by its "_type" key: required
// fields must be present and non-empty and known fields must hold values of
// the declared kind. All problems are reported together.
func (s *Set) Validate(doc map[string]any) error {
	typeName, _ := doc["_type"].(string)
	t, ok := s.Get(typeName)
	if !ok {
		return fmt.Errorf("unknown document type %q", typeName)
	}

	var errs []error
	for _, f := range t.Fields {
		v, present := doc[f.Name]
		if !present || isEmpty(v) {
			if f.Required {
				errs = append(errs, fmt.Errorf("%s.%s is required", t.Name, f.Name))
			}
			continue
		}
		if err := checkKind(f, v); err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", t.Name, f.Name, err))
		}
	}
	return errors.Join(errs...)
}

func isPrimitive(t FieldType) bool {
	return slices.Contains([]FieldType{
		TypeString, TypeText, TypeSlug, TypeNumber, TypeBoolean, TypeDatetime,
		TypeDate, TypeURL, TypeEmail, TypeImage, TypeMarkdown,
	}, t)
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

func checkKind(f Field, v any) error {
	switch f.Type {
	case TypeString, TypeText, TypeURL, TypeEmail, TypeMarkdown:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
	case TypeNumber:
		switch v.(type) {
		case float64, float32, int, int64, int32:
		default:
			return fmt.Errorf("expected number, got %T", v)
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", v)
		}
	case TypeDatetime:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected RFC3339 string, got %T", v)
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("invalid datetime %q", s)
		}
	case TypeDate:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected date string, got %T", v)
		}
		if _, err := time.Parse(time.DateOnly, s); err != nil {
			return fmt.Errorf("invalid date %q", s)
		}
	case TypeSlug:
		// Slugs arrive either as {"current": "..."} or a bare string.
		switch x := v.(type) {
		case string:
		case map[string]any:
			if _, ok := x["current"].(string); !ok {
				return fmt.Errorf("slug object has no current value")
			}
		default:
			return fmt.Errorf("expected slug, got %T", v)
		}
	case TypeImage:
		m, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("expected image object, got %T", v)
		}
		asset, _ := m["asset"].(map[string]any)
		if _, ok := asset["_ref"].(string); !ok {
			return fmt.Errorf("image has no asset reference")
		}
	case TypeReference:
		m, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("expected reference object, got %T", v)
		}
		if _, ok := m["_ref"].(string); !ok {
			return fmt.Errorf("reference has no _ref")
		}
	case TypeArray:
		if _, ok := v.([]any); !ok {
			return fmt.Errorf("expected array, got %T", v)
		}
	}
	return nil
}
