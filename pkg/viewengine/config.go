package viewengine

import (
	"fmt"
	"slices"
	"strings"
)

// Kind selects how a sortable field is compared.
type Kind string

const (
	KindString     Kind = "string"
	KindDate       Kind = "date"
	KindNumeric    Kind = "numeric"
	KindRankedEnum Kind = "ranked-enum"
)

// DefaultPageSizes mirrors the rows-per-page options offered by listing pages.
var DefaultPageSizes = []int{5, 10, 25, 50}

// Field declares how one record field participates in a view.
type Field struct {
	Name          string         `yaml:"name" json:"name"`
	Label         string         `yaml:"label,omitempty" json:"label,omitempty"`
	Kind          Kind           `yaml:"kind,omitempty" json:"kind,omitempty"`
	Searchable    bool           `yaml:"searchable,omitempty" json:"searchable"`
	Sortable      bool           `yaml:"sortable,omitempty" json:"sortable"`
	Filterable    bool           `yaml:"filterable,omitempty" json:"filterable"`
	CaseSensitive bool           `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
	Ranks         map[string]int `yaml:"ranks,omitempty" json:"ranks,omitempty"`
}

// Heading returns the label used for column headers.
func (f Field) Heading() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// SortSpec names the initial sort of a view.
type SortSpec struct {
	Key       string    `yaml:"key" json:"key"`
	Direction Direction `yaml:"direction,omitempty" json:"direction,omitempty"`
}

// FieldConfig is the declarative per-view configuration of the engine.
type FieldConfig struct {
	Fields          []Field           `yaml:"fields" json:"fields"`
	DateField       string            `yaml:"date_field,omitempty" json:"date_field,omitempty"`
	Distinct        map[string]string `yaml:"distinct,omitempty" json:"distinct,omitempty"`
	Sums            map[string]string `yaml:"sums,omitempty" json:"sums,omitempty"`
	PageSizes       []int             `yaml:"page_sizes,omitempty" json:"page_sizes,omitempty"`
	DefaultPageSize int               `yaml:"default_page_size,omitempty" json:"default_page_size,omitempty"`
	DefaultSort     *SortSpec         `yaml:"default_sort,omitempty" json:"default_sort,omitempty"`
}

// Field looks up a declared field by name.
func (c *FieldConfig) Field(name string) (Field, bool) {
	if c == nil {
		return Field{}, false
	}
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// AllowedPageSizes returns the configured page sizes or DefaultPageSizes.
func (c *FieldConfig) AllowedPageSizes() []int {
	if c == nil || len(c.PageSizes) == 0 {
		return DefaultPageSizes
	}
	return c.PageSizes
}

// InitialPageSize returns the page size a fresh view starts with.
func (c *FieldConfig) InitialPageSize() int {
	sizes := c.AllowedPageSizes()
	if c != nil && c.DefaultPageSize > 0 && slices.Contains(sizes, c.DefaultPageSize) {
		return c.DefaultPageSize
	}
	if slices.Contains(sizes, 10) {
		return 10
	}
	return sizes[0]
}

// DateFields lists the date-kind fields plus the designated date field.
func (c *FieldConfig) DateFields() []string {
	if c == nil {
		return nil
	}
	var out []string
	for _, f := range c.Fields {
		if f.Kind == KindDate || f.Name == c.DateField {
			out = append(out, f.Name)
		}
	}
	return out
}

// Validate checks the config for references to undeclared fields and bad kinds.
func (c *FieldConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("field config is nil")
	}
	seen := make(map[string]struct{}, len(c.Fields))
	for i, f := range c.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("field %d: name is required", i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("field %q declared twice", f.Name)
		}
		seen[f.Name] = struct{}{}
		switch f.Kind {
		case "", KindString, KindDate, KindNumeric:
		case KindRankedEnum:
			if len(f.Ranks) == 0 {
				return fmt.Errorf("field %q: ranked-enum requires ranks", f.Name)
			}
		default:
			return fmt.Errorf("field %q: unknown kind %q", f.Name, f.Kind)
		}
	}
	if c.DateField != "" {
		if _, ok := seen[c.DateField]; !ok {
			return fmt.Errorf("date field %q is not declared", c.DateField)
		}
	}
	for name, field := range c.Distinct {
		if _, ok := seen[field]; !ok {
			return fmt.Errorf("distinct aggregate %q: field %q is not declared", name, field)
		}
	}
	for name, field := range c.Sums {
		if _, ok := seen[field]; !ok {
			return fmt.Errorf("sum aggregate %q: field %q is not declared", name, field)
		}
	}
	for _, size := range c.PageSizes {
		if size <= 0 {
			return fmt.Errorf("page size %d must be positive", size)
		}
	}
	if c.DefaultSort != nil {
		if _, ok := seen[c.DefaultSort.Key]; !ok {
			return fmt.Errorf("default sort key %q is not declared", c.DefaultSort.Key)
		}
		if d := c.DefaultSort.Direction; d != "" && d != Asc && d != Desc {
			return fmt.Errorf("default sort direction %q is invalid", d)
		}
	}
	return nil
}
