// Package views loads the declarative definitions of the listing pages: which
// record source feeds them, who may open them and how their fields behave.
package views

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sma-library-views/internal/models"
	"github.com/noah-isme/sma-library-views/pkg/viewengine"
)

//go:embed defaults.yaml
var defaultManifest []byte

// ScopeKind names how a caller narrows the rows fetched for a view.
type ScopeKind string

const (
	ScopeNone       ScopeKind = ""
	ScopeStudent    ScopeKind = "student"
	ScopeGradeLevel ScopeKind = "grade_level"
)

// Definition is one listing page.
type Definition struct {
	Name         string                        `yaml:"name" json:"name"`
	Title        string                        `yaml:"title" json:"title"`
	Source       string                        `yaml:"source" json:"-"`
	Roles        []models.UserRole             `yaml:"roles" json:"roles"`
	Scopes       map[models.UserRole]ScopeKind `yaml:"scopes,omitempty" json:"-"`
	StickyFields []string                      `yaml:"sticky_fields,omitempty" json:"sticky_fields,omitempty"`
	Config       viewengine.FieldConfig        `yaml:",inline" json:"config"`
}

// Allows reports whether role may open the view.
func (d *Definition) Allows(role models.UserRole) bool {
	return slices.Contains(d.Roles, role)
}

// ScopeFor returns the server-side row scope for caller.
func (d *Definition) ScopeFor(caller models.ViewCaller) models.RecordScope {
	switch d.Scopes[caller.Role] {
	case ScopeStudent:
		return models.RecordScope{StudentID: caller.IDNumber}
	case ScopeGradeLevel:
		return models.RecordScope{GradeLevel: caller.GradeLevel}
	}
	return models.RecordScope{}
}

// StickyFor returns the sticky fields the caller carries a value for, with
// those values. Callers without the attribute get no sticky field.
func (d *Definition) StickyFor(caller models.ViewCaller) map[string]string {
	out := make(map[string]string)
	for _, field := range d.StickyFields {
		if v := caller.Attribute(field); v != "" {
			out[field] = v
		}
	}
	return out
}

// Manifest is the on-disk form of the view catalogue.
type Manifest struct {
	Version int          `yaml:"version"`
	Views   []Definition `yaml:"views"`
}

// Validate checks the manifest and every definition in it.
func (m *Manifest) Validate() error {
	if m.Version != 1 {
		return fmt.Errorf("unsupported manifest version: %d", m.Version)
	}
	seen := make(map[string]struct{}, len(m.Views))
	for i := range m.Views {
		d := &m.Views[i]
		if d.Name == "" {
			return fmt.Errorf("view %d: name is required", i)
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("view %q declared twice", d.Name)
		}
		seen[d.Name] = struct{}{}
		if d.Source == "" {
			return fmt.Errorf("view %q: source is required", d.Name)
		}
		if len(d.Roles) == 0 {
			return fmt.Errorf("view %q: at least one role is required", d.Name)
		}
		for _, role := range d.Roles {
			if !role.Valid() {
				return fmt.Errorf("view %q: unknown role %q", d.Name, role)
			}
		}
		for role, scope := range d.Scopes {
			if !role.Valid() {
				return fmt.Errorf("view %q: scope for unknown role %q", d.Name, role)
			}
			if scope != ScopeNone && scope != ScopeStudent && scope != ScopeGradeLevel {
				return fmt.Errorf("view %q: unknown scope %q", d.Name, scope)
			}
		}
		if err := d.Config.Validate(); err != nil {
			return fmt.Errorf("view %q: %w", d.Name, err)
		}
		for _, name := range d.StickyFields {
			if f, ok := d.Config.Field(name); !ok || !f.Filterable {
				return fmt.Errorf("view %q: sticky field %q must be filterable", d.Name, name)
			}
		}
	}
	return nil
}

// Parse reads and validates a manifest.
func Parse(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse view manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid view manifest: %w", err)
	}
	return &manifest, nil
}

// Load reads a manifest from path, or the embedded defaults when path is empty.
func Load(path string) (*Manifest, error) {
	if path == "" {
		return Parse(defaultManifest)
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read view manifest: %w", err)
	}
	return Parse(data)
}
