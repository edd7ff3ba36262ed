package views

import (
	"github.com/noah-isme/sma-library-views/internal/models"
)

// Catalog indexes the definitions of a manifest by name.
type Catalog struct {
	order  []string
	byName map[string]*Definition
}

// NewCatalog builds a catalog. A positive defaultPageSize fills in views that
// do not declare their own.
func NewCatalog(m *Manifest, defaultPageSize int) *Catalog {
	c := &Catalog{byName: make(map[string]*Definition, len(m.Views))}
	for i := range m.Views {
		d := m.Views[i]
		if d.Config.DefaultPageSize == 0 && defaultPageSize > 0 {
			d.Config.DefaultPageSize = defaultPageSize
		}
		c.order = append(c.order, d.Name)
		c.byName[d.Name] = &d
	}
	return c
}

// Get returns the named definition.
func (c *Catalog) Get(name string) (*Definition, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// Visible lists the definitions role may open, in manifest order.
func (c *Catalog) Visible(role models.UserRole) []*Definition {
	var out []*Definition
	for _, name := range c.order {
		if d := c.byName[name]; d.Allows(role) {
			out = append(out, d)
		}
	}
	return out
}

// All lists every definition in manifest order.
func (c *Catalog) All() []*Definition {
	out := make([]*Definition, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}
