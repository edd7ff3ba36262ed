package export

import "fmt"

// Table is the rendered form of a view: column headings, formatted cells
// and optional summary lines such as aggregate totals.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Summary []string
}

func (t Table) validate() error {
	if len(t.Headers) == 0 {
		return fmt.Errorf("table requires at least one header")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Headers))
		}
	}
	return nil
}
