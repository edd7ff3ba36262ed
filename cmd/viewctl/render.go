package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-library-views/internal/views"
	"github.com/noah-isme/sma-library-views/pkg/viewengine"
)

type renderOptions struct {
	view     string
	input    string
	search   string
	filters  []string
	from     string
	to       string
	year     string
	sortKey  string
	desc     bool
	page     int
	pageSize int
}

func newRenderCmd(root *rootOptions) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one page of a view over a JSON array of records",
		Example: `  viewctl render --view completed-hours --input hours.json --year 2024-2025
  viewctl render --view books --input books.json --search adarna --sort title --desc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadDefinition(root.viewsFile, opts.view)
			if err != nil {
				return err
			}
			records, err := readRecords(cmd.InOrStdin(), opts.input)
			if err != nil {
				return err
			}
			engine, err := buildEngine(def, records, opts)
			if err != nil {
				return err
			}
			if root.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), engine.View())
			}
			return printView(cmd.OutOrStdout(), def, engine.View())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.view, "view", "", "view name")
	f.StringVar(&opts.input, "input", "-", "JSON records file, - for stdin")
	f.StringVar(&opts.search, "search", "", "search text")
	f.StringArrayVar(&opts.filters, "filter", nil, "exact filter as field=value (repeatable)")
	f.StringVar(&opts.from, "from", "", "date from (YYYY-MM-DD)")
	f.StringVar(&opts.to, "to", "", "date to (YYYY-MM-DD)")
	f.StringVar(&opts.year, "year", "", "academic year, e.g. 2024-2025")
	f.StringVar(&opts.sortKey, "sort", "", "sort field")
	f.BoolVar(&opts.desc, "desc", false, "sort descending")
	f.IntVar(&opts.page, "page", 1, "page number, starting at 1")
	f.IntVar(&opts.pageSize, "size", 0, "rows per page")
	_ = cmd.MarkFlagRequired("view")
	cmd.MarkFlagsMutuallyExclusive("year", "from")
	cmd.MarkFlagsMutuallyExclusive("year", "to")
	return cmd
}

func loadDefinition(path, name string) (*views.Definition, error) {
	manifest, err := views.Load(path)
	if err != nil {
		return nil, err
	}
	def, ok := views.NewCatalog(manifest, 0).Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown view %q", name)
	}
	return def, nil
}

func readRecords(stdin io.Reader, path string) ([]viewengine.Record, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // operator-supplied path
	}
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	var records []viewengine.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}

func buildEngine(def *views.Definition, records []viewengine.Record, opts *renderOptions) (*viewengine.Engine, error) {
	engine, err := viewengine.New(&def.Config)
	if err != nil {
		return nil, err
	}
	engine.SetRecords(records)

	if opts.search != "" {
		engine.SetSearchText(opts.search)
	}
	for _, raw := range opts.filters {
		name, value, ok := strings.Cut(raw, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("filter %q must look like field=value", raw)
		}
		if field, ok := def.Config.Field(name); !ok || !field.Filterable {
			return nil, fmt.Errorf("field %q is not filterable in view %q", name, def.Name)
		}
		engine.SetPendingField(name, value)
	}
	if opts.from != "" {
		d, ok := viewengine.ParseDate(opts.from)
		if !ok {
			return nil, fmt.Errorf("invalid --from date %q", opts.from)
		}
		engine.SetPendingDateFrom(&d)
	}
	if opts.to != "" {
		d, ok := viewengine.ParseDate(opts.to)
		if !ok {
			return nil, fmt.Errorf("invalid --to date %q", opts.to)
		}
		if err := engine.SetPendingDateTo(&d); err != nil {
			return nil, err
		}
	}
	if opts.year != "" {
		if err := engine.SetPendingAcademicYear(opts.year); err != nil {
			return nil, err
		}
	}
	if err := engine.ApplyPendingFilters(); err != nil {
		return nil, err
	}

	if opts.sortKey != "" {
		field, ok := def.Config.Field(opts.sortKey)
		if !ok {
			return nil, fmt.Errorf("unknown sort field %q", opts.sortKey)
		}
		if !field.Sortable {
			return nil, fmt.Errorf("field %q is not sortable in view %q", opts.sortKey, def.Name)
		}
		want := viewengine.Asc
		if opts.desc {
			want = viewengine.Desc
		}
		// RequestSort toggles, so at most two calls reach any key and direction.
		for i := 0; i < 2; i++ {
			applied := engine.AppliedSpec()
			if applied.SortKey == opts.sortKey && applied.SortDirection == want {
				break
			}
			engine.RequestSort(opts.sortKey)
		}
	}

	if opts.pageSize > 0 {
		if err := engine.SetPageSize(opts.pageSize); err != nil {
			return nil, fmt.Errorf("%w: allowed sizes are %v", err, def.Config.AllowedPageSizes())
		}
	}
	if opts.page < 1 {
		return nil, fmt.Errorf("--page must be at least 1")
	}
	if pages := engine.View().PageCount; opts.page > 1 && opts.page > pages {
		return nil, fmt.Errorf("page %d is out of range, the view has %d page(s)", opts.page, pages)
	}
	engine.SetPage(opts.page - 1)
	return engine, nil
}

func printView(out io.Writer, def *views.Definition, view viewengine.ViewResult) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	headings := make([]string, 0, len(def.Config.Fields))
	for _, f := range def.Config.Fields {
		headings = append(headings, strings.ToUpper(f.Heading()))
	}
	fmt.Fprintln(w, strings.Join(headings, "\t"))
	for _, row := range view.Rows {
		cells := make([]string, 0, len(def.Config.Fields))
		for _, f := range def.Config.Fields {
			cells = append(cells, viewengine.FormatValue(row[f.Name]))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	page := 0
	if view.PageCount > 0 {
		page = view.PageIndex + 1
	}
	fmt.Fprintf(out, "\nPage %d of %d (%d matching rows)\n", page, view.PageCount, view.TotalFilteredCount)
	names := make([]string, 0, len(view.Aggregates))
	for name := range view.Aggregates {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(out, "%s: %s\n", name, viewengine.FormatValue(view.Aggregates[name]))
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
