package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-library-views/internal/views"
)

type rootOptions struct {
	viewsFile  string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "viewctl",
		Short:         "Render library listing views offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.viewsFile, "views", "", "view definitions file (defaults to the built-in views)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output as JSON")

	root.AddCommand(newViewsCmd(opts))
	root.AddCommand(newRenderCmd(opts))
	return root
}

func newViewsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "views",
		Short: "List view definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := views.Load(opts.viewsFile)
			if err != nil {
				return err
			}
			defs := views.NewCatalog(manifest, 0).All()
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), defs)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTITLE\tSOURCE\tROLES")
			for _, d := range defs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, d.Title, d.Source, joinRoles(d))
			}
			return w.Flush()
		},
	}
}

func joinRoles(d *views.Definition) string {
	out := ""
	for i, r := range d.Roles {
		if i > 0 {
			out += ","
		}
		out += string(r)
	}
	return out
}
