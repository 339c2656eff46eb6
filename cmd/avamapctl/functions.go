package main

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newFunctionsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List the built-in functions available to FUNCTION rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := c.runner()
			if err != nil {
				return err
			}
			fns, err := r.Functions(cmd.Context())
			if err != nil {
				return err
			}

			names := make([]string, 0, len(fns))
			for name := range fns {
				names = append(names, name)
			}
			slices.Sort(names)

			p := c.printer()
			tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
			for _, name := range names {
				fmt.Fprintf(tw, "%s\t%s\n", p.name.Sprint(name), fns[name])
			}
			return tw.Flush()
		},
	}
}
