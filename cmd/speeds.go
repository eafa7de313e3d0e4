package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hdrcalc/internal/speeds"
)

func newSpeedsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "speeds",
		Short: "List the shutter speed table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			all := speeds.All()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), all)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tLABEL\tSECONDS\tEV")
			for _, s := range all {
				fmt.Fprintf(tw, "%d\t%s\t%g\t%.2f\n", s.Index, s.Label, s.Seconds, s.EV)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the table as JSON")
	return cmd
}
