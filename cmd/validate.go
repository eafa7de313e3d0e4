package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"hdrcalc/internal/shutter"
	"hdrcalc/internal/speeds"
)

func newValidateCommand() *cobra.Command {
	var (
		opts      planOptions
		available []string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a plan against the shutter speeds a camera supports",
		Example: `  hdrcalc validate --shadow 1/30 --highlight 1/250 --available 1/250,1/100,1/60,1/30`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := opts.plan()
			if err != nil {
				return err
			}

			supported, err := speeds.LookupAll(available)
			if err != nil {
				return fmt.Errorf("available: %w", err)
			}
			if len(supported) == 0 {
				return errors.New("available: at least one shutter speed is required")
			}

			validation := shutter.ValidateSpeeds(result.Sets, supported)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), validation)
			}

			w := cmd.OutOrStdout()
			if validation.AllAvailable {
				fmt.Fprintln(w, "All speeds are available.")
				return nil
			}
			for _, sub := range validation.Substitutions {
				fmt.Fprintf(w, "%s: not available, use %s\n", sub.Original.Label, sub.Substitute.Label)
			}
			return nil
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringSliceVar(&available, "available", nil, "Shutter speeds the camera supports (comma separated)")
	_ = cmd.MarkFlagRequired("available")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}
