package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"hdrcalc/internal/bracket"
	"hdrcalc/internal/shooting"
	"hdrcalc/internal/speeds"
)

// planOptions は計画を指定するフラグ
type planOptions struct {
	shadow    string
	highlight string
	frames    int
	spacing   float64
}

func (p *planOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.shadow, "shadow", "", `Shutter speed metered for the shadows (e.g. "1/4")`)
	cmd.Flags().StringVar(&p.highlight, "highlight", "", `Shutter speed metered for the highlights (e.g. "1/1000")`)
	cmd.Flags().IntVar(&p.frames, "frames", 5, "Frames per bracket set (AEB frames)")
	cmd.Flags().Float64Var(&p.spacing, "spacing", 1.0, "EV spacing between frames")
	_ = cmd.MarkFlagRequired("shadow")
	_ = cmd.MarkFlagRequired("highlight")
}

func (p *planOptions) plan() (bracket.CalculationResult, error) {
	return bracket.Plan(p.shadow, p.highlight, p.frames, p.spacing)
}

func newPlanCommand(root *rootOptions) *cobra.Command {
	var (
		opts   planOptions
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Calculate bracket sets from shadow and highlight readings",
		Long: `Calculates the bracket sets needed to cover the range between the
shadow and highlight readings. Adjacent sets share their boundary frame.`,
		Example: `  hdrcalc plan --shadow 1/4 --highlight 1/1000 --frames 5 --spacing 1`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := opts.plan()
			if err != nil {
				return err
			}

			overhead := root.cfg.Shooting.FrameOverhead
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			printPlan(cmd.OutOrStdout(), result, shooting.EstimatedTime(result.Sets, overhead))
			return nil
		},
	}

	opts.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the plan as JSON")
	return cmd
}

func printPlan(w io.Writer, result bracket.CalculationResult, estimated int) {
	fmt.Fprintf(w, "Range: %.1f EV\n", result.RangeEV)

	if !result.Bracketed() {
		fmt.Fprintln(w, "No bracketing needed: a single exposure covers the scene.")
		return
	}

	fmt.Fprintf(w, "Sets: %d, exposures: %d, estimated time: %s\n",
		len(result.Sets), result.TotalExposures, shooting.FormatEstimatedTime(estimated))
	for i, set := range result.Sets {
		fmt.Fprintf(w, "  Set %d: %s\n", i+1, joinLabels(set))
	}

	for _, warning := range shooting.SpeedWarnings(result.Sets) {
		fmt.Fprintf(w, "[%s] %s\n", warning.Severity, warning.Message)
	}
}

func joinLabels(set []speeds.ShutterSpeed) string {
	labels := make([]string, len(set))
	for i, s := range set {
		labels[i] = s.Label
	}
	return strings.Join(labels, ", ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
