package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hdrcalc/internal/camera"
	"hdrcalc/internal/emitter"
	"hdrcalc/internal/shooting"
)

func newShootCommand(root *rootOptions) *cobra.Command {
	var (
		opts            planOptions
		mode            string
		failVerifyAfter int
	)

	cmd := &cobra.Command{
		Use:   "shoot",
		Short: "Shoot a bracket plan on the simulated camera",
		Long: `Calculates a plan and runs it on the simulated camera: each frame's
shutter speed is set, read back until it matches, then captured.
Progress is published over MQTT when mqtt.broker is configured.
Press Ctrl+C to cancel the run.`,
		Example: `  hdrcalc shoot --shadow 1/4 --highlight 1/1000 --frames 5
  hdrcalc shoot --shadow 1/4 --highlight 1/1000 --fail-verify-after 5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := opts.plan()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if !result.Bracketed() {
				fmt.Fprintln(w, "No bracketing needed: a single exposure covers the scene.")
				return nil
			}

			cfg := root.cfg
			hw := camera.NewSimulatedHardware(cfg.Camera.CommandDelay)
			hw.SetExposureMode(camera.ParseExposureMode(mode))
			hw.SetFailVerifyAfter(failVerifyAfter)

			controller := shooting.NewController(hw, cfg.Shooting.Controller(), root.logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.MQTT.Enabled() {
				em := emitter.NewMQTTEmitter(cfg.MQTT.Emitter(), root.logger)
				if err := em.Connect(ctx); err != nil {
					root.logger.Warn("shoot: progress will not be published", "error", err)
				} else {
					controller.AddObserver(em)
					defer em.Close()
				}
			}
			controller.AddObserver(newProgressPrinter(w))

			estimated := controller.EstimatedTime(result.Sets)
			fmt.Fprintf(w, "Shooting %d sets (%d exposures), estimated time %s\n",
				len(result.Sets), result.TotalExposures, shooting.FormatEstimatedTime(estimated))
			for _, warning := range shooting.SpeedWarnings(result.Sets) {
				fmt.Fprintf(w, "[%s] %s\n", warning.Severity, warning.Message)
			}

			if err := controller.Start(result.Sets); err != nil {
				return err
			}

			if err := controller.Wait(ctx); err != nil {
				controller.Cancel()
				_ = controller.Wait(context.Background())
				fmt.Fprintf(w, "Result: %s\n", shooting.Cancelled())
				return nil
			}

			final := controller.Snapshot().Phase.Result
			fmt.Fprintf(w, "Result: %s\n", final)
			if final.Kind == shooting.ResultFailed {
				return errors.New(final.Message)
			}
			return nil
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&mode, "mode", string(camera.ModeManual), "Exposure mode reported by the simulated camera")
	cmd.Flags().IntVar(&failVerifyAfter, "fail-verify-after", 0, "Make shutter read-back drift after this many captures (0 disables)")
	return cmd
}

// progressPrinter は撮影中の進捗と読み戻しの再試行を表示する
type progressPrinter struct {
	w         io.Writer
	completed int
	status    shooting.FrameStatus
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

func (p *progressPrinter) OnUpdate(s shooting.Snapshot) {
	// Cancel や Dismiss は進捗をゼロに戻すので、撮影中以外は無視する
	if s.Phase.Kind != shooting.PhaseShooting {
		return
	}

	status := s.Progress.CurrentFrameStatus
	if status.Kind == shooting.FrameVerifying && status.Attempt > 1 && !status.Equal(p.status) {
		fmt.Fprintf(p.w, "  %s did not read back, retrying (attempt %d of %d)\n", status.Speed.Label, status.Attempt, status.MaxAttempts)
	}
	p.status = status

	if s.Progress.CompletedFrames == p.completed {
		return
	}
	p.completed = s.Progress.CompletedFrames
	fmt.Fprintf(p.w, "  %s: %s (%.0f%%)\n", s.Progress.SetProgress(), s.Progress.FrameProgress(), s.FractionComplete*100)
}
