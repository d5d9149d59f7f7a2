package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"helixsym/internal/models"
	"helixsym/pkg/priors"
	"helixsym/pkg/simulate"
)

func (a *app) priorsCmd() *cobra.Command {
	var maxPsiDev, maxTiltDev float64
	cmd := &cobra.Command{
		Use:   "priors",
		Short: "Update helical priors of simulated filament segments",
		Long: `Simulates segments along several filaments with noisy orientations and
occasional polarity errors, updates their priors from the neighbours along
each filament and reports how close the priors are to the truth.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPriors(cmd, maxPsiDev, maxTiltDev)
		},
	}
	cmd.Flags().Float64Var(&maxPsiDev, "max-psi-dev", 0, "Remove segments whose psi deviates from its prior by more than this many degrees")
	cmd.Flags().Float64Var(&maxTiltDev, "max-tilt-dev", 0, "Remove segments whose tilt deviates from its prior by more than this many degrees")
	return cmd
}

func (a *app) runPriors(cmd *cobra.Command, maxPsiDev, maxTiltDev float64) error {
	cfg := a.cfg
	out := cmd.OutOrStdout()

	table, truth, err := simulate.HelicalSegments(cfg.Simulation)
	if err != nil {
		return fmt.Errorf("failed to simulate segments: %w", err)
	}
	rawPsi, rawTilt := simulate.AngularRMS(table, truth, models.FieldAnglePsi, models.FieldAngleTilt)

	tracker := priors.NewTracker(cfg.PriorParams())
	tracker.SetLogger(a.logger)
	tracker.SetMetrics(a.metrics)
	sum, err := tracker.Update(table)
	if err != nil {
		return fmt.Errorf("prior update failed: %w", err)
	}
	priorPsi, priorTilt := simulate.AngularRMS(table, truth, models.FieldAnglePsiPrior, models.FieldAngleTiltPrior)

	fmt.Fprintf(out, "Tubes: %d, segments: %d\n", sum.Tubes, sum.Rows)
	fmt.Fprintf(out, "Opposite polarity: %d, outliers: %d\n", sum.OppositePolarity, sum.Outliers)
	fmt.Fprintf(out, "Psi RMS to truth:  estimates %.3f deg, priors %.3f deg\n", rawPsi, priorPsi)
	fmt.Fprintf(out, "Tilt RMS to truth: estimates %.3f deg, priors %.3f deg\n", rawTilt, priorTilt)

	if maxPsiDev > 0 {
		kept, removed, err := priors.RemoveBadPsiSegments(table, maxPsiDev)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %d segments with psi deviation above %.1f deg\n", removed, maxPsiDev)
		table = kept
	}
	if maxTiltDev > 0 {
		_, removed, err := priors.RemoveBadTiltSegments(table, maxTiltDev)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %d segments with tilt deviation above %.1f deg\n", removed, maxTiltDev)
	}

	return a.writeMetrics()
}
