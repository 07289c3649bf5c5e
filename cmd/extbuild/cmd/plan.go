package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/extbuild/internal/service/driver"
)

var (
	// planDebug plans debug builds.
	planDebug bool
	// planNoColor disables colors in the plan table.
	planNoColor bool

	// planCmd prints the build steps.
	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Print the commands a build would run.",
		Long: `Prints every configure, build, compile and link command in build order
without running anything or touching the build directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			d, err := newDriver(ctx, &driver.Options{
				Debug: planDebug,
				Out:   cmd.OutOrStdout(),
				Color: !planNoColor,
			})
			if err != nil {
				return err
			}

			return d.RenderPlan(ctx)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	planCmd.Flags().BoolVarP(&planDebug, "debug", "g", false, "plan a debug build")
	planCmd.Flags().BoolVar(&planNoColor, "no-color", false, "disable colors")

	rootCmd.AddCommand(planCmd)
}
