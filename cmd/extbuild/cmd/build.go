package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/extbuild/internal/logger"
	"github.com/oshokin/extbuild/internal/service/driver"
)

var (
	// buildDebug selects debug builds for the build command.
	buildDebug bool
	// buildDist packs the outputs after a successful build.
	buildDist bool
	// buildRecord is the install manifest path of the build command.
	buildRecord string

	// buildCmd runs every step.
	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Build extensions, then install headers.",
		Long: `Removes the previous build directory, builds every extension in the order
of the project file and installs the header trees. With --dist the outputs are
packed into a distribution archive afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			d, err := newDriver(ctx, &driver.Options{
				Debug:      buildDebug,
				RecordPath: buildRecord,
				Out:        cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}

			report, err := d.Run(ctx, buildDist)
			if err != nil {
				logger.ErrorKV(ctx, "Build failed", "error", err)
				return err
			}

			for _, record := range report.Headers {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), record.DestinationFile)
			}

			if report.Dist != nil {
				logger.InfoKV(ctx, "Distribution archive ready", "path", report.Dist.Path)
			}

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	buildCmd.Flags().BoolVarP(&buildDebug, "debug", "g", false, "compile extensions in debug mode")
	buildCmd.Flags().BoolVar(&buildDist, "dist", false, "pack the outputs into a distribution archive")
	buildCmd.Flags().StringVar(&buildRecord, "record", "", "write the installed headers to this YAML manifest")

	rootCmd.AddCommand(buildCmd)
}
