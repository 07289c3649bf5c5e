package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/extbuild/internal/logger"
	"github.com/oshokin/extbuild/internal/service/driver"
)

var (
	// buildExtDebug selects debug builds.
	buildExtDebug bool

	// buildExtCmd builds extensions only.
	buildExtCmd = &cobra.Command{
		Use:   "build-ext",
		Short: "Build native libraries and binding modules.",
		Long: `Checks that CMake can be found, removes the previous build directory and builds
every extension in order. Native targets share one configure tree in the
build-temp directory; binding modules are linked against the native outputs.
The first failing child process aborts the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			d, err := newDriver(ctx, &driver.Options{
				Debug: buildExtDebug,
				Out:   cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}

			if err = d.BuildExtensions(ctx); err != nil {
				logger.ErrorKV(ctx, "Extension build failed", "error", err)
				return err
			}

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	buildExtCmd.Flags().BoolVarP(&buildExtDebug, "debug", "g", false, "compile extensions in debug mode")

	rootCmd.AddCommand(buildExtCmd)
}
