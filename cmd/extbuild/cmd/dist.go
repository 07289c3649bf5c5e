package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/extbuild/internal/service/driver"
)

// distCmd packs existing outputs.
var distCmd = &cobra.Command{
	Use:   "dist",
	Short: "Pack built modules and installed headers into an archive.",
	Long: `Packs the library build directory and the header install directory into
{dist_dir}/{name}-{version}-{platform}.tar.xz with a RECORD file. The package
name takes the toolkit suffix from CUDA, the version comes from GIT_DESCRIBE_TAG.
Nothing is built; run build first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		cfg, env, err := loadProject()
		if err != nil {
			return err
		}

		d, _, err := driver.NewDist(ctx, &driver.Options{Config: cfg, Env: env})
		if err != nil {
			return err
		}

		result, err := d.Distribute(ctx)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), result.Path)

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(distCmd)
}
