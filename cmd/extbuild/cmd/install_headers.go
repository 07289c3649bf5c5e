package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/extbuild/internal/service/driver"
)

var (
	// installDir overrides the configured header install directory.
	installDir string
	// installRecord is the install manifest path.
	installRecord string

	// installHeadersCmd copies header trees.
	installHeadersCmd = &cobra.Command{
		Use:   "install-headers",
		Short: "Install header trees preserving their structure.",
		Long: `Copies every header under every configured root into the install directory,
keeping paths relative to the root. When two roots contain the same relative
path, the later root wins. Installed files are printed one per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			cfg, env, err := loadProject()
			if err != nil {
				return err
			}

			d := driver.NewHeaders(&driver.Options{
				Config:     cfg,
				Env:        env,
				InstallDir: installDir,
				RecordPath: installRecord,
			})

			records, err := d.InstallHeaders(ctx)
			if err != nil {
				return err
			}

			for _, record := range records {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), record.DestinationFile)
			}

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	installHeadersCmd.Flags().StringVar(&installDir, "install-dir", "", "directory to install headers to")
	installHeadersCmd.Flags().StringVar(&installRecord, "record", "", "write the installed headers to this YAML manifest")

	rootCmd.AddCommand(installHeadersCmd)
}
