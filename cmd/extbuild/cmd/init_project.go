package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oshokin/extbuild/internal/config"
)

// errProjectExists is returned when init would overwrite a project file.
var errProjectExists = errors.New("project file already exists")

// initForce overwrites an existing project file.
var initForce bool

// initCmd writes a starter project file.
var initCmd = &cobra.Command{
	Use:   "init [package-name]",
	Short: "Write a starter project file.",
	Long: `Writes a project file with two native targets built from cpp/, a wildcard
binding extension linked against them and cpp/include as the header root.
The package name defaults to the current directory name.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) > 0 {
			name = args[0]
		} else {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}

			name = filepath.Base(wd)
		}

		if _, err := os.Stat(configPath); err == nil && !initForce {
			return fmt.Errorf("%s: %w", configPath, errProjectExists)
		}

		if err := config.Save(configPath, config.Sample(name)); err != nil {
			return err
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), configPath)

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing project file")

	rootCmd.AddCommand(initCmd)
}
