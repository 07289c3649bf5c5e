package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/extbuild/internal/config"
	"github.com/oshokin/extbuild/internal/logger"
	"github.com/oshokin/extbuild/internal/service/driver"
	"github.com/oshokin/extbuild/internal/version"
)

var (
	// configPath to the project YAML file.
	configPath string
	// logLevel is the minimum level of log messages.
	logLevel string

	// rootCmd represents the base command when called without any subcommands.
	rootCmd = &cobra.Command{
		Use:   "extbuild",
		Short: "Build native libraries, binding extensions and header trees for packaging.",
		Long: `extbuild drives the build of a binding package.

Native libraries are configured and built by CMake in one shared build-temp tree,
binding modules are compiled and linked against them, and header trees are installed
with their directory structure preserved.

Environment:
  CMAKE_EXE               CMake executable, used verbatim instead of a PATH search
  CMAKE_COMMON_VARIABLES  extra CMake arguments, separated by whitespace
  RMM_HEADER              header location exported to child builds
  CUDF_INCLUDE_DIR        native include directory exported to child builds
  CUDA                    toolkit version, feeds the package name suffix
  GIT_DESCRIBE_TAG        release version, leading "v" stripped
  CC, CXX                 compiler drivers for binding modules`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}
)

// Execute runs the extbuild CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup persistent flags shared by every subcommand.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to project file")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
}

// signalContext is canceled on SIGINT or SIGTERM, which also stops the running child.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	return logger.WithName(ctx, "extbuild"), stop
}

// loadProject reads the project file and snapshots the environment once.
func loadProject() (*config.Config, config.Environment, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, config.Environment{}, fmt.Errorf("load project: %w", err)
	}

	return cfg, config.EnvironmentFromOS(), nil
}

// newDriver wires every build step from the project file.
func newDriver(ctx context.Context, opts *driver.Options) (*driver.Driver, error) {
	cfg, env, err := loadProject()
	if err != nil {
		return nil, err
	}

	opts.Config = cfg
	opts.Env = env

	return driver.New(ctx, opts)
}
