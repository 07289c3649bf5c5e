package driver

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/oshokin/extbuild/internal/buildpath"
	"github.com/oshokin/extbuild/internal/config"
	"github.com/oshokin/extbuild/internal/invocation"
	"github.com/oshokin/extbuild/internal/logger"
)

// versionScript prints the interpreter's "major.minor".
const versionScript = "import sys; print('%d.%d' % sys.version_info[:2])"

// ResolveLayout fills the naming inputs from the project file, asking the
// interpreter for its version only when none is configured.
func ResolveLayout(
	ctx context.Context,
	cfg *config.Config,
	env config.Environment,
	runner invocation.Runner,
) (buildpath.Layout, error) {
	layout := buildpath.Layout{
		Root:            cfg.Path(cfg.BuildDir),
		PlatformTag:     cfg.PlatformTag,
		ExtensionSuffix: cfg.ExtensionSuffix,
	}

	if layout.PlatformTag == "" {
		layout.PlatformTag = buildpath.PlatformTag(runtime.GOOS, runtime.GOARCH)
	}

	if layout.ExtensionSuffix == "" {
		layout.ExtensionSuffix = buildpath.ExtensionSuffix(runtime.GOOS)
	}

	raw := cfg.InterpreterVersion
	if raw == "" {
		output, err := runner.Output(ctx, &invocation.Invocation{
			Executable: cfg.Interpreter,
			Args:       []string{"-c", versionScript},
			Env:        invocation.EnvList(env.Snapshot()),
		})
		if err != nil {
			return buildpath.Layout{}, fmt.Errorf("detect interpreter version: %w", err)
		}

		raw = strings.TrimSpace(string(output))

		logger.DebugKV(ctx, "Detected interpreter version", "interpreter", cfg.Interpreter, "version", raw)
	}

	version, err := buildpath.ParseVersion(raw)
	if err != nil {
		return buildpath.Layout{}, err
	}

	layout.Version = version

	return layout, nil
}
