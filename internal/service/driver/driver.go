package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/oshokin/extbuild/internal/buildpath"
	"github.com/oshokin/extbuild/internal/config"
	"github.com/oshokin/extbuild/internal/extension"
	"github.com/oshokin/extbuild/internal/invocation"
	"github.com/oshokin/extbuild/internal/logger"
	"github.com/oshokin/extbuild/internal/service/compiler"
	"github.com/oshokin/extbuild/internal/service/dist"
	"github.com/oshokin/extbuild/internal/service/headers"
	"github.com/oshokin/extbuild/internal/service/lock"
	"github.com/oshokin/extbuild/internal/service/orchestrator"
	"github.com/oshokin/extbuild/internal/service/plan"
)

// ExtensionBuilder builds descriptors in order.
type ExtensionBuilder interface {
	BuildExtensions(ctx context.Context, descriptors []extension.Descriptor) error
}

// HeaderInstaller installs the declared header roots.
type HeaderInstaller interface {
	Run(ctx context.Context) ([]headers.Record, error)
}

// Distributor packs build outputs into an archive.
type Distributor interface {
	Run(ctx context.Context) (*dist.Result, error)
}

// Planner renders the steps a build would run.
type Planner interface {
	Render(ctx context.Context, descriptors []extension.Descriptor) error
}

// Locker guards the shared build-temp tree.
type Locker interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// errStepNotConfigured is returned when a step is requested but not wired.
var errStepNotConfigured = errors.New("step is not configured")

// Report collects what one run produced.
type Report struct {
	// Headers are the installed header records.
	Headers []headers.Record
	// Dist is the published archive, if the dist step ran.
	Dist *dist.Result
}

// Driver composes the build steps. Any step may be nil if it is not used.
type Driver struct {
	// Descriptors are built in order.
	Descriptors []extension.Descriptor
	// Extensions builds the descriptors.
	Extensions ExtensionBuilder
	// Headers installs headers after the extensions are built.
	Headers HeaderInstaller
	// Dist runs last, only when requested.
	Dist Distributor
	// Plan renders descriptors without building them.
	Plan Planner
	// Lock is held while the build-temp tree is in use.
	Lock Locker
	// RecordPath receives the install manifest; empty disables it.
	RecordPath string
	// InstallRoot is written into the install manifest.
	InstallRoot string
	// Fs is used for the install manifest.
	Fs afero.Fs
}

// Run builds every descriptor, then installs headers, then optionally packs the outputs.
func (d *Driver) Run(ctx context.Context, withDist bool) (*Report, error) {
	report := new(Report)

	err := d.locked(ctx, func(ctx context.Context) error {
		if err := d.buildExtensions(ctx); err != nil {
			return err
		}

		records, err := d.installHeaders(ctx)
		if err != nil {
			return err
		}

		report.Headers = records

		if !withDist {
			return nil
		}

		report.Dist, err = d.dist(ctx)

		return err
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}

// BuildExtensions runs only the extension step.
func (d *Driver) BuildExtensions(ctx context.Context) error {
	return d.locked(ctx, d.buildExtensions)
}

// InstallHeaders runs only the header step.
func (d *Driver) InstallHeaders(ctx context.Context) ([]headers.Record, error) {
	return d.installHeaders(ctx)
}

// Distribute packs existing outputs without building them.
func (d *Driver) Distribute(ctx context.Context) (*dist.Result, error) {
	var result *dist.Result

	err := d.locked(ctx, func(ctx context.Context) error {
		var err error

		result, err = d.dist(ctx)

		return err
	})

	return result, err
}

// RenderPlan prints the steps a build would run.
func (d *Driver) RenderPlan(ctx context.Context) error {
	if d.Plan == nil {
		return fmt.Errorf("plan: %w", errStepNotConfigured)
	}

	return d.Plan.Render(ctx, d.Descriptors)
}

func (d *Driver) buildExtensions(ctx context.Context) error {
	if d.Extensions == nil {
		return fmt.Errorf("build extensions: %w", errStepNotConfigured)
	}

	logger.InfoKV(ctx, "Building extensions", "count", len(d.Descriptors))

	return d.Extensions.BuildExtensions(ctx, d.Descriptors)
}

func (d *Driver) installHeaders(ctx context.Context) ([]headers.Record, error) {
	if d.Headers == nil {
		return nil, fmt.Errorf("install headers: %w", errStepNotConfigured)
	}

	records, err := d.Headers.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("install headers: %w", err)
	}

	if d.RecordPath != "" {
		fs := d.Fs
		if fs == nil {
			fs = afero.NewOsFs()
		}

		if err = headers.WriteManifest(fs, d.RecordPath, d.InstallRoot, records); err != nil {
			return nil, err
		}
	}

	return records, nil
}

func (d *Driver) dist(ctx context.Context) (*dist.Result, error) {
	if d.Dist == nil {
		return nil, fmt.Errorf("dist: %w", errStepNotConfigured)
	}

	result, err := d.Dist.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("dist: %w", err)
	}

	return result, nil
}

// locked runs fn while holding the lock, if one is configured.
func (d *Driver) locked(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if d.Lock == nil {
		return fn(ctx)
	}

	if err = d.Lock.Acquire(ctx); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}

	defer func() {
		if releaseErr := d.Lock.Release(ctx); releaseErr != nil {
			logger.WarnKV(ctx, "Failed to release lock", "error", releaseErr)

			if err == nil {
				err = fmt.Errorf("release lock: %w", releaseErr)
			}
		}
	}()

	return fn(ctx)
}

// Options are the inputs of New.
type Options struct {
	// Config is the validated project file.
	Config *config.Config
	// Env is the startup environment snapshot.
	Env config.Environment
	// Debug selects debug builds.
	Debug bool
	// InstallDir overrides the configured header install directory.
	InstallDir string
	// RecordPath receives the install manifest; empty disables it.
	RecordPath string
	// Runner executes child processes; nil means an exec runner on stdout and stderr.
	Runner invocation.Runner
	// LookPath searches for the generator; nil means exec.LookPath.
	LookPath func(file string) (string, error)
	// Fs is the project filesystem; nil means the OS filesystem.
	Fs afero.Fs
	// Out receives the plan table; nil means stdout.
	Out io.Writer
	// Color highlights the plan table.
	Color bool
}

// NewHeaders wires only the header step. It needs neither the interpreter nor the generator.
func NewHeaders(opts *Options) *Driver {
	fs := opts.fileSystem()
	installRoot := opts.installRoot()

	return &Driver{
		Headers: headers.New(&headers.Options{
			Fs:          fs,
			Roots:       opts.Config.HeaderRoots(),
			Suffix:      opts.Config.Headers.Suffix,
			InstallRoot: installRoot,
		}),
		RecordPath:  opts.RecordPath,
		InstallRoot: installRoot,
		Fs:          fs,
	}
}

// New wires every step from the project file.
// The generator is resolved first: when it is missing, no child process is started.
func New(ctx context.Context, opts *Options) (*Driver, error) {
	cfg := opts.Config

	generator, err := orchestrator.FindGenerator(cfg, opts.Env, opts.LookPath)
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Resolved generator", "path", generator)

	d, layout, err := NewDist(ctx, opts)
	if err != nil {
		return nil, err
	}

	descriptors, err := cfg.Descriptors()
	if err != nil {
		return nil, err
	}

	runner := opts.runner()

	standard := compiler.New(&compiler.Options{
		Env:        opts.Env,
		ChildEnv:   cfg.ChildEnv,
		Layout:     layout,
		ModuleRoot: cfg.ModuleRootDir(),
		Debug:      opts.Debug,
		Runner:     runner,
		Fs:         d.Fs,
	})

	orch := orchestrator.New(&orchestrator.Options{
		Config:    cfg,
		Env:       opts.Env,
		Layout:    layout,
		Debug:     opts.Debug,
		Runner:    runner,
		Standard:  standard,
		Fs:        d.Fs,
		LookPath:  opts.LookPath,
		Generator: generator,
	})

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	d.Descriptors = descriptors
	d.Extensions = orch
	d.Plan = plan.New(&plan.Options{
		Native:   orch,
		Standard: standard,
		Out:      out,
		Color:    opts.Color,
	})

	return d, nil
}

// NewDist wires the header, dist and lock steps. It does not need the generator.
func NewDist(ctx context.Context, opts *Options) (*Driver, buildpath.Layout, error) {
	cfg := opts.Config

	layout, err := ResolveLayout(ctx, cfg, opts.Env, opts.runner())
	if err != nil {
		return nil, buildpath.Layout{}, err
	}

	logger.InfoKV(ctx, "Resolved build layout",
		"lib_dir", layout.LibDir(),
		"temp_dir", layout.TempDir(),
		"platform", layout.PlatformTag,
		"version", layout.Version.String())

	d := NewHeaders(opts)
	d.Dist = dist.New(&dist.Options{
		Fs:          d.Fs,
		Name:        cfg.ResolvedPackageName(opts.Env.ToolkitSuffix()),
		Version:     opts.Env.ReleaseVersion(),
		PlatformTag: layout.PlatformTag,
		DistDir:     cfg.Path(cfg.DistDir),
		Trees: []dist.Tree{
			{Dir: layout.LibDir()},
			{Dir: d.InstallRoot, Prefix: "include", Optional: true},
		},
	})
	d.Lock = lock.New(&lock.Options{
		Fs:   d.Fs,
		Path: filepath.Join(cfg.Dir, lock.DefaultFilename),
	})

	return d, layout, nil
}

func (o *Options) runner() invocation.Runner {
	if o.Runner == nil {
		o.Runner = invocation.NewExecRunner()
	}

	return o.Runner
}

func (o *Options) fileSystem() afero.Fs {
	if o.Fs == nil {
		return afero.NewOsFs()
	}

	return o.Fs
}

func (o *Options) installRoot() string {
	if o.InstallDir != "" {
		return o.InstallDir
	}

	return o.Config.Path(o.Config.Headers.InstallDir)
}
