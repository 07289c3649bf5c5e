package plan

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/extbuild/internal/buildpath"
	"github.com/oshokin/extbuild/internal/config"
	"github.com/oshokin/extbuild/internal/extension"
	"github.com/oshokin/extbuild/internal/invocation/invocationtest"
	"github.com/oshokin/extbuild/internal/service/compiler"
	"github.com/oshokin/extbuild/internal/service/orchestrator"
)

func newRenderer(t *testing.T, out *bytes.Buffer, runner *invocationtest.Recorder) *Renderer {
	t.Helper()

	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/src/python/cudf/bindings/join.cpp", []byte("x"), 0o644))

	fs := afero.NewReadOnlyFs(base)

	cfg := &config.Config{PackageName: "cudf"}
	require.NoError(t, config.Validate(cfg))

	layout := buildpath.Layout{
		Root:            "/src/build",
		PlatformTag:     "linux-x86_64",
		Version:         buildpath.Version{Major: 3, Minor: 7},
		ExtensionSuffix: ".so",
	}

	builder := compiler.New(&compiler.Options{
		Layout:     layout,
		ModuleRoot: "/src/python",
		Runner:     runner,
		Fs:         fs,
	})

	orch := orchestrator.New(&orchestrator.Options{
		Config:   cfg,
		Env:      config.NewEnvironment(map[string]string{config.EnvGeneratorExecutable: "/opt/cmake"}),
		Layout:   layout,
		Runner:   runner,
		Standard: builder,
		Fs:       fs,
	})

	return New(&Options{Native: orch, Standard: builder, Out: out})
}

func descriptors(t *testing.T) []extension.Descriptor {
	t.Helper()

	rmm, err := extension.NewNativeTarget("rmm", "/src/cpp")
	require.NoError(t, err)

	return []extension.Descriptor{
		rmm,
		extension.NewStandardExtension(extension.WildcardName, extension.StandardOptions{
			Sources:          []string{"/src/python/cudf/bindings/*.cpp"},
			LibraryBuildDirs: []string{"lib"},
			Libraries:        []string{"cudf"},
			Language:         compiler.LanguageCXX,
		}),
	}
}

// TestRows lists every step in descriptor order.
func TestRows(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	renderer := newRenderer(t, &out, &invocationtest.Recorder{})

	rows, err := renderer.Rows(context.Background(), descriptors(t))
	require.NoError(t, err)
	require.Len(t, rows, 4)

	require.Equal(t, "configure", rows[0].Step)
	require.Equal(t, "/opt/cmake", rows[0].Command[0])
	require.Equal(t, []string{"make", "-j", "rmm"}, rows[1].Command)
	require.Equal(t, "compile", rows[2].Step)
	require.Equal(t, "cudf.bindings.join", rows[2].Name)
	require.Equal(t, "link", rows[3].Step)
	require.Equal(t, 2, rows[3].Index)
	require.Equal(t, filepath.Join("/src/build", "lib.linux-x86_64-3.7", "cudf", "bindings", "join.so"), rows[3].Output)
}

// TestRender_NoSideEffects renders without spawning children or writing files.
func TestRender_NoSideEffects(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	runner := &invocationtest.Recorder{}
	renderer := newRenderer(t, &out, runner)

	require.NoError(t, renderer.Render(context.Background(), descriptors(t)))
	require.Empty(t, runner.Calls())

	text := out.String()
	require.Contains(t, text, "KIND")
	require.Contains(t, text, "-DCMAKE_BUILD_TYPE=Release")
	require.Contains(t, text, "make -j rmm")
	require.Contains(t, text, "-lcudf")
}

// TestRender_MissingGenerator fails like the build would.
func TestRender_MissingGenerator(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{PackageName: "cudf", Generator: config.Generator{Executable: "cmake-that-does-not-exist-anywhere"}}
	require.NoError(t, config.Validate(cfg))

	orch := orchestrator.New(&orchestrator.Options{
		Config: cfg,
		Env:    config.NewEnvironment(nil),
		Fs:     afero.NewReadOnlyFs(afero.NewMemMapFs()),
	})

	var out bytes.Buffer

	renderer := New(&Options{Native: orch, Out: &out})

	err := renderer.Render(context.Background(), descriptors(t)[:1])
	require.ErrorIs(t, err, orchestrator.ErrGeneratorNotFound)
	require.Empty(t, out.String())
}
