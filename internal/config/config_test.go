package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/extbuild/internal/extension"
)

// TestValidate_Defaults checks that an almost empty project gets every default.
func TestValidate_Defaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{PackageName: "cudf"}
	require.NoError(t, Validate(cfg))

	require.Equal(t, "build", cfg.BuildDir)
	require.Equal(t, DefaultDistDir, cfg.DistDir)
	require.Equal(t, DefaultInterpreter, cfg.Interpreter)
	require.Equal(t, DefaultGenerator, cfg.Generator.Executable)
	require.Equal(t, DefaultBuildTool, cfg.Generator.BuildTool)
	require.Equal(t, DefaultHeaderSuffix, cfg.Headers.Suffix)
	require.Equal(t, filepath.Join("install", "include"), cfg.Headers.InstallDir)
}

// TestValidate_Rejects covers malformed projects.
func TestValidate_Rejects(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)
	require.ErrorIs(t, Validate(new(Config)), errPackageNameRequired)

	cases := map[string]*Config{
		"unknown kind":  {PackageName: "p", Extensions: []Extension{{Name: "a", Kind: "rust"}}},
		"no source dir": {PackageName: "p", Extensions: []Extension{{Name: "a", Kind: "native"}}},
		"no sources":    {PackageName: "p", Extensions: []Extension{{Name: "a", Kind: "standard"}}},
		"no name":       {PackageName: "p", Extensions: []Extension{{Kind: "native", SourceDir: "cpp"}}},
		"duplicate": {PackageName: "p", Extensions: []Extension{
			{Name: "a", Kind: "native", SourceDir: "cpp"},
			{Name: "a", Kind: "native", SourceDir: "cpp"},
		}},
	}
	for name, cfg := range cases {
		require.ErrorIs(t, Validate(cfg), errInvalidExtension, name)
	}

	require.ErrorIs(t, Validate(&Config{PackageName: "p", Generator: Generator{Jobs: -1}}), errInvalidJobs)
	require.Error(t, Validate(&Config{PackageName: "p", InterpreterVersion: "three"}))
}

// TestSaveLoadRoundtrip ensures the project file is persisted and loaded back with its directory.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFilename)

	require.NoError(t, Save(path, Sample("cudf")))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "cudf-cuda{toolkit}", loaded.PackageName)
	require.Equal(t, dir, loaded.Dir)
	require.Len(t, loaded.Extensions, 3)
	require.Equal(t, []string{filepath.Join(dir, "cpp", "include")}, loaded.HeaderRoots())

	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestLoad_Missing reports a read error.
func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestDescriptors keeps order and resolves paths against the project directory.
func TestDescriptors(t *testing.T) {
	t.Parallel()

	cfg := Sample("cudf")
	cfg.Dir = filepath.Join(string(filepath.Separator), "src", "project")
	require.NoError(t, Validate(cfg))

	descriptors, err := cfg.Descriptors()
	require.NoError(t, err)
	require.Len(t, descriptors, 3)

	require.Equal(t, "rmm", descriptors[0].Name())
	require.Equal(t, extension.KindNative, descriptors[0].Kind())
	require.Equal(t, "cudf", descriptors[1].Name())
	require.Equal(t, extension.KindStandard, descriptors[2].Kind())

	native, ok := descriptors[0].(*extension.NativeTarget)
	require.True(t, ok)
	require.Equal(t, filepath.Join(cfg.Dir, "cpp"), native.SourceDir())

	standard, ok := descriptors[2].(*extension.StandardExtension)
	require.True(t, ok)
	require.Equal(t, []string{filepath.Join(cfg.Dir, "cpp", "include")}, standard.Options().IncludeDirs)
	require.Equal(t, []string{"lib"}, standard.Options().LibraryBuildDirs)
}

// TestResolvedPackageName substitutes the toolkit placeholder.
func TestResolvedPackageName(t *testing.T) {
	t.Parallel()

	cfg := &Config{PackageName: "cudf-cuda{toolkit}"}
	require.Equal(t, "cudf-cuda100", cfg.ResolvedPackageName("100"))

	cfg.PackageName = "plain"
	require.Equal(t, "plain", cfg.ResolvedPackageName("100"))
}
