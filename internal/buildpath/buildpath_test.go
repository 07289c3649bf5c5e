package buildpath

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestName checks the directory naming scheme and its determinism.
func TestName(t *testing.T) {
	t.Parallel()

	v := Version{Major: 3, Minor: 7}

	got := Name("rmm", "linux-x86_64", v)
	require.Equal(t, filepath.FromSlash("build/rmm.linux-x86_64-3.7"), got)

	for range 5 {
		require.Equal(t, got, Name("rmm", "linux-x86_64", v))
	}

	require.Equal(t,
		filepath.Join("out", "lib.win-amd64-3.12"),
		NameIn("out", "lib", "win-amd64", Version{Major: 3, Minor: 12}))
}

// TestParseVersion covers accepted and rejected version strings.
func TestParseVersion(t *testing.T) {
	t.Parallel()

	v, err := ParseVersion("3.7")
	require.NoError(t, err)
	require.Equal(t, Version{Major: 3, Minor: 7}, v)
	require.Equal(t, "3.7", v.String())

	v, err = ParseVersion(" 3.11.4 ")
	require.NoError(t, err)
	require.Equal(t, Version{Major: 3, Minor: 11}, v)

	for _, bad := range []string{"", "3", "x.7", "3.y", "-1.2"} {
		_, err = ParseVersion(bad)
		require.ErrorIs(t, err, errInvalidVersion, bad)
	}
}

// TestPlatformTag verifies the GOOS/GOARCH to platform tag mapping.
func TestPlatformTag(t *testing.T) {
	t.Parallel()

	cases := map[[2]string]string{
		{"linux", "amd64"}:   "linux-x86_64",
		{"linux", "arm64"}:   "linux-aarch64",
		{"linux", "386"}:     "linux-i686",
		{"darwin", "arm64"}:  "macosx-arm64",
		{"darwin", "amd64"}:  "macosx-x86_64",
		{"windows", "amd64"}: "win-amd64",
		{"windows", "386"}:   "win32",
		{"freebsd", "riscv"}: "freebsd-riscv",
	}
	for in, want := range cases {
		require.Equal(t, want, PlatformTag(in[0], in[1]), in)
	}
}

// TestModulePath verifies dotted module names become nested paths.
func TestModulePath(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		filepath.Join("build", "lib", "cudf", "bindings", "join.so"),
		ModulePath(filepath.Join("build", "lib"), "cudf.bindings.join", ".so"))
	require.Equal(t, filepath.Join("out", "rmm.pyd"), ModulePath("out", "rmm", ExtensionSuffix("windows")))
}

// TestLayout derives the library, temp and module paths from one set of inputs.
func TestLayout(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "build")
	layout := Layout{
		Root:            root,
		PlatformTag:     "linux-x86_64",
		Version:         Version{Major: 3, Minor: 7},
		ExtensionSuffix: ".so",
	}

	require.Equal(t, filepath.Join(root, "lib.linux-x86_64-3.7"), layout.LibDir())
	require.Equal(t, filepath.Join(root, "temp.linux-x86_64-3.7"), layout.TempDir())
	require.Equal(t, filepath.Join(root, "lib.linux-x86_64-3.7", "cudf", "join.so"), layout.ModulePath("cudf.join"))

	out, err := layout.OutputDir("rmm")
	require.NoError(t, err)
	require.Equal(t, layout.LibDir(), out)

	out, err = layout.OutputDir("cudf.bindings.join")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(layout.LibDir(), "cudf", "bindings"), out)
}
