package headers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()

	for name, contents := range files {
		require.NoError(t, afero.WriteFile(fs, filepath.FromSlash(name), []byte(contents), 0o644))
	}
}

// TestRun_PreservesStructure copies every header byte-identically under its relative path.
func TestRun_PreservesStructure(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/src/cpp/include/cudf.h":                "#include \"cudf/types.h\"",
		"/src/cpp/include/cudf/types.h":          "typedef int gdf_size_type;",
		"/src/cpp/include/cudf/detail/utils.h":   "#pragma once",
		"/src/cpp/include/cudf/detail/utils.hpp": "skip",
		"/src/cpp/include/README.md":             "skip",
	})

	installer := New(&Options{
		Fs:          fs,
		Roots:       []string{"/src/cpp/include"},
		Suffix:      ".h",
		InstallRoot: "/prefix/include",
	})

	records, err := installer.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	for _, record := range records {
		require.False(t, filepath.IsAbs(record.RelativePath), record.RelativePath)
		require.Equal(t, filepath.Join("/prefix/include", record.RelativePath), record.DestinationFile)

		want, err := afero.ReadFile(fs, record.SourceFile)
		require.NoError(t, err)

		got, err := afero.ReadFile(fs, record.DestinationFile)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	exists, err := afero.Exists(fs, filepath.FromSlash("/prefix/include/cudf/detail/utils.h"))
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = afero.Exists(fs, filepath.FromSlash("/prefix/include/cudf/detail/utils.hpp"))
	require.NoError(t, err)
	require.False(t, exists)
}

// TestRun_NoRootsWritesNothing succeeds on a read-only filesystem.
func TestRun_NoRootsWritesNothing(t *testing.T) {
	t.Parallel()

	installer := New(&Options{
		Fs:          afero.NewReadOnlyFs(afero.NewMemMapFs()),
		Suffix:      ".h",
		InstallRoot: "/prefix/include",
	})

	records, err := installer.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, records)
}

// TestRun_LaterRootWins keeps one record per relative path with the later root's content.
func TestRun_LaterRootWins(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/a/common.h":    "from a",
		"/a/only_a.h":    "a",
		"/b/common.h":    "from b",
		"/b/sub/only.h":  "b",
		"/empty/notes.x": "nothing",
	})

	installer := New(&Options{
		Fs:          fs,
		Roots:       []string{"/a", "/empty", "/b"},
		Suffix:      ".h",
		InstallRoot: "/out",
	})

	records, err := installer.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	require.Equal(t, "common.h", records[0].RelativePath)
	require.Equal(t, filepath.FromSlash("/b/common.h"), records[0].SourceFile)

	data, err := afero.ReadFile(fs, filepath.FromSlash("/out/common.h"))
	require.NoError(t, err)
	require.Equal(t, "from b", string(data))
}

// TestRun_PreservesMode keeps the permission bits of the source file.
func TestRun_PreservesMode(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/inc/gen.h", []byte("x"), 0o600))

	installer := New(&Options{Fs: fs, Roots: []string{"/inc"}, Suffix: ".h", InstallRoot: "/out"})

	_, err := installer.Run(context.Background())
	require.NoError(t, err)

	info, err := fs.Stat(filepath.FromSlash("/out/gen.h"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

// TestRun_MissingRootContributesNothing skips an absent root.
func TestRun_MissingRootContributesNothing(t *testing.T) {
	t.Parallel()

	installer := New(&Options{Fs: afero.NewMemMapFs(), Roots: []string{"/missing"}, Suffix: ".h", InstallRoot: "/out"})

	records, err := installer.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, records)
}

// TestRun_SymlinkedRoot walks a root that is a symbolic link to a directory.
func TestRun_SymlinkedRoot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "thirdparty", "include")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "rmm"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "rmm", "rmm.h"), []byte("#pragma once"), 0o644))

	link := filepath.Join(dir, "include")
	require.NoError(t, os.Symlink(filepath.Join("thirdparty", "include"), link))

	installRoot := filepath.Join(dir, "out")

	installer := New(&Options{Fs: afero.NewOsFs(), Roots: []string{link}, Suffix: ".h", InstallRoot: installRoot})

	records, err := installer.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, filepath.Join("rmm", "rmm.h"), records[0].RelativePath)

	contents, err := os.ReadFile(filepath.Join(installRoot, "rmm", "rmm.h"))
	require.NoError(t, err)
	require.Equal(t, "#pragma once", string(contents))
}

// TestRun_WriteFailure propagates filesystem errors.
func TestRun_WriteFailure(t *testing.T) {
	t.Parallel()

	base := afero.NewMemMapFs()
	writeFiles(t, base, map[string]string{"/inc/a.h": "x"})

	installer := New(&Options{
		Fs:          afero.NewReadOnlyFs(base),
		Roots:       []string{"/inc"},
		Suffix:      ".h",
		InstallRoot: "/out",
	})

	_, err := installer.Run(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "install root")
}

// TestManifestRoundtrip writes the install manifest and reads it back.
func TestManifestRoundtrip(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	records := []Record{{SourceFile: "/inc/a.h", RelativePath: "a.h", DestinationFile: "/out/a.h"}}

	require.NoError(t, WriteManifest(fs, "/installed.yaml", "/out", records))

	manifest, err := ReadManifest(fs, "/installed.yaml")
	require.NoError(t, err)
	require.Equal(t, "/out", manifest.InstallRoot)
	require.Equal(t, records, manifest.Files)
}
