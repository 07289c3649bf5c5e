package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/extbuild/internal/config"
)

// execute runs the root command with args. Commands share package state, so tests are sequential.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()

	return out.String(), err
}

func TestInit_WritesLoadableProject(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.DefaultConfigFilename)

	out, err := execute(t, "init", "cudf", "--config", path, "--force=false")
	require.NoError(t, err)
	require.Equal(t, path+"\n", out)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Extensions, 3)
	require.Equal(t, "cudf", cfg.Extensions[1].Name)

	_, err = execute(t, "init", "cudf", "--config", path, "--force=false")
	require.ErrorIs(t, err, errProjectExists)
}

func TestInstallHeaders_PrintsInstalledFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, config.Save(path, config.Sample("cudf")))

	header := filepath.Join(dir, "cpp", "include", "cudf", "types.h")
	require.NoError(t, os.MkdirAll(filepath.Dir(header), 0o755))
	require.NoError(t, os.WriteFile(header, []byte("#pragma once\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cpp", "include", "README"), []byte("skip"), 0o644))

	installDir := filepath.Join(dir, "out")

	out, err := execute(t, "install-headers", "--config", path, "--install-dir", installDir, "--record", "")
	require.NoError(t, err)

	installed := filepath.Join(installDir, "cudf", "types.h")
	require.Equal(t, []string{installed}, strings.Fields(out))

	contents, err := os.ReadFile(installed)
	require.NoError(t, err)
	require.Equal(t, "#pragma once\n", string(contents))
}

func TestUnknownLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.DefaultConfigFilename)

	_, err := execute(t, "init", "cudf", "--config", path, "--log-level", "loud")
	require.ErrorContains(t, err, "unknown log level")

	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = execute(t, "init", "cudf", "--config", path, "--log-level", "info")
	require.NoError(t, err)
}
