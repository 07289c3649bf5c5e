package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const markerPath = "/project/.extbuild.lock"

func newTestLock(fs afero.Fs, pid int, alive map[int]bool) *Lock {
	return New(&Options{
		Fs:   fs,
		Path: markerPath,
		PID:  pid,
		Alive: func(pid int) (bool, error) {
			return alive[pid], nil
		},
		Now: func() time.Time {
			return time.Date(2019, 3, 1, 12, 0, 0, 0, time.UTC)
		},
	})
}

func readMarker(t *testing.T, fs afero.Fs) Marker {
	t.Helper()

	data, err := afero.ReadFile(fs, markerPath)
	require.NoError(t, err)

	var marker Marker
	require.NoError(t, yaml.Unmarshal(data, &marker))

	return marker
}

// TestAcquireRelease writes the marker and removes it again.
func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs := afero.NewMemMapFs()
	lock := newTestLock(fs, 100, nil)

	require.NoError(t, lock.Acquire(ctx))

	marker := readMarker(t, fs)
	require.Equal(t, 100, marker.PID)
	require.NotEmpty(t, marker.RunID)
	require.Equal(t, lock.Marker(), marker)

	require.NoError(t, lock.Release(ctx))

	exists, err := afero.Exists(fs, markerPath)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, lock.Release(ctx))
}

// TestAcquire_LiveHolder refuses while the first holder is alive.
func TestAcquire_LiveHolder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs := afero.NewMemMapFs()
	alive := map[int]bool{100: true, 200: true}

	first := newTestLock(fs, 100, alive)
	require.NoError(t, first.Acquire(ctx))

	second := newTestLock(fs, 200, alive)
	err := second.Acquire(ctx)
	require.ErrorIs(t, err, ErrLocked)
	require.ErrorContains(t, err, "pid 100")

	require.Equal(t, first.Marker().RunID, readMarker(t, fs).RunID)
}

// TestAcquire_StaleMarker reclaims a marker left by a dead process.
func TestAcquire_StaleMarker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs := afero.NewMemMapFs()

	dead := newTestLock(fs, 100, nil)
	require.NoError(t, dead.Acquire(ctx))

	next := newTestLock(fs, 200, map[int]bool{200: true})
	require.NoError(t, next.Acquire(ctx))
	require.Equal(t, 200, readMarker(t, fs).PID)
}

// TestAcquire_GarbageMarker treats an unreadable marker as stale.
func TestAcquire_GarbageMarker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, markerPath, []byte("::: not yaml"), 0o644))

	lock := newTestLock(fs, 300, nil)
	require.NoError(t, lock.Acquire(ctx))
	require.Equal(t, 300, readMarker(t, fs).PID)
}

// TestRelease_ForeignMarker leaves a marker written by another run in place.
func TestRelease_ForeignMarker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs := afero.NewMemMapFs()

	lock := newTestLock(fs, 100, nil)
	require.NoError(t, lock.Acquire(ctx))

	foreign, err := yaml.Marshal(&Marker{PID: 999, RunID: "other", StartedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, markerPath, foreign, 0o644))

	require.ErrorIs(t, lock.Release(ctx), errNotHeld)
	require.Equal(t, "other", readMarker(t, fs).RunID)
}

// TestProcessAlive finds the current process in the process table.
func TestProcessAlive(t *testing.T) {
	t.Parallel()

	alive, err := processAlive(os.Getpid())
	require.NoError(t, err)
	require.True(t, alive)
}
