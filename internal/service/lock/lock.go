package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/go-ps"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/extbuild/internal/logger"
)

// DefaultFilename is the marker file name, kept next to the project file.
const DefaultFilename = ".extbuild.lock"

// markerFileMode is the permission of the marker file.
const markerFileMode os.FileMode = 0o644

var (
	// ErrLocked is returned when a live process holds the marker.
	ErrLocked = errors.New("another build is running")
	// errNotHeld is returned by Release when the marker belongs to another run.
	errNotHeld = errors.New("lock is held by another run")
	// errIncompleteMarker is returned for markers without a PID or run id.
	errIncompleteMarker = errors.New("lock marker is incomplete")
)

// Marker is the content of the marker file.
type Marker struct {
	PID       int       `yaml:"pid"`
	RunID     string    `yaml:"run_id"`
	StartedAt time.Time `yaml:"started_at"`
}

// Options configures a lock.
type Options struct {
	// Fs holds the marker file; nil means the OS filesystem.
	Fs afero.Fs
	// Path is the marker file path.
	Path string
	// PID is recorded in the marker; 0 means the current process.
	PID int
	// Alive reports whether a process exists; nil means a process table lookup.
	Alive func(pid int) (bool, error)
	// Now returns the current time; nil means time.Now.
	Now func() time.Time
}

// Lock is a marker-file lock guarding the shared build-temp tree.
type Lock struct {
	opts   Options
	fs     afero.Fs
	marker Marker
	held   bool
}

// New creates a lock. Nothing is written until Acquire.
func New(opts *Options) *Lock {
	l := &Lock{
		opts: *opts,
		fs:   opts.Fs,
	}

	if l.fs == nil {
		l.fs = afero.NewOsFs()
	}

	if l.opts.PID == 0 {
		l.opts.PID = os.Getpid()
	}

	if l.opts.Alive == nil {
		l.opts.Alive = processAlive
	}

	if l.opts.Now == nil {
		l.opts.Now = time.Now
	}

	return l
}

// Acquire writes the marker. A marker left by a dead process is removed and
// acquisition is retried once.
func (l *Lock) Acquire(ctx context.Context) error {
	if l.held {
		return nil
	}

	marker := Marker{
		PID:       l.opts.PID,
		RunID:     uuid.NewString(),
		StartedAt: l.opts.Now().UTC(),
	}

	for attempt := 0; attempt < 2; attempt++ {
		err := l.create(&marker)
		if err == nil {
			l.marker = marker
			l.held = true

			logger.DebugKV(ctx, "Lock acquired", "path", l.opts.Path, "run_id", marker.RunID)

			return nil
		}

		if !errors.Is(err, os.ErrExist) {
			return err
		}

		if err = l.reclaim(ctx); err != nil {
			return err
		}
	}

	return fmt.Errorf("%s: %w", l.opts.Path, ErrLocked)
}

// Release removes the marker if this lock holds it.
func (l *Lock) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}

	current, err := l.read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.held = false
			return nil
		}

		return err
	}

	if current.RunID != l.marker.RunID {
		l.held = false
		return fmt.Errorf("%s: %w", l.opts.Path, errNotHeld)
	}

	if err = l.fs.Remove(l.opts.Path); err != nil {
		return fmt.Errorf("remove lock marker: %w", err)
	}

	l.held = false

	logger.DebugKV(ctx, "Lock released", "path", l.opts.Path, "run_id", l.marker.RunID)

	return nil
}

// Marker returns the marker written by Acquire.
func (l *Lock) Marker() Marker {
	return l.marker
}

func (l *Lock) create(marker *Marker) error {
	data, err := yaml.Marshal(marker)
	if err != nil {
		return fmt.Errorf("marshal lock marker: %w", err)
	}

	file, err := l.fs.OpenFile(l.opts.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, markerFileMode)
	if err != nil {
		return err
	}

	if _, err = file.Write(data); err != nil {
		_ = file.Close()
		_ = l.fs.Remove(l.opts.Path)

		return fmt.Errorf("write lock marker: %w", err)
	}

	return file.Close()
}

// reclaim removes the marker unless its owner is alive.
func (l *Lock) reclaim(ctx context.Context) error {
	current, err := l.read()

	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		logger.WarnKV(ctx, "Unreadable lock marker, removing it", "path", l.opts.Path, "error", err)
	default:
		alive, aliveErr := l.opts.Alive(current.PID)
		if aliveErr != nil {
			return fmt.Errorf("check lock owner %d: %w", current.PID, aliveErr)
		}

		if alive {
			return fmt.Errorf("%s held by pid %d since %s (run %s): %w",
				l.opts.Path, current.PID, current.StartedAt.Format(time.RFC3339), current.RunID, ErrLocked)
		}

		logger.InfoKV(ctx, "Removing stale lock marker", "path", l.opts.Path, "pid", current.PID)
	}

	if err = l.fs.Remove(l.opts.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale lock marker: %w", err)
	}

	return nil
}

func (l *Lock) read() (*Marker, error) {
	data, err := afero.ReadFile(l.fs, l.opts.Path)
	if err != nil {
		return nil, err
	}

	var marker Marker
	if err = yaml.Unmarshal(data, &marker); err != nil {
		return nil, fmt.Errorf("unmarshal lock marker: %w", err)
	}

	if marker.PID <= 0 || marker.RunID == "" {
		return nil, fmt.Errorf("%s: %w", l.opts.Path, errIncompleteMarker)
	}

	return &marker, nil
}

// processAlive looks the PID up in the process table.
func processAlive(pid int) (bool, error) {
	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, err
	}

	return process != nil, nil
}
