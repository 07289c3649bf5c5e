package headers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/oshokin/extbuild/internal/logger"
)

// DefaultDirMode is used for created install directories.
const DefaultDirMode os.FileMode = 0o755

// maxRootLinks bounds the symbolic links followed for one root.
const maxRootLinks = 40

// errTooManyLinks is returned for a root behind a symbolic link loop.
var errTooManyLinks = errors.New("too many levels of symbolic links")

// Record describes one installed header.
type Record struct {
	// SourceFile is the copied file.
	SourceFile string `yaml:"source_file"`
	// RelativePath is relative to the header root the file was found under.
	RelativePath string `yaml:"relative_path"`
	// DestinationFile is InstallRoot joined with RelativePath.
	DestinationFile string `yaml:"destination_file"`
}

// Options configures an installer.
type Options struct {
	// Fs is the filesystem to read roots from and write to; nil means the OS filesystem.
	Fs afero.Fs
	// Roots are copied in order; a later root overwrites files of an earlier one.
	Roots []string
	// Suffix selects header files.
	Suffix string
	// InstallRoot receives the header trees.
	InstallRoot string
}

// Installer copies header trees into the install root preserving their structure.
type Installer struct {
	opts Options
	fs   afero.Fs
}

// New creates an installer.
func New(opts *Options) *Installer {
	i := &Installer{
		opts: *opts,
		fs:   opts.Fs,
	}

	if i.fs == nil {
		i.fs = afero.NewOsFs()
	}

	return i
}

// Run installs every header under every root. With no roots it writes nothing.
// The result holds one record per relative path, in first-seen order.
func (i *Installer) Run(ctx context.Context) ([]Record, error) {
	if len(i.opts.Roots) == 0 {
		logger.Debug(ctx, "No header roots declared, nothing to install")
		return nil, nil
	}

	if err := i.fs.MkdirAll(i.opts.InstallRoot, DefaultDirMode); err != nil {
		return nil, fmt.Errorf("create install root %s: %w", i.opts.InstallRoot, err)
	}

	var (
		records []Record
		index   = make(map[string]int)
	)

	for _, root := range i.opts.Roots {
		logger.InfoKV(ctx, "Installing headers", "root", root, "install_root", i.opts.InstallRoot)

		root, err := i.resolveRoot(root)
		if err != nil {
			return nil, err
		}

		err = afero.Walk(i.fs, root, func(path string, info fs.FileInfo, walkErr error) error {
			if walkErr != nil {
				if path == root && errors.Is(walkErr, os.ErrNotExist) {
					logger.WarnKV(ctx, "Header root does not exist", "root", root)
					return nil
				}

				return fmt.Errorf("walk %s: %w", path, walkErr)
			}

			if !info.Mode().IsRegular() || !strings.HasSuffix(info.Name(), i.opts.Suffix) {
				return nil
			}

			record, err := i.install(root, path, info.Mode().Perm())
			if err != nil {
				return err
			}

			if pos, ok := index[record.RelativePath]; ok {
				logger.DebugKV(ctx, "Header overwritten by a later root",
					"relative_path", record.RelativePath,
					"previous_source", records[pos].SourceFile)

				records[pos] = record

				return nil
			}

			index[record.RelativePath] = len(records)
			records = append(records, record)

			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	logger.InfoKV(ctx, "Headers installed", "count", len(records))

	return records, nil
}

// resolveRoot follows a root that is a symbolic link, so a linked directory is walked like a real one.
// Links below the root are not followed.
func (i *Installer) resolveRoot(root string) (string, error) {
	lstater, ok := i.fs.(afero.Lstater)
	if !ok {
		return root, nil
	}

	reader, ok := i.fs.(afero.LinkReader)
	if !ok {
		return root, nil
	}

	for range maxRootLinks {
		info, _, err := lstater.LstatIfPossible(root)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			return root, nil
		}

		target, err := reader.ReadlinkIfPossible(root)
		if err != nil {
			return "", fmt.Errorf("resolve header root %s: %w", root, err)
		}

		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(root), target)
		}

		root = target
	}

	return "", fmt.Errorf("resolve header root %s: %w", root, errTooManyLinks)
}

// install copies one header keeping its path relative to root.
func (i *Installer) install(root, source string, mode os.FileMode) (Record, error) {
	rel, err := filepath.Rel(root, source)
	if err != nil {
		return Record{}, fmt.Errorf("relative path of %s: %w", source, err)
	}

	destination := filepath.Join(i.opts.InstallRoot, rel)

	if err = i.fs.MkdirAll(filepath.Dir(destination), DefaultDirMode); err != nil {
		return Record{}, fmt.Errorf("create directory for %s: %w", destination, err)
	}

	if err = i.copyFile(source, destination, mode); err != nil {
		return Record{}, err
	}

	return Record{
		SourceFile:      source,
		RelativePath:    rel,
		DestinationFile: destination,
	}, nil
}

func (i *Installer) copyFile(source, destination string, mode os.FileMode) error {
	in, err := i.fs.Open(source)
	if err != nil {
		return fmt.Errorf("open %s: %w", source, err)
	}
	defer in.Close()

	out, err := i.fs.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", destination, err)
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s to %s: %w", source, destination, err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", destination, err)
	}

	if err = i.fs.Chmod(destination, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", destination, err)
	}

	return nil
}
