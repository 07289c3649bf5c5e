package dist

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"

	"github.com/oshokin/extbuild/internal/logger"
)

const (
	// ArchiveSuffix is the extension of distribution archives.
	ArchiveSuffix = ".tar.xz"
	// RecordFilename is the name of the checksum list inside the metadata directory.
	RecordFilename = "RECORD"

	// DefaultFileMode is the permission of published archives.
	DefaultFileMode os.FileMode = 0o644
	// DefaultDirMode is used for the dist directory.
	DefaultDirMode os.FileMode = 0o755

	// checksumFunction hashes the published archive for go-update.
	checksumFunction = crypto.SHA256
)

var (
	// errMissingTree is returned when a required tree does not exist.
	errMissingTree = errors.New("tree does not exist")
	// errEmptyArchive is returned when no files were collected.
	errEmptyArchive = errors.New("nothing to archive")
	// errInvalidName is returned when the package name or version is empty.
	errInvalidName = errors.New("package name and version are required")
)

// Tree is a directory packed into the archive.
type Tree struct {
	// Dir is read from the source filesystem.
	Dir string
	// Prefix is the slash-separated archive directory the tree lands in; empty means the archive root.
	Prefix string
	// Optional trees are skipped when Dir does not exist.
	Optional bool
}

// Options configures a distribution build.
type Options struct {
	// Fs is where trees are read from; nil means the OS filesystem.
	Fs afero.Fs
	// Name is the resolved package name.
	Name string
	// Version is the release version.
	Version string
	// PlatformTag is the platform part of the archive name.
	PlatformTag string
	// DistDir receives the archive on the OS filesystem.
	DistDir string
	// Trees are packed in order.
	Trees []Tree
}

// Entry is one line of the RECORD file.
type Entry struct {
	// Path is slash-separated and relative to the archive root.
	Path string
	// Digest is "sha256=" followed by the unpadded URL-safe base64 hash; empty for RECORD itself.
	Digest string
	// Size is the file size; -1 for RECORD itself.
	Size int64
}

// String renders the entry as a RECORD line.
func (e Entry) String() string {
	if e.Size < 0 {
		return e.Path + ",,"
	}

	return e.Path + "," + e.Digest + "," + strconv.FormatInt(e.Size, 10)
}

// Result describes a published archive.
type Result struct {
	// Path is the archive path.
	Path string
	// Checksum is the SHA-256 of the archive.
	Checksum []byte
	// Entries are the RECORD lines, RECORD itself last.
	Entries []Entry
}

// Builder packs trees into a distribution archive.
type Builder struct {
	opts Options
	fs   afero.Fs
}

// New creates a builder.
func New(opts *Options) *Builder {
	b := &Builder{
		opts: *opts,
		fs:   opts.Fs,
	}

	if b.fs == nil {
		b.fs = afero.NewOsFs()
	}

	return b
}

// Build packs opts.Trees and publishes the archive.
func Build(ctx context.Context, opts *Options) (*Result, error) {
	return New(opts).Run(ctx)
}

// ArchiveName is "{name}-{version}-{platform}.tar.xz".
func ArchiveName(name, version, platformTag string) string {
	return name + "-" + version + "-" + platformTag + ArchiveSuffix
}

// MetadataDir is the archive directory holding RECORD.
func MetadataDir(name, version string) string {
	return strings.ReplaceAll(name, "-", "_") + "-" + version + ".dist-info"
}

// Run builds the archive in memory and publishes it into DistDir.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	if b.opts.Name == "" || b.opts.Version == "" {
		return nil, errInvalidName
	}

	ctx = logger.WithFields(ctx, "package", b.opts.Name, "version", b.opts.Version)

	var archive bytes.Buffer

	entries, err := b.write(ctx, &archive)
	if err != nil {
		return nil, err
	}

	checksum := sha256.Sum256(archive.Bytes())
	target := filepath.Join(b.opts.DistDir, ArchiveName(b.opts.Name, b.opts.Version, b.opts.PlatformTag))

	if err = publish(ctx, target, archive.Bytes(), checksum[:]); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Distribution archive written", "path", target, "files", len(entries)-1)

	return &Result{
		Path:     target,
		Checksum: checksum[:],
		Entries:  entries,
	}, nil
}

// write streams every tree and the RECORD file into w as an xz-compressed tarball.
func (b *Builder) write(ctx context.Context, w io.Writer) ([]Entry, error) {
	xzWriter, err := xz.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("create xz writer: %w", err)
	}

	tarWriter := tar.NewWriter(xzWriter)

	var entries []Entry

	for _, tree := range b.opts.Trees {
		treeEntries, treeErr := b.addTree(ctx, tarWriter, tree)
		if treeErr != nil {
			return nil, treeErr
		}

		entries = append(entries, treeEntries...)
	}

	if len(entries) == 0 {
		return nil, errEmptyArchive
	}

	recordPath := path.Join(MetadataDir(b.opts.Name, b.opts.Version), RecordFilename)
	entries = append(entries, Entry{Path: recordPath, Size: -1})

	var record strings.Builder
	for _, entry := range entries {
		record.WriteString(entry.String())
		record.WriteByte('\n')
	}

	if err = writeEntry(tarWriter, recordPath, []byte(record.String()), DefaultFileMode); err != nil {
		return nil, err
	}

	if err = tarWriter.Close(); err != nil {
		return nil, fmt.Errorf("close tar writer: %w", err)
	}

	if err = xzWriter.Close(); err != nil {
		return nil, fmt.Errorf("close xz writer: %w", err)
	}

	return entries, nil
}

func (b *Builder) addTree(ctx context.Context, tw *tar.Writer, tree Tree) ([]Entry, error) {
	if _, err := b.fs.Stat(tree.Dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if tree.Optional {
				logger.DebugKV(ctx, "Skipping missing optional tree", "dir", tree.Dir)
				return nil, nil
			}

			return nil, fmt.Errorf("%s: %w", tree.Dir, errMissingTree)
		}

		return nil, fmt.Errorf("stat %s: %w", tree.Dir, err)
	}

	var entries []Entry

	err := afero.Walk(b.fs, tree.Dir, func(file string, info fs.FileInfo, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk %s: %w", file, walkErr)
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(tree.Dir, file)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", file, err)
		}

		name := path.Join(tree.Prefix, filepath.ToSlash(rel))

		data, err := afero.ReadFile(b.fs, file)
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}

		if err = writeEntry(tw, name, data, info.Mode().Perm()); err != nil {
			return err
		}

		entries = append(entries, Entry{
			Path:   name,
			Digest: Digest(data),
			Size:   int64(len(data)),
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Digest is "sha256=" followed by the unpadded URL-safe base64 SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256=" + base64.RawURLEncoding.EncodeToString(sum[:])
}

func writeEntry(tw *tar.Writer, name string, data []byte, mode os.FileMode) error {
	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     int64(mode),
		Size:     int64(len(data)),
		Format:   tar.FormatPAX,
	}

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write header of %s: %w", name, err)
	}

	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	return nil
}

// publish replaces target with data, verifying the checksum before the swap.
func publish(ctx context.Context, target string, data, checksum []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), DefaultDirMode); err != nil {
		return fmt.Errorf("create dist directory: %w", err)
	}

	if _, err := os.Stat(target); err != nil && os.IsNotExist(err) {
		file, createErr := os.Create(target)
		if createErr != nil {
			return createErr
		}

		_ = file.Close()
	}

	logger.Debug(ctx, "Applying archive")

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: DefaultFileMode,
		Checksum:   checksum,
		Hash:       checksumFunction,
	}

	if err := goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("publish %s: %w", target, err)
	}

	oldFileName := filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+".old")
	if _, err := os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return nil
}
