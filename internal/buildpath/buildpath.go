package buildpath

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultRoot is the top-level build output directory.
const DefaultRoot = "build"

// Logical directory names shared by the build steps.
const (
	// LibDir holds compiled native libraries and linked binding modules.
	LibDir = "lib"
	// TempDir holds the shared out-of-tree configure tree and object files.
	TempDir = "temp"
)

// errInvalidVersion is returned when an interpreter version cannot be parsed.
var errInvalidVersion = errors.New("invalid interpreter version")

// Version is the major.minor interpreter version that build directories are keyed by.
type Version struct {
	// Major is the major version component.
	Major int `yaml:"major"`
	// Minor is the minor version component.
	Minor int `yaml:"minor"`
}

// String renders the version as "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// ParseVersion parses "3.7" or "3.7.4" style strings; components past minor are ignored.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 2 {
		return Version{}, fmt.Errorf("%q: %w", s, errInvalidVersion)
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return Version{}, fmt.Errorf("%q: %w", s, errInvalidVersion)
	}

	minor, err := strconv.Atoi(parts[1])
	if err != nil || minor < 0 {
		return Version{}, fmt.Errorf("%q: %w", s, errInvalidVersion)
	}

	return Version{Major: major, Minor: minor}, nil
}

// Name returns "build/{logical}.{platformTag}-{major}.{minor}".
func Name(logical, platformTag string, version Version) string {
	return NameIn(DefaultRoot, logical, platformTag, version)
}

// NameIn is Name with a caller-chosen build root.
func NameIn(root, logical, platformTag string, version Version) string {
	dir := fmt.Sprintf("%s.%s-%d.%d", logical, platformTag, version.Major, version.Minor)

	return filepath.Join(root, dir)
}

// ModulePath returns where a compiled module with a dotted name lands under dir.
// "pkg.sub.mod" becomes dir/pkg/sub/mod{suffix}.
func ModulePath(dir, moduleName, suffix string) string {
	segments := strings.Split(moduleName, ".")

	return filepath.Join(dir, filepath.Join(segments...)+suffix)
}

// PlatformTag mirrors the interpreter's platform naming for the given GOOS/GOARCH.
func PlatformTag(goos, goarch string) string {
	switch goos {
	case "windows":
		switch goarch {
		case "386":
			return "win32"
		case "arm64":
			return "win-arm64"
		default:
			return "win-amd64"
		}
	case "darwin":
		if goarch == "arm64" {
			return "macosx-arm64"
		}

		return "macosx-" + machine(goarch)
	default:
		return goos + "-" + machine(goarch)
	}
}

// ExtensionSuffix returns the file suffix of a compiled binding module on goos.
func ExtensionSuffix(goos string) string {
	if goos == "windows" {
		return ".pyd"
	}

	return ".so"
}

// machine maps GOARCH to the uname-style machine name.
func machine(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "386":
		return "i686"
	case "arm64":
		return "aarch64"
	case "arm":
		return "armv7l"
	case "ppc64le":
		return "ppc64le"
	default:
		return goarch
	}
}
