//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName  = "extbuild"
	mainPackage = "./cmd/extbuild"
	versionPkg  = "github.com/oshokin/extbuild/internal/version"
	outputDir   = "bin"
)

// Default target to run when none is specified.
var Default = Build

// Build compiles the extbuild binary into bin/ with version metadata.
func Build() error {
	mg.Deps(Generate)

	output := filepath.Join(outputDir, binaryName)

	return sh.RunWith(map[string]string{"CGO_ENABLED": "0"},
		"go", "build", "-trimpath", "-ldflags", versionFlags(), "-o", output, mainPackage)
}

// Generate runs go generate over the module.
func Generate() error {
	return sh.RunV("go", "generate", "./...")
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "-count=1", "./...")
}

// Lint runs go vet and golangci-lint when it is installed.
func Lint() error {
	if err := sh.RunV("go", "vet", "./..."); err != nil {
		return err
	}

	if _, err := sh.Output("golangci-lint", "version"); err != nil {
		fmt.Println("golangci-lint not found, skipping")
		return nil
	}

	return sh.RunV("golangci-lint", "run", "./...")
}

// Check runs lint and tests.
func Check() {
	mg.SerialDeps(Lint, Test)
}

// Clean removes build outputs.
func Clean() error {
	return sh.Rm(outputDir)
}

// versionFlags injects version metadata from git into internal/version.
func versionFlags() string {
	version := os.Getenv("EXTBUILD_VERSION")
	if version == "" {
		tag, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
		if err != nil {
			tag = "0.0.0-dev"
		}

		version = strings.TrimPrefix(tag, "v")
	}

	commit, err := sh.Output("git", "rev-parse", "--short", "HEAD")
	if err != nil {
		commit = "none"
	}

	flags := []string{
		"-s", "-w",
		fmt.Sprintf("-X %s.Version=%s", versionPkg, version),
		fmt.Sprintf("-X %s.Commit=%s", versionPkg, commit),
		fmt.Sprintf("-X %s.BuildTime=%s", versionPkg, time.Now().UTC().Format(time.RFC3339)),
	}

	return strings.Join(flags, " ")
}
