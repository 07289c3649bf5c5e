package headers

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// manifestFileMode is the permission of written install manifests.
const manifestFileMode = 0o644

// Manifest lists the headers installed by one run.
type Manifest struct {
	InstallRoot string   `yaml:"install_root"`
	Files       []Record `yaml:"files"`
}

// WriteManifest saves the records as a YAML manifest at path.
func WriteManifest(fs afero.Fs, path, installRoot string, records []Record) error {
	manifest := Manifest{
		InstallRoot: installRoot,
		Files:       records,
	}

	if manifest.Files == nil {
		manifest.Files = []Record{}
	}

	data, err := yaml.Marshal(&manifest)
	if err != nil {
		return fmt.Errorf("marshal install manifest: %w", err)
	}

	if err = afero.WriteFile(fs, path, data, manifestFileMode); err != nil {
		return fmt.Errorf("write install manifest %s: %w", path, err)
	}

	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(fs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read install manifest %s: %w", path, err)
	}

	var manifest Manifest
	if err = yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("unmarshal install manifest: %w", err)
	}

	return &manifest, nil
}
