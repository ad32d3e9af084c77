package emit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the manifest written next to the artifacts.
const ManifestFile = "manifest.yaml"

// idNamespace scopes artifact ids to this tool.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/funvibe/surrogate/artifact"))

// ArtifactID derives a stable id from a class name.
func ArtifactID(class string) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte(class))
}

// Entry describes one emitted artifact.
type Entry struct {
	ID     string `yaml:"id"`
	Class  string `yaml:"class"`
	Origin string `yaml:"origin"`
	File   string `yaml:"file,omitempty"`
	Size   int    `yaml:"size"`
}

// Manifest summarizes one build.
type Manifest struct {
	Fingerprint string  `yaml:"fingerprint"`
	Format      string  `yaml:"format"`
	Classes     int     `yaml:"classes"`
	Methods     int     `yaml:"methods"`
	Artifacts   []Entry `yaml:"artifacts"`
}

// WriteManifest writes m into dir.
func WriteManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest reads the manifest of an output directory.
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}
