package extension

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// BuiltinName is the extension used when no manifest is configured
const BuiltinName = "azurecore"

// Contributes declares what an extension adds to the explorer
type Contributes struct {
	HasResourceProviders bool     `yaml:"has_resource_providers" json:"hasResourceProviders"`
	ResourceProviders    []string `yaml:"resource_providers" json:"resourceProviders,omitempty"`
}

// Manifest describes one extension
type Manifest struct {
	Name        string      `yaml:"name" json:"name"`
	Contributes Contributes `yaml:"contributes" json:"contributes"`
}

// Builtin returns the manifest of the built-in extension contributing every
// catalog provider
func Builtin(catalog Catalog) Manifest {
	return Manifest{
		Name: BuiltinName,
		Contributes: Contributes{
			HasResourceProviders: true,
			ResourceProviders:    catalog.Names(),
		},
	}
}

// ParseManifest decodes a YAML manifest. A missing name defaults to fallbackName.
func ParseManifest(data []byte, fallbackName string) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Name == "" {
		m.Name = fallbackName
	}
	return m, nil
}

// manifestFile is one manifest read from disk, or the error reading it
type manifestFile struct {
	name     string
	manifest Manifest
	err      error
}

// loadDir reads every *.yaml and *.yml manifest in dir in name order.
// A file that cannot be read or parsed is returned with its error so that
// one bad manifest does not hide the others.
func loadDir(dir string) ([]manifestFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extensions directory: %w", err)
	}

	var files []manifestFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		base := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))

		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			files = append(files, manifestFile{name: base, err: fmt.Errorf("failed to read manifest file: %w", err)})
			continue
		}
		m, err := ParseManifest(data, base)
		files = append(files, manifestFile{name: base, manifest: m, err: err})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}
