package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Manifest is a declarative capability table, typically loaded from a
// launchpad.yaml or launchpad.toml file shipped next to the binary:
//
//	capabilities:
//	  run-listener:
//	    - event-publishing
//	    - config-data
type Manifest struct {
	Capabilities map[string][]string `yaml:"capabilities" toml:"capabilities" json:"capabilities"`
}

// NamesFor implements Source.
func (m *Manifest) NamesFor(capability string) ([]string, error) {
	if m == nil {
		return nil, nil
	}
	return append([]string(nil), m.Capabilities[capability]...), nil
}

// LoadManifest reads a YAML (.yaml/.yml) or TOML (.toml) manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data, strings.TrimPrefix(filepath.Ext(path), "."))
}

// ParseManifest decodes manifest bytes in the given format ("yaml", "yml" or "toml").
func ParseManifest(data []byte, format string) (*Manifest, error) {
	m := &Manifest{}
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("failed to parse YAML manifest: %w", err)
		}
	case "toml":
		if err := toml.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("failed to parse TOML manifest: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrManifestFormat, format)
	}
	if m.Capabilities == nil {
		m.Capabilities = make(map[string][]string)
	}
	return m, nil
}

// StaticSource is an in-memory capability table.
type StaticSource map[string][]string

// NamesFor implements Source.
func (s StaticSource) NamesFor(capability string) ([]string, error) {
	return append([]string(nil), s[capability]...), nil
}

// ChainSource concatenates the names declared by each source, in order.
type ChainSource []Source

// NamesFor implements Source.
func (c ChainSource) NamesFor(capability string) ([]string, error) {
	var names []string
	for _, src := range c {
		n, err := src.NamesFor(capability)
		if err != nil {
			return nil, err
		}
		names = append(names, n...)
	}
	return names, nil
}
