package env

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// FileExtensions lists the configuration file types LoadFile accepts, in the
// order config locations are probed.
var FileExtensions = []string{"yaml", "yml", "toml", "json", "env"}

// LoadFile reads a configuration file into a map source named name. Nested
// keys are flattened to dotted form (server.port) and lower-cased.
func LoadFile(name, path string) (*MapPropertySource, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if !slices.Contains(FileExtensions, ext) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(ext)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	props := make(map[string]any)
	for _, k := range v.AllKeys() {
		props[k] = v.Get(k)
	}
	return NewMapPropertySource(name, props), nil
}
