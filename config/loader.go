package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. Nested keys use a double
// underscore: QSOLOG_STORE__PATH sets store.path.
const EnvPrefix = "QSOLOG_"

// Load builds a Config by layering, lowest precedence first:
//  1. Default()
//  2. every *.yaml / *.yml file in dir, in lexical order (skipped when dir is "")
//  3. QSOLOG_ environment variables
//
// dir must be a directory; single-file paths are rejected so split configs
// are always merged the same way.
func Load(dir string) (*Config, error) {
	k := koanf.New(".")
	loadedFrom := ""
	if strings.TrimSpace(dir) != "" {
		files, err := yamlFiles(dir)
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, filepath.Base(path), err)
			}
		}
		loadedFrom = dir
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := Default()
	// Slices decode element-wise over existing values; start empty so a
	// shorter list replaces the default instead of overlaying it.
	defaultPrefixes := cfg.Region.Prefixes
	cfg.Region.Prefixes = nil
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if len(cfg.Region.Prefixes) == 0 {
		cfg.Region.Prefixes = defaultPrefixes
	}
	cfg.LoadedFrom = loadedFrom
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func yamlFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrLoadConfig, dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
