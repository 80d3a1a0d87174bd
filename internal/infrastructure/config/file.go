package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

var (
	ErrUnknownFormat = errors.New("unknown config file format")
	ErrMissingKey    = errors.New("config key not found")
)

// ReadFile parses a TOML, YAML or JSON file, chosen by extension, into a
// generic table.
func ReadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var table map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &table)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &table)
	case ".json":
		err = sonic.Unmarshal(data, &table)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return table, nil
}

// LoadSection decodes the table named key of a config file into out, which
// must be a pointer to a struct with json tags. Fields missing from the
// table keep their current values. Dotted keys select nested tables.
func LoadSection(path, key string, out any) error {
	table, err := ReadFile(path)
	if err != nil {
		return err
	}

	var section any = table
	if key != "" {
		for _, part := range strings.Split(key, ".") {
			m, ok := section.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: %s in %s", ErrMissingKey, key, path)
			}
			if section, ok = m[part]; !ok {
				return fmt.Errorf("%w: %s in %s", ErrMissingKey, key, path)
			}
		}
	}

	// normalize through JSON so every format honours the same struct tags
	data, err := sonic.Marshal(section)
	if err != nil {
		return fmt.Errorf("encode config section %s: %w", key, err)
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode config section %s: %w", key, err)
	}
	return nil
}

// ApplyFile loads a config file section into out and then re-applies every
// flag that was set explicitly on the command line, so flags win over the
// file and the file wins over flag defaults. fs must already be parsed.
func ApplyFile(fs *flag.FlagSet, path, key string, out any) error {
	if path == "" {
		return nil
	}

	explicit := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	if err := LoadSection(path, key, out); err != nil {
		return err
	}

	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			return fmt.Errorf("reapply flag -%s: %w", name, err)
		}
	}
	return nil
}
