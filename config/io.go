package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// Format selects a config serialization.
type Format string

const (
	FormatBinary Format = "bin"
	FormatJSON   Format = "json"
	FormatTOML   Format = "toml"
	FormatYAML   Format = "yaml"
)

// Ext returns the file extension for a format.
func (f Format) Ext() string { return string(f) }

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatBinary:
		return FormatBinary, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatTOML:
		return FormatTOML, nil
	case FormatYAML:
		return FormatYAML, nil
	}
	return "", errors.Wrap(ErrUnimplemented, s)
}

// Marshal serializes a config file in the given format.
func Marshal(f *File, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(f, "", "  ")
	case FormatYAML:
		return yaml.Marshal(f)
	case FormatTOML:
		var sb strings.Builder
		if err := toml.NewEncoder(&sb).Encode(f); err != nil {
			return nil, err
		}
		return []byte(sb.String()), nil
	case FormatBinary:
		return rlp.EncodeToBytes(f)
	}
	return nil, ErrUnimplemented
}

// Unmarshal parses a config file in the given format.
func Unmarshal(data []byte, format Format) (*File, error) {
	f := new(File)
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, f); err != nil {
			return nil, err
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, f); err != nil {
			return nil, err
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, f); err != nil {
			return nil, err
		}
	case FormatBinary:
		if err := rlp.DecodeBytes(data, f); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnimplemented
	}
	return f, nil
}

// Save writes a config file; the format is taken from the extension.
func Save(f *File, path string) error {
	format, err := formatFromPath(path)
	if err != nil {
		return err
	}
	data, err := Marshal(f, format)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Load reads and parses a config file by extension, returning the
// initialized runtime Node.
func Load(path string) (*Node, error) {
	format, err := formatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Unmarshal(data, format)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return f.Init()
}

func formatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "yml" {
		ext = "yaml"
	}
	return ParseFormat(ext)
}
