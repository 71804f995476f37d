package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileNames are looked up in order by Find.
var FileNames = []string{"bale.yaml", "bale.yml", "bale.json", "bale.toml"}

// ErrNoConfigFile is returned by Find when no config file exists.
var ErrNoConfigFile = errors.New("no bale config file found")

// Find returns the first config file present in dir.
func Find(dir string) (string, error) {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoConfigFile, dir)
}

// Load reads, defaults and validates the config file at path.
// A relative root is resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(filepath.Dir(path), cfg.Root)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext (".yaml", ".json", ".toml")
// and applies defaults. It does not validate.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := &Config{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse json: %w", err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 && !onlyPluginOptions(undecoded) {
			return nil, fmt.Errorf("failed to parse toml: unknown key %s", undecoded[0])
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// plugin options are free-form maps, toml reports their nested keys as undecoded
func onlyPluginOptions(keys []toml.Key) bool {
	for _, k := range keys {
		if len(k) < 2 || k[0] != "plugins" || k[1] != "options" {
			return false
		}
	}
	return true
}

// ApplyDefaults fills every zero field except transform.on_error.
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.Root == "" {
		c.Root = d.Root
	}
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if len(c.Entry) == 0 {
		c.Entry = d.Entry
	}
	if c.Output.Dir == "" {
		c.Output.Dir = d.Output.Dir
	}
	if c.Output.Filename == "" {
		c.Output.Filename = d.Output.Filename
	}
	if c.Output.AssetFilename == "" {
		c.Output.AssetFilename = d.Output.AssetFilename
	}
	if len(c.Resolve.Extensions) == 0 {
		c.Resolve.Extensions = d.Resolve.Extensions
	}
	if len(c.Resolve.Modules) == 0 {
		c.Resolve.Modules = d.Resolve.Modules
	}
	if c.Rules == nil {
		c.Rules = d.Rules
	}
	if c.Transform.Timeout == 0 {
		c.Transform.Timeout = d.Transform.Timeout
	}
	if c.Transform.Concurrency <= 0 {
		c.Transform.Concurrency = d.Transform.Concurrency
	}
	if c.Emit.Retries == 0 {
		c.Emit.Retries = d.Emit.Retries
	}
	if c.Emit.Backoff == 0 {
		c.Emit.Backoff = d.Emit.Backoff
	}
	if c.Cache.Type == "" {
		c.Cache.Type = d.Cache.Type
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = d.Cache.Prefix
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = d.Watch.Debounce
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
}
