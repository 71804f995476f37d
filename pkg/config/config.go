// Package config holds the bale.yaml / bale.json / bale.toml schema.
package config

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Modes.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Transform error policies.
const (
	OnErrorFail = "fail"
	OnErrorSkip = "skip"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

var (
	// ErrMissingErrorPolicy is returned when transform.on_error is unset.
	ErrMissingErrorPolicy = errors.New("transform.on_error must be set to \"fail\" or \"skip\"")

	// ErrInvalidConfig wraps every other validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the complete build configuration.
type Config struct {
	Root    string            `yaml:"root" json:"root" toml:"root"`
	Mode    string            `yaml:"mode" json:"mode" toml:"mode"`
	Entry   map[string]string `yaml:"entry" json:"entry" toml:"entry"`
	Output  OutputConfig      `yaml:"output" json:"output" toml:"output"`
	Resolve ResolveConfig     `yaml:"resolve" json:"resolve" toml:"resolve"`
	Rules   []Rule            `yaml:"rules" json:"rules" toml:"rules"`
	Plugins []PluginConfig    `yaml:"plugins" json:"plugins" toml:"plugins"`

	// Define maps dotted identifiers to the JS source that replaces them,
	// e.g. process.env.NODE_ENV: '"production"'.
	Define map[string]string `yaml:"define" json:"define" toml:"define"`
	Banner string            `yaml:"banner" json:"banner" toml:"banner"`

	Transform TransformConfig `yaml:"transform" json:"transform" toml:"transform"`
	Emit      EmitConfig      `yaml:"emit" json:"emit" toml:"emit"`
	Cache     CacheConfig     `yaml:"cache" json:"cache" toml:"cache"`
	Watch     WatchConfig     `yaml:"watch" json:"watch" toml:"watch"`
	Server    ServerConfig    `yaml:"server" json:"server" toml:"server"`
}

type OutputConfig struct {
	Dir string `yaml:"dir" json:"dir" toml:"dir"`
	// Filename is the chunk name template: [name], [hash].
	Filename string `yaml:"filename" json:"filename" toml:"filename"`
	// AssetFilename is the emitted asset template: [name], [ext], [hash].
	AssetFilename string `yaml:"asset_filename" json:"asset_filename" toml:"asset_filename"`
	PublicPath    string `yaml:"public_path" json:"public_path" toml:"public_path"`
	Manifest      bool   `yaml:"manifest" json:"manifest" toml:"manifest"`
}

type ResolveConfig struct {
	Extensions []string          `yaml:"extensions" json:"extensions" toml:"extensions"`
	Modules    []string          `yaml:"modules" json:"modules" toml:"modules"`
	Alias      map[string]string `yaml:"alias" json:"alias" toml:"alias"`
}

// Rule classifies files whose path matches Test.
type Rule struct {
	Test string `yaml:"test" json:"test" toml:"test"`
	Kind string `yaml:"kind" json:"kind" toml:"kind"`
	// Limit is the inline threshold in bytes for assets: smaller files
	// become data URIs. Zero never inlines.
	Limit int `yaml:"limit" json:"limit" toml:"limit"`
	// Filename overrides output.asset_filename for matching assets.
	Filename string `yaml:"filename" json:"filename" toml:"filename"`

	re *regexp.Regexp
}

// Matches reports whether p matches the rule. Validate compiles the pattern.
func (r Rule) Matches(p string) bool {
	return r.re != nil && r.re.MatchString(p)
}

type PluginConfig struct {
	Name    string         `yaml:"name" json:"name" toml:"name"`
	Enabled *bool          `yaml:"enabled" json:"enabled" toml:"enabled"`
	Options map[string]any `yaml:"options" json:"options" toml:"options"`
}

// IsEnabled defaults to true when the field is omitted.
func (p PluginConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

type TransformConfig struct {
	OnError     string   `yaml:"on_error" json:"on_error" toml:"on_error"`
	Timeout     Duration `yaml:"timeout" json:"timeout" toml:"timeout"`
	Concurrency int      `yaml:"concurrency" json:"concurrency" toml:"concurrency"`
}

type EmitConfig struct {
	Retries int      `yaml:"retries" json:"retries" toml:"retries"`
	Backoff Duration `yaml:"backoff" json:"backoff" toml:"backoff"`
}

type CacheConfig struct {
	Type     string   `yaml:"type" json:"type" toml:"type"`
	Addr     string   `yaml:"addr" json:"addr" toml:"addr"`
	Password string   `yaml:"password" json:"password" toml:"password"`
	DB       int      `yaml:"db" json:"db" toml:"db"`
	Prefix   string   `yaml:"prefix" json:"prefix" toml:"prefix"`
	TTL      Duration `yaml:"ttl" json:"ttl" toml:"ttl"`
	// Lock serializes builds across processes through the same redis.
	Lock bool `yaml:"lock" json:"lock" toml:"lock"`
}

type WatchConfig struct {
	Ignore   []string `yaml:"ignore" json:"ignore" toml:"ignore"`
	Debounce Duration `yaml:"debounce" json:"debounce" toml:"debounce"`
	// Supersede cancels the running build when a newer change arrives.
	Supersede bool `yaml:"supersede" json:"supersede" toml:"supersede"`
}

type ServerConfig struct {
	Port int `yaml:"port" json:"port" toml:"port"`
}

// Default returns a configuration with every field but transform.on_error set.
func Default() *Config {
	return &Config{
		Root:  ".",
		Mode:  ModeDevelopment,
		Entry: map[string]string{"main": "./src/index.js"},
		Output: OutputConfig{
			Dir:           "dist",
			Filename:      "[name].js",
			AssetFilename: "[hash][ext]",
			Manifest:      true,
		},
		Resolve: ResolveConfig{
			Extensions: []string{".js", ".json"},
			Modules:    []string{"node_modules"},
		},
		Rules: []Rule{
			{Test: `\.(png|jpe?g|gif|svg|webp|ico)$`, Kind: "asset", Limit: 10000},
			{Test: `\.(woff2?|ttf|eot|otf)$`, Kind: "asset"},
		},
		Transform: TransformConfig{
			Timeout:     Duration(10 * time.Second),
			Concurrency: runtime.NumCPU(),
		},
		Emit: EmitConfig{
			Retries: 3,
			Backoff: Duration(50 * time.Millisecond),
		},
		Cache: CacheConfig{
			Type:   CacheMemory,
			Prefix: "bale:",
		},
		Watch: WatchConfig{
			Debounce: Duration(100 * time.Millisecond),
		},
		Server: ServerConfig{Port: 8080},
	}
}

// Validate checks the configuration and compiles rule patterns.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	switch c.Transform.OnError {
	case OnErrorFail, OnErrorSkip:
	case "":
		errs = append(errs, ErrMissingErrorPolicy)
	default:
		fail("transform.on_error %q must be %q or %q", c.Transform.OnError, OnErrorFail, OnErrorSkip)
	}
	if len(c.Entry) == 0 {
		fail("at least one entry is required")
	}
	for name, p := range c.Entry {
		if name == "" || p == "" {
			fail("entry %q -> %q: name and path are required", name, p)
		}
	}
	switch c.Mode {
	case ModeDevelopment, ModeProduction, "":
	default:
		fail("mode %q must be %q or %q", c.Mode, ModeDevelopment, ModeProduction)
	}
	for i := range c.Rules {
		r := &c.Rules[i]
		re, err := regexp.Compile(r.Test)
		if err != nil {
			fail("rules[%d].test: %v", i, err)
			continue
		}
		r.re = re
		if r.Kind != "asset" && r.Kind != "code" {
			fail("rules[%d].kind %q must be \"asset\" or \"code\"", i, r.Kind)
		}
	}
	for i, p := range c.Plugins {
		if p.Name == "" {
			fail("plugins[%d].name is required", i)
		}
	}
	for _, ext := range c.Resolve.Extensions {
		if !strings.HasPrefix(ext, ".") {
			fail("resolve.extensions entry %q must start with a dot", ext)
		}
	}
	switch c.Cache.Type {
	case CacheMemory, CacheNone, "":
	case CacheRedis:
		if c.Cache.Addr == "" {
			fail("cache.addr is required for the redis cache")
		}
	default:
		fail("cache.type %q is unknown", c.Cache.Type)
	}
	if c.Cache.Lock && c.Cache.Type != CacheRedis {
		fail("cache.lock requires the redis cache")
	}
	if c.Transform.Timeout < 0 || c.Emit.Backoff < 0 || c.Emit.Retries < 0 {
		fail("timeouts, backoff and retries must not be negative")
	}
	return errors.Join(errs...)
}

// EntryNames returns entry names sorted, the order chunks are linked in.
func (c *Config) EntryNames() []string {
	names := make([]string, 0, len(c.Entry))
	for name := range c.Entry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defines returns the define map with the mode's NODE_ENV filled in.
func (c *Config) Defines() map[string]string {
	out := make(map[string]string, len(c.Define)+1)
	mode := c.Mode
	if mode == "" {
		mode = ModeDevelopment
	}
	out["process.env.NODE_ENV"] = `"` + mode + `"`
	for k, v := range c.Define {
		out[k] = v
	}
	return out
}

// Classify returns the first rule matching p, if any.
func (c *Config) Classify(p string) (Rule, bool) {
	for _, r := range c.Rules {
		if r.Matches(p) {
			return r, true
		}
	}
	return Rule{}, false
}

// OutputDir returns the absolute slash output directory for root.
func (c *Config) OutputDir(root string) string {
	if path.IsAbs(c.Output.Dir) {
		return path.Clean(c.Output.Dir)
	}
	return path.Join(root, c.Output.Dir)
}
