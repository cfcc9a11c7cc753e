// Package config handles garden.toml runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/purplegarden/vm"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "garden.toml"

// Config represents a garden.toml file.
type Config struct {
	VM    VMConfig    `toml:"vm"`
	GC    GCConfig    `toml:"gc"`
	Log   LogConfig   `toml:"log"`
	Store StoreConfig `toml:"store"`

	// Dir is the directory containing the garden.toml file (set at load time).
	Dir string `toml:"-"`
}

// VMConfig configures the interpreter.
type VMConfig struct {
	MaxFrames int  `toml:"max-frames"`
	Trace     bool `toml:"trace"`
}

// GCConfig configures heap collection.
type GCConfig struct {
	Threshold int     `toml:"threshold"`
	Growth    float64 `toml:"growth"`
}

// LogConfig configures commonlog. Verbosity follows commonlog: 0 is notice,
// 1 info, 2 debug, negative values quieter.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// StoreConfig locates the image store.
type StoreConfig struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no garden.toml exists.
func Default() *Config {
	return &Config{
		VM: VMConfig{MaxFrames: vm.DefaultMaxFrames},
		GC: GCConfig{Threshold: vm.DefaultGCThreshold, Growth: vm.DefaultGCGrowth},
		Store: StoreConfig{
			Path: filepath.Join(".garden", "images.db"),
		},
	}
}

// Parse decodes and validates garden.toml content. Fields left out keep
// their defaults.
func Parse(data []byte) (*Config, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	c := Default()
	if _, err := toml.Decode(string(data), c); err != nil {
		return nil, err
	}
	return c, nil
}

// Load parses the garden.toml file in dir.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a garden.toml file, then loads
// and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// StorePath returns the store path, resolved against Dir when relative.
func (c *Config) StorePath() string {
	if filepath.IsAbs(c.Store.Path) || c.Dir == "" {
		return c.Store.Path
	}
	return filepath.Join(c.Dir, c.Store.Path)
}

// LogFile returns the log file resolved against Dir, or nil to log to stderr.
func (c *Config) LogFile() *string {
	if c.Log.File == "" {
		return nil
	}
	path := c.Log.File
	if !filepath.IsAbs(path) && c.Dir != "" {
		path = filepath.Join(c.Dir, path)
	}
	return &path
}

// VMOptions maps the configuration onto vm.Options.
func (c *Config) VMOptions() vm.Options {
	return vm.Options{
		MaxFrames:   c.VM.MaxFrames,
		Trace:       c.VM.Trace,
		GCThreshold: c.GC.Threshold,
		GCGrowth:    c.GC.Growth,
	}
}
