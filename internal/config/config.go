// Package config loads and validates the optional .harness YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/deixis/harness/internal/classify"
	"github.com/deixis/harness/internal/logging"
	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file.
const FileName = ".harness"

// DefaultInterpreter is the executable invoked when none is configured.
const DefaultInterpreter = "seqlisp"

// DefaultExtensions are the source file extensions collected from directories.
var DefaultExtensions = []string{".slisp"}

// Config holds the parsed .harness configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int           `yaml:"version"`
	Interpreter  string        `yaml:"interpreter"` // command line; the source path is appended
	RawTimeout   string        `yaml:"timeout"`     // e.g. "30s"; empty means no limit
	RawGrace     string        `yaml:"grace"`       // interrupt-to-kill delay, e.g. "2s"
	RawMaxOutput int           `yaml:"max_output"`  // bytes per stream; 0 means unbounded
	Concurrency  int           `yaml:"concurrency"`
	Extensions   []string      `yaml:"extensions"`
	Markers      MarkersConfig `yaml:"markers"`
	Log          LogConfig     `yaml:"log"`
}

// MarkersConfig overrides the textual failure markers.
type MarkersConfig struct {
	ErrorPrefix   string `yaml:"error_prefix"`
	FailSubstring string `yaml:"fail_substring"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// InterpreterArgv splits the configured interpreter command with shell
// quoting rules.
func (c *Config) InterpreterArgv() ([]string, error) {
	if strings.TrimSpace(c.Interpreter) == "" {
		return []string{DefaultInterpreter}, nil
	}
	argv, err := shlex.Split(c.Interpreter)
	if err != nil {
		return nil, fmt.Errorf("parsing interpreter %q: %w", c.Interpreter, err)
	}
	if len(argv) == 0 {
		return []string{DefaultInterpreter}, nil
	}
	return argv, nil
}

// Timeout returns the configured per-file timeout, or zero for none.
func (c *Config) Timeout() time.Duration {
	return parsePositive(c.RawTimeout)
}

// Grace returns the configured interrupt-to-kill delay, or zero.
func (c *Config) Grace() time.Duration {
	return parsePositive(c.RawGrace)
}

func parsePositive(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// MaxOutputBytes returns the configured capture cap, or zero for unbounded.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return 0
}

// Parallelism returns the configured concurrency, falling back to GOMAXPROCS.
func (c *Config) Parallelism() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

// FileExtensions returns the configured extensions, normalised to start
// with a dot, falling back to defaults.
func (c *Config) FileExtensions() []string {
	if len(c.Extensions) == 0 {
		return DefaultExtensions
	}
	out := make([]string, 0, len(c.Extensions))
	for _, ext := range c.Extensions {
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	if len(out) == 0 {
		return DefaultExtensions
	}
	return out
}

// ClassifyMarkers returns the failure markers, falling back to the
// interpreter's defaults for each unset marker.
func (c *Config) ClassifyMarkers() classify.Markers {
	m := classify.DefaultMarkers()
	if c.Markers.ErrorPrefix != "" {
		m.ErrorPrefix = c.Markers.ErrorPrefix
	}
	if c.Markers.FailSubstring != "" {
		m.FailSubstring = c.Markers.FailSubstring
	}
	return m
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		Output: c.Log.Output,
	}
}

// LoadResult holds the parsed config and the directory it was found in.
type LoadResult struct {
	Config *Config
	Root   string // directory containing .harness; falls back to workspace
}

// Load reads the .harness file found by walking upward from workspace.
// If no file exists, a default Config rooted at workspace is returned.
func Load(workspace string) (*LoadResult, error) {
	root, err := findRoot(workspace)
	if err != nil {
		return &LoadResult{Config: &Config{}, Root: workspace}, nil
	}

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if _, err := cfg.InterpreterArgv(); err != nil {
		return nil, err
	}
	return &LoadResult{Config: cfg, Root: root}, nil
}

// findRoot walks upward from dir looking for a directory containing .harness.
func findRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if fi, err := os.Stat(filepath.Join(dir, FileName)); err == nil && !fi.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", FileName)
		}
		dir = parent
	}
}
