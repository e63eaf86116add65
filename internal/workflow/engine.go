// Package workflow evaluates batches of source files and collects the
// results into a report. It is consumed by both the MCP server and the CLI
// commands.
package workflow

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/deixis/harness/internal/classify"
	"github.com/deixis/harness/internal/config"
	"github.com/deixis/harness/internal/evaluator"
	"github.com/deixis/harness/internal/runner"
	"go.uber.org/zap"
)

// Evaluator classifies a single file.
// Implemented by evaluator.Evaluator.
type Evaluator interface {
	Evaluate(ctx context.Context, mode evaluator.Mode, path string) (*evaluator.Outcome, error)
}

// Engine holds shared dependencies for all workflow operations.
type Engine struct {
	Evaluator   Evaluator
	Interpreter []string         // recorded on each run
	Extensions  []string         // collected when walking directories
	Markers     classify.Markers // used to quote failing lines
	Concurrency int
	Workspace   string // relative paths resolve against this
	Logger      *zap.Logger
}

// New wires an Engine from configuration.
func New(cfg *config.Config, workspace string, logger *zap.Logger) (*Engine, error) {
	argv, err := cfg.InterpreterArgv()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &runner.Runner{
		Timeout:   cfg.Timeout(),
		Grace:     cfg.Grace(),
		MaxOutput: cfg.MaxOutputBytes(),
	}
	markers := cfg.ClassifyMarkers()
	ev := evaluator.New(argv, r, markers, logger.Named("evaluator"))

	return &Engine{
		Evaluator:   ev,
		Interpreter: argv,
		Extensions:  cfg.FileExtensions(),
		Markers:     markers,
		Concurrency: cfg.Parallelism(),
		Workspace:   workspace,
		Logger:      logger.Named("workflow"),
	}, nil
}

// ResolveFiles expands arguments into the list of files to evaluate.
// It accepts three input styles:
//
//   - Files (e.g. "01-basics/hello.slisp") are taken as-is, whatever
//     their extension.
//   - Directories are walked recursively for files with a configured
//     extension. Hidden directories are skipped.
//   - Glob patterns (e.g. "exercises/*/test_*.slisp") are expanded, and
//     each match is treated as a file or directory.
//
// Relative arguments resolve against the workspace. When the list is empty
// the workspace itself is walked. Duplicates are dropped and order is kept.
func (e *Engine) ResolveFiles(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{"."}
	}

	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, arg := range args {
		p := arg
		if !filepath.IsAbs(p) {
			p = filepath.Join(e.Workspace, p)
		}

		matches := []string{p}
		if strings.ContainsAny(arg, "*?[") {
			var err error
			matches, err = filepath.Glob(p)
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no files match %q", arg)
			}
		}

		for _, m := range matches {
			fi, err := os.Stat(m)
			if err != nil {
				return nil, fmt.Errorf("resolving %s: %w", arg, err)
			}
			if !fi.IsDir() {
				add(m)
				continue
			}
			found, err := e.walk(m)
			if err != nil {
				return nil, err
			}
			for _, f := range found {
				add(f)
			}
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no source files found (extensions: %s)", strings.Join(e.extensions(), ", "))
	}
	return files, nil
}

// walk returns files under dir with a configured extension, in lexical order.
func (e *Engine) walk(dir string) ([]string, error) {
	exts := e.extensions()
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if slices.Contains(exts, filepath.Ext(path)) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return out, nil
}

func (e *Engine) extensions() []string {
	if len(e.Extensions) == 0 {
		return config.DefaultExtensions
	}
	return e.Extensions
}

// Rel returns path relative to the workspace when it lies inside it,
// and path unchanged otherwise.
func (e *Engine) Rel(path string) string {
	if e.Workspace == "" {
		return path
	}
	rel, err := filepath.Rel(e.Workspace, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}
