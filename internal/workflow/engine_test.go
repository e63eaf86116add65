package workflow

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// tree creates files (with empty content) under a temp workspace.
func tree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		p := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func rels(root string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		r, _ := filepath.Rel(root, p)
		out[i] = filepath.ToSlash(r)
	}
	return out
}

func TestResolveFiles_EmptyWalksWorkspace(t *testing.T) {
	root := tree(t, "b/two.slisp", "a/one.slisp", "README.md")
	e := &Engine{Workspace: root}
	got, err := e.ResolveFiles(nil)
	if err != nil {
		t.Fatalf("ResolveFiles: %v", err)
	}
	if want := []string{"a/one.slisp", "b/two.slisp"}; !reflect.DeepEqual(rels(root, got), want) {
		t.Errorf("ResolveFiles(nil) = %v, want %v", rels(root, got), want)
	}
}

func TestResolveFiles_FileTakenAsIs(t *testing.T) {
	root := tree(t, "notes.txt")
	e := &Engine{Workspace: root}
	got, err := e.ResolveFiles([]string{"notes.txt"})
	if err != nil {
		t.Fatalf("ResolveFiles: %v", err)
	}
	if len(got) != 1 || got[0] != filepath.Join(root, "notes.txt") {
		t.Errorf("ResolveFiles(notes.txt) = %v", got)
	}
}

func TestResolveFiles_AbsolutePath(t *testing.T) {
	root := tree(t, "x/one.slisp")
	e := &Engine{Workspace: "/elsewhere"}
	abs := filepath.Join(root, "x", "one.slisp")
	got, err := e.ResolveFiles([]string{abs})
	if err != nil {
		t.Fatalf("ResolveFiles: %v", err)
	}
	if len(got) != 1 || got[0] != abs {
		t.Errorf("ResolveFiles(abs) = %v, want [%s]", got, abs)
	}
}

func TestResolveFiles_SkipsHiddenDirs(t *testing.T) {
	root := tree(t, ".git/hooks/x.slisp", "ex/.cache/y.slisp", "ex/z.slisp")
	e := &Engine{Workspace: root}
	got, err := e.ResolveFiles(nil)
	if err != nil {
		t.Fatalf("ResolveFiles: %v", err)
	}
	if want := []string{"ex/z.slisp"}; !reflect.DeepEqual(rels(root, got), want) {
		t.Errorf("ResolveFiles(nil) = %v, want %v", rels(root, got), want)
	}
}

func TestResolveFiles_CustomExtensions(t *testing.T) {
	root := tree(t, "a.slisp", "b.lisp", "c.scm")
	e := &Engine{Workspace: root, Extensions: []string{".lisp", ".scm"}}
	got, err := e.ResolveFiles(nil)
	if err != nil {
		t.Fatalf("ResolveFiles: %v", err)
	}
	if want := []string{"b.lisp", "c.scm"}; !reflect.DeepEqual(rels(root, got), want) {
		t.Errorf("ResolveFiles(nil) = %v, want %v", rels(root, got), want)
	}
}

func TestResolveFiles_Glob(t *testing.T) {
	root := tree(t, "01/test_a.slisp", "01/a.slisp", "02/test_b.slisp")
	e := &Engine{Workspace: root}
	got, err := e.ResolveFiles([]string{"*/test_*.slisp"})
	if err != nil {
		t.Fatalf("ResolveFiles: %v", err)
	}
	if want := []string{"01/test_a.slisp", "02/test_b.slisp"}; !reflect.DeepEqual(rels(root, got), want) {
		t.Errorf("ResolveFiles(glob) = %v, want %v", rels(root, got), want)
	}
}

func TestResolveFiles_GlobNoMatch(t *testing.T) {
	root := tree(t, "a.slisp")
	e := &Engine{Workspace: root}
	_, err := e.ResolveFiles([]string{"*.scm"})
	if err == nil || !strings.Contains(err.Error(), "no files match") {
		t.Errorf("err = %v, want 'no files match'", err)
	}
}

func TestResolveFiles_Missing(t *testing.T) {
	root := tree(t, "a.slisp")
	e := &Engine{Workspace: root}
	if _, err := e.ResolveFiles([]string{"missing.slisp"}); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestResolveFiles_Dedupe(t *testing.T) {
	root := tree(t, "a/one.slisp", "a/two.slisp")
	e := &Engine{Workspace: root}
	got, err := e.ResolveFiles([]string{"a/two.slisp", "a", "./a/one.slisp"})
	if err != nil {
		t.Fatalf("ResolveFiles: %v", err)
	}
	if want := []string{"a/two.slisp", "a/one.slisp"}; !reflect.DeepEqual(rels(root, got), want) {
		t.Errorf("ResolveFiles(dupes) = %v, want %v", rels(root, got), want)
	}
}

func TestResolveFiles_NothingFound(t *testing.T) {
	root := tree(t, "README.md")
	e := &Engine{Workspace: root}
	_, err := e.ResolveFiles(nil)
	if err == nil || !strings.Contains(err.Error(), "no source files") {
		t.Errorf("err = %v, want 'no source files'", err)
	}
}

func TestRel(t *testing.T) {
	e := &Engine{Workspace: "/project"}
	if got := e.Rel("/project/ex/a.slisp"); got != "ex/a.slisp" {
		t.Errorf("Rel(inside) = %q, want ex/a.slisp", got)
	}
	if got := e.Rel("/other/a.slisp"); got != "/other/a.slisp" {
		t.Errorf("Rel(outside) = %q, want unchanged", got)
	}
	if got := (&Engine{}).Rel("a.slisp"); got != "a.slisp" {
		t.Errorf("Rel(no workspace) = %q, want unchanged", got)
	}
}
