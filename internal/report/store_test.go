package report

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func sampleRun() *RunResult {
	return &RunResult{
		ID:          uuid.New().String(),
		Kind:        Test,
		Interpreter: []string{"seqlisp"},
		Evaluations: []Evaluation{
			{Path: "/work/exercises/01-basics/hello.slisp", Status: StatusPass, Transcript: "hello\n"},
			{Path: "/work/exercises/02-lists/map.slisp", Status: StatusFail, Reason: "fail-marker", Transcript: "FAIL: map\n"},
			{Path: "/work/exercises/02-lists/fold.slisp", Status: StatusFail, Reason: "exit-status", ExitCode: 1},
		},
	}
}

func TestCounts(t *testing.T) {
	r := sampleRun()
	passed, failed := r.Counts()
	if passed != 1 || failed != 2 {
		t.Errorf("Counts() = %d, %d, want 1, 2", passed, failed)
	}
	if r.Passed() {
		t.Error("Passed() = true, want false")
	}
	r.Evaluations = r.Evaluations[:1]
	if !r.Passed() {
		t.Error("Passed() = false, want true")
	}
}

func TestFailures(t *testing.T) {
	got := Failures(sampleRun())
	if len(got) != 2 {
		t.Fatalf("Failures() = %d entries, want 2", len(got))
	}
	if !strings.HasSuffix(got[0].Path, "map.slisp") || !strings.HasSuffix(got[1].Path, "fold.slisp") {
		t.Errorf("Failures() order = %s, %s", got[0].Path, got[1].Path)
	}
}

func TestByPath(t *testing.T) {
	r := sampleRun()
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"absolute", "/work/exercises/02-lists/map.slisp", 1},
		{"suffix", "02-lists/map.slisp", 1},
		{"dot relative", "./02-lists/map.slisp", 1},
		{"base name", "fold.slisp", 1},
		{"partial name", "old.slisp", 0},
		{"missing", "03-trees/walk.slisp", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ByPath(r, tt.query); len(got) != tt.want {
				t.Errorf("ByPath(%q) = %d entries, want %d", tt.query, len(got), tt.want)
			}
		})
	}
}

func TestExpect(t *testing.T) {
	r := sampleRun()
	if err := r.Expect(Test); err != nil {
		t.Errorf("Expect(Test) = %v", err)
	}
	if err := r.Expect(Compile); err == nil {
		t.Error("Expect(Compile) = nil, want error")
	}
}

// --- DiskStore ---

func TestDiskStore_SaveLoad(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	r := sampleRun()
	if err := s.Save(r); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(r.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Kind != Test || len(got.Evaluations) != 3 {
		t.Errorf("Load() = kind %q with %d evaluations", got.Kind, len(got.Evaluations))
	}
	if got.Evaluations[1].Transcript != "FAIL: map\n" {
		t.Errorf("Transcript = %q", got.Evaluations[1].Transcript)
	}
}

func TestDiskStore_LazyTempDir(t *testing.T) {
	s := NewDiskStore("")
	r := sampleRun()
	if err := s.Save(r); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Load(r.ID); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestDiskStore_RejectsNonUUID(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	if _, err := s.Load("../../etc/passwd"); err == nil {
		t.Fatal("expected error for path-like run id")
	}
}

func TestDiskStore_Missing(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	if _, err := s.Load(uuid.New().String()); err == nil {
		t.Fatal("expected error for unknown run id")
	}
}

// --- LRUStore ---

type countingStore struct {
	runs  map[string]*RunResult
	loads int
}

func (c *countingStore) Save(r *RunResult) error {
	c.runs[r.ID] = r
	return nil
}

func (c *countingStore) Load(id string) (*RunResult, error) {
	c.loads++
	r, ok := c.runs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return r, nil
}

func TestLRUStore_HitAvoidsBackingStore(t *testing.T) {
	back := &countingStore{runs: map[string]*RunResult{}}
	s := NewLRUStore(2, back)
	r := sampleRun()
	if err := s.Save(r); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(r.ID); err != nil {
		t.Fatal(err)
	}
	if back.loads != 0 {
		t.Errorf("backing loads = %d, want 0", back.loads)
	}
}

func TestLRUStore_EvictsLeastRecent(t *testing.T) {
	back := &countingStore{runs: map[string]*RunResult{}}
	s := NewLRUStore(2, back)
	a, b, c := sampleRun(), sampleRun(), sampleRun()
	for _, r := range []*RunResult{a, b} {
		if err := s.Save(r); err != nil {
			t.Fatal(err)
		}
	}
	// Touch a so b becomes the eviction candidate.
	if _, err := s.Load(a.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(c); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}

	if _, err := s.Load(a.ID); err != nil {
		t.Fatal(err)
	}
	if back.loads != 0 {
		t.Errorf("backing loads = %d after loading a, want 0", back.loads)
	}
	if _, err := s.Load(b.ID); err != nil {
		t.Fatal(err)
	}
	if back.loads != 1 {
		t.Errorf("backing loads = %d after loading evicted b, want 1", back.loads)
	}
}

func TestLRUStore_MissPropagatesError(t *testing.T) {
	s := NewLRUStore(1, &countingStore{runs: map[string]*RunResult{}})
	if _, err := s.Load("nope"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewLRUStore_MinCapacity(t *testing.T) {
	s := NewLRUStore(0, &countingStore{runs: map[string]*RunResult{}})
	_ = s.Save(sampleRun())
	_ = s.Save(sampleRun())
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}
