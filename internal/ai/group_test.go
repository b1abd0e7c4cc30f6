package ai

import (
	"context"
	"errors"
	"testing"
)

type scriptedGenerator struct {
	answer string
	err    error
	calls  int
}

func (s *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.answer, s.err
}

type scriptedEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (s *scriptedEmbedder) ModelName() string { return "scripted" }

func (s *scriptedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

func TestGroupGeneratorFallback(t *testing.T) {
	primary := &scriptedGenerator{err: errors.New("quota exceeded")}
	backup := &scriptedGenerator{answer: "from backup"}
	group := NewGroupGenerator([]GeneratorEntry{
		{Name: "primary", Generator: primary},
		{Name: "backup", Generator: backup},
	})

	got, err := group.Generate(context.Background(), "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from backup" {
		t.Fatalf("got %q, want backup answer", got)
	}
	if primary.calls != 1 || backup.calls != 1 {
		t.Fatalf("calls = %d/%d, want 1/1", primary.calls, backup.calls)
	}
}

func TestGroupGeneratorStopsAtFirstSuccess(t *testing.T) {
	primary := &scriptedGenerator{answer: "from primary"}
	backup := &scriptedGenerator{answer: "never"}
	group := NewGroupGenerator([]GeneratorEntry{
		{Name: "primary", Generator: primary},
		{Name: "backup", Generator: backup},
	})

	got, _ := group.Generate(context.Background(), "p")
	if got != "from primary" {
		t.Fatalf("got %q", got)
	}
	if backup.calls != 0 {
		t.Fatalf("backup called %d times, want 0", backup.calls)
	}
}

func TestGroupGeneratorAllFail(t *testing.T) {
	wantErr := errors.New("backend down")
	group := NewGroupGenerator([]GeneratorEntry{
		{Name: "only", Generator: &scriptedGenerator{err: wantErr}},
	})
	_, err := group.Generate(context.Background(), "p")
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want the last backend error", err)
	}
}

func TestGroupEmbedderFallback(t *testing.T) {
	primary := &scriptedEmbedder{err: errors.New("down")}
	backup := &scriptedEmbedder{vec: []float32{1, 2}}
	group := NewGroupEmbedder([]EmbedderEntry{
		{Name: "a", Embedder: primary},
		{Name: "b", Embedder: backup},
	})

	vecs, err := group.Embed(context.Background(), []string{"x", "y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}
	if group.ModelName() != "a|b" {
		t.Fatalf("ModelName() = %q", group.ModelName())
	}
}

func TestGroupEmpty(t *testing.T) {
	if NewGroupGenerator(nil) != nil {
		t.Fatal("empty generator group should be nil")
	}
	if NewGroupEmbedder(nil) != nil {
		t.Fatal("empty embedder group should be nil")
	}
}
