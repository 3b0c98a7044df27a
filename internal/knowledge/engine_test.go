package knowledge

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"leasebot/internal/domain"
)

type oracleFunc func(ctx context.Context, instruction, input string) (string, error)

func (f oracleFunc) Complete(ctx context.Context, instruction, input string) (string, error) {
	return f(ctx, instruction, input)
}

type retrieverFunc func(ctx context.Context, query string, topK int) ([]domain.SearchResult, error)

func (f retrieverFunc) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	return f(ctx, query, topK)
}

type memStore struct {
	docs   []domain.Document
	chunks []domain.DocumentChunk
	fail   bool
}

func (m *memStore) AddDocument(ctx context.Context, doc domain.Document, chunks []domain.DocumentChunk) error {
	if m.fail {
		return errors.New("store failure")
	}
	m.docs = append(m.docs, doc)
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *memStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	return m.docs, nil
}

func (m *memStore) DeleteDocument(ctx context.Context, id string) error { return nil }

func testEngine(r domain.Retriever, o domain.Oracle) *Engine {
	return NewEngine(EngineConfig{
		Store:     &memStore{},
		Retriever: r,
		Oracle:    o,
		ChunkSize: 8,
		Overlap:   2,
		Logger:    slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})
}

func hits(contents ...string) []domain.SearchResult {
	out := make([]domain.SearchResult, len(contents))
	for i, c := range contents {
		out[i] = domain.SearchResult{
			Chunk:   domain.DocumentChunk{Content: c, ChunkIndex: i},
			DocName: "lease.txt",
			Score:   1.0 - float64(i)*0.1,
		}
	}
	return out
}

func TestAnswer_PassesAnnotatedContextToOracle(t *testing.T) {
	var gotInput string
	e := testEngine(
		retrieverFunc(func(ctx context.Context, q string, k int) ([]domain.SearchResult, error) {
			if k != 3 {
				t.Fatalf("expected default topK 3, got %d", k)
			}
			return hits("Pets are allowed with a deposit.", "Section 8 covers pets."), nil
		}),
		oracleFunc(func(ctx context.Context, instruction, input string) (string, error) {
			gotInput = input
			return "Pets are allowed with a deposit (Section 8).", nil
		}),
	)

	out := e.Answer(context.Background(), "What is the pet policy?")
	if !strings.Contains(out, "Section 8") {
		t.Fatalf("unexpected answer: %q", out)
	}
	if !strings.Contains(gotInput, "Result 1 (Relevance: 1.0000):") {
		t.Fatalf("context missing relevance annotation: %q", gotInput)
	}
	if !strings.Contains(gotInput, "What is the pet policy?") {
		t.Fatalf("context missing the question: %q", gotInput)
	}
}

func TestAnswer_RetrievalFailureDegrades(t *testing.T) {
	e := testEngine(
		retrieverFunc(func(ctx context.Context, q string, k int) ([]domain.SearchResult, error) {
			return nil, errors.New("index offline")
		}),
		oracleFunc(func(ctx context.Context, instruction, input string) (string, error) {
			t.Fatal("oracle must not be called when retrieval fails")
			return "", nil
		}),
	)

	out := e.Answer(context.Background(), "q")
	if !strings.HasPrefix(out, "Error searching documents:") {
		t.Fatalf("expected degraded answer string, got %q", out)
	}
}

func TestAnswer_GenerationFailureDegrades(t *testing.T) {
	e := testEngine(
		retrieverFunc(func(ctx context.Context, q string, k int) ([]domain.SearchResult, error) {
			return hits("some passage"), nil
		}),
		oracleFunc(func(ctx context.Context, instruction, input string) (string, error) {
			return "", errors.New("oracle down")
		}),
	)

	out := e.Answer(context.Background(), "q")
	if out == "" || !strings.Contains(out, "could not compose an answer") {
		t.Fatalf("expected degraded but non-empty answer, got %q", out)
	}
}

func TestAnswer_NoHits(t *testing.T) {
	e := testEngine(
		retrieverFunc(func(ctx context.Context, q string, k int) ([]domain.SearchResult, error) {
			return nil, nil
		}),
		oracleFunc(func(ctx context.Context, instruction, input string) (string, error) {
			t.Fatal("oracle must not be called without retrieval hits")
			return "", nil
		}),
	)

	if out := e.Answer(context.Background(), "q"); out == "" {
		t.Fatal("answer must never be empty")
	}
}

func TestNewEngine_ZeroConfigGetsDefaults(t *testing.T) {
	e := NewEngine(EngineConfig{})
	if e.topK != defaultTopK {
		t.Fatalf("topK = %d", e.topK)
	}
	if e.chunkSize != 512 {
		t.Fatalf("chunkSize = %d", e.chunkSize)
	}
	if e.overlap != 50 {
		t.Fatalf("overlap = %d, zero value must take the default", e.overlap)
	}
}

func TestAddDocument_ChunksWithOverlap(t *testing.T) {
	store := &memStore{}
	e := NewEngine(EngineConfig{
		Store:     store,
		ChunkSize: 8,
		Overlap:   2,
		Logger:    slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})

	words := make([]string, 20)
	for i := range words {
		words[i] = "w"
	}
	doc, err := e.AddDocument(context.Background(), "lease.txt", "text/plain", strings.Join(words, " "))
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if doc.ChunkCount != len(store.chunks) {
		t.Fatalf("chunk count mismatch: doc says %d, stored %d", doc.ChunkCount, len(store.chunks))
	}
	if len(store.chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(store.chunks))
	}
	for i, c := range store.chunks {
		if c.ChunkIndex != i {
			t.Fatalf("chunk order broken at %d", i)
		}
	}
}

func TestAddDocument_EmptyContent(t *testing.T) {
	e := testEngine(nil, nil)
	if _, err := e.AddDocument(context.Background(), "empty.txt", "text/plain", "   "); err == nil {
		t.Fatal("expected error for empty document")
	}
}
