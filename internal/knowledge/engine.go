// Package knowledge answers lease questions from the ingested rental
// agreement: retrieval from the chunk index plus answer synthesis through
// the text-generation oracle.
package knowledge

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"leasebot/internal/domain"
)

const answerInstruction = `You are a helpful assistant for rental agreements.
Answer the tenant's question using only the retrieved agreement passages
provided after the question. Provide a clear, concise answer and always cite
the specific section of the agreement it comes from. If the passages do not
contain the answer, say so.`

const defaultTopK = 3

// Store is the persistence interface for documents and their chunks.
type Store interface {
	AddDocument(ctx context.Context, doc domain.Document, chunks []domain.DocumentChunk) error
	ListDocuments(ctx context.Context) ([]domain.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Engine is the document query engine.
type Engine struct {
	store     Store
	retriever domain.Retriever
	oracle    domain.Oracle
	topK      int
	chunkSize int
	overlap   int
	logger    *slog.Logger
}

type EngineConfig struct {
	Store     Store
	Retriever domain.Retriever
	Oracle    domain.Oracle
	TopK      int // retrieval depth (default: 3)
	ChunkSize int // words per chunk (default: 512)
	Overlap   int // overlap words between chunks (default: 50)
	Logger    *slog.Logger
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 512
	}
	if cfg.Overlap <= 0 {
		cfg.Overlap = 50
	}
	return &Engine{
		store:     cfg.Store,
		retriever: cfg.Retriever,
		oracle:    cfg.Oracle,
		topK:      cfg.TopK,
		chunkSize: cfg.ChunkSize,
		overlap:   cfg.Overlap,
		logger:    cfg.Logger,
	}
}

// Answer retrieves the most relevant agreement passages for the question
// and synthesizes an answer from them. It never returns an error: any
// downstream failure degrades to a descriptive answer string the router can
// deliver as-is.
func (e *Engine) Answer(ctx context.Context, question string) string {
	results, err := e.retriever.Search(ctx, question, e.topK)
	if err != nil {
		e.logger.Error("retrieval failed", "err", err)
		return fmt.Sprintf("Error searching documents: %s", err)
	}
	if len(results) == 0 {
		return "I could not find anything in the rental agreement about that. Could you rephrase the question?"
	}

	input := question + "\n\n" + formatContext(results)
	answer, err := e.oracle.Complete(ctx, answerInstruction, input)
	if err != nil {
		e.logger.Error("answer synthesis failed", "err", err)
		return fmt.Sprintf("Sorry, I found relevant sections of the agreement but could not compose an answer: %s", err)
	}
	return answer
}

// formatContext renders retrieval hits with their relevance annotations.
func formatContext(results []domain.SearchResult) string {
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "Result %d (Relevance: %.4f):\n%s\n\n", i+1, r.Score, r.Chunk.Content)
	}
	return strings.TrimSpace(sb.String())
}

// AddDocument ingests an agreement document: chunk the content and persist
// document metadata plus chunks for retrieval.
func (e *Engine) AddDocument(ctx context.Context, name, mimeType, content string) (*domain.Document, error) {
	hash := sha256.Sum256([]byte(content))
	docID := fmt.Sprintf("%x", hash[:8])

	chunks := e.chunkText(content, docID)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %q has no indexable content", name)
	}

	doc := domain.Document{
		ID:         docID,
		Name:       name,
		MimeType:   mimeType,
		Size:       int64(len(content)),
		ChunkCount: len(chunks),
		CreatedAt:  time.Now(),
	}

	if err := e.store.AddDocument(ctx, doc, chunks); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	e.logger.Info("document added to knowledge base",
		"name", name, "chunks", len(chunks), "size", len(content))

	return &doc, nil
}

// ListDocuments returns all ingested documents.
func (e *Engine) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	return e.store.ListDocuments(ctx)
}

// DeleteDocument removes a document and its chunks from the index.
func (e *Engine) DeleteDocument(ctx context.Context, id string) error {
	return e.store.DeleteDocument(ctx, id)
}

// chunkText splits text into overlapping chunks of approximately chunkSize words.
func (e *Engine) chunkText(text, docID string) []domain.DocumentChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []domain.DocumentChunk
	step := e.chunkSize - e.overlap
	if step <= 0 {
		step = e.chunkSize
	}

	for i := 0; i < len(words); i += step {
		end := i + e.chunkSize
		if end > len(words) {
			end = len(words)
		}

		content := strings.Join(words[i:end], " ")
		chunks = append(chunks, domain.DocumentChunk{
			ID:         fmt.Sprintf("%s_%d", docID, len(chunks)),
			DocumentID: docID,
			Content:    content,
			ChunkIndex: len(chunks),
			TokenCount: end - i,
		})

		if end >= len(words) {
			break
		}
	}

	return chunks
}
