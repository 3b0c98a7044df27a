package domain

import (
	"context"
	"time"
)

// Document is an ingested agreement document.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// DocumentChunk is a single indexed passage of a document.
type DocumentChunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
	ChunkIndex int    `json:"chunk_index"`
	TokenCount int    `json:"token_count"`
}

// SearchResult is one retrieval hit, ordered by relevance.
type SearchResult struct {
	Chunk   DocumentChunk `json:"chunk"`
	DocName string        `json:"doc_name"`
	Score   float64       `json:"score"`
}

// Retriever is the read-only similarity-index boundary the query engine
// depends on. The index is populated by the ingestion path.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]SearchResult, error)
}

// DocumentStore persists documents and their chunks for retrieval.
type DocumentStore interface {
	AddDocument(ctx context.Context, doc Document, chunks []DocumentChunk) error
	ListDocuments(ctx context.Context) ([]Document, error)
	DeleteDocument(ctx context.Context, id string) error
}
