package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"leasebot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore backs both the ticket store and the document index with a
// single SQLite database. It implements domain.TicketStore,
// domain.DocumentStore and domain.Retriever.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set connection pool (single connection for SQLite)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

// DB exposes the underlying handle for health checks.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// --- domain.TicketStore ---

func (s *SQLiteStore) Put(ctx context.Context, t *domain.MaintenanceTicket) error {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}

	images, notes, err := encodeTicketJSON(t)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tickets (ticket_id, description, tenant_phone, category, priority, status,
		                      apartment_number, access_instructions, assigned_to, estimated_completion,
		                      image_paths, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TicketID, t.Description, t.TenantPhone, t.Category, t.Priority, t.Status,
		t.ApartmentNumber, t.AccessInstructions, t.AssignedTo, t.EstimatedCompletion,
		images, notes, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, ticketID string) (*domain.MaintenanceTicket, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT ticket_id, description, tenant_phone, category, priority, status,
		        apartment_number, access_instructions, assigned_to, estimated_completion,
		        image_paths, notes, created_at, updated_at
		 FROM tickets WHERE ticket_id = ?`, ticketID,
	)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLiteStore) Update(ctx context.Context, t *domain.MaintenanceTicket) error {
	t.UpdatedAt = time.Now()

	images, notes, err := encodeTicketJSON(t)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE tickets SET description=?, tenant_phone=?, category=?, priority=?, status=?,
		        apartment_number=?, access_instructions=?, assigned_to=?, estimated_completion=?,
		        image_paths=?, notes=?, updated_at=?
		 WHERE ticket_id=?`,
		t.Description, t.TenantPhone, t.Category, t.Priority, t.Status,
		t.ApartmentNumber, t.AccessInstructions, t.AssignedTo, t.EstimatedCompletion,
		images, notes, t.UpdatedAt, t.TicketID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ticket %s not found", t.TicketID)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*domain.MaintenanceTicket, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT ticket_id, description, tenant_phone, category, priority, status,
		        apartment_number, access_instructions, assigned_to, estimated_completion,
		        image_paths, notes, created_at, updated_at
		 FROM tickets ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []*domain.MaintenanceTicket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func encodeTicketJSON(t *domain.MaintenanceTicket) (images, notes string, err error) {
	imgBytes, err := json.Marshal(t.ImagePaths)
	if err != nil {
		return "", "", fmt.Errorf("encode image paths: %w", err)
	}
	noteBytes, err := json.Marshal(t.Notes)
	if err != nil {
		return "", "", fmt.Errorf("encode notes: %w", err)
	}
	return string(imgBytes), string(noteBytes), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.MaintenanceTicket, error) {
	var t domain.MaintenanceTicket
	var assignedTo, images, notes sql.NullString
	var estimated sql.NullTime
	err := row.Scan(&t.TicketID, &t.Description, &t.TenantPhone, &t.Category, &t.Priority, &t.Status,
		&t.ApartmentNumber, &t.AccessInstructions, &assignedTo, &estimated,
		&images, &notes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.AssignedTo = assignedTo.String
	if estimated.Valid {
		t.EstimatedCompletion = &estimated.Time
	}
	if images.String != "" {
		if err := json.Unmarshal([]byte(images.String), &t.ImagePaths); err != nil {
			return nil, fmt.Errorf("decode image paths for %s: %w", t.TicketID, err)
		}
	}
	if notes.String != "" {
		if err := json.Unmarshal([]byte(notes.String), &t.Notes); err != nil {
			return nil, fmt.Errorf("decode notes for %s: %w", t.TicketID, err)
		}
	}
	return &t, nil
}

// --- domain.DocumentStore ---

func (s *SQLiteStore) AddDocument(ctx context.Context, doc domain.Document, chunks []domain.DocumentChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	// Re-ingesting the same document replaces its chunks.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_chunks WHERE document_id = ?`, doc.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (id, name, mime_type, size, chunk_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, doc.MimeType, doc.Size, len(chunks), doc.CreatedAt,
	); err != nil {
		return err
	}

	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_chunks (document_id, chunk_index, content, tokens)
			 VALUES (?, ?, ?, ?)`,
			doc.ID, c.ChunkIndex, c.Content, c.TokenCount,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, mime_type, size, chunk_count, created_at
		 FROM documents ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.Name, &d.MimeType, &d.Size, &d.ChunkCount, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Explicit chunk delete so the FTS delete trigger fires.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_chunks WHERE document_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// --- domain.Retriever ---

var ftsTokenRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// ftsQuery turns free-form text into an FTS5 OR-query. Natural-language
// questions rarely match every word, so any-term matching with bm25 ranking
// comes closest to the original similarity search.
func ftsQuery(text string) string {
	tokens := ftsTokenRe.FindAllString(text, -1)
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + tok + `"`
	}
	return strings.Join(quoted, " OR ")
}

func (s *SQLiteStore) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 3
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	// bm25() is smaller-is-better and negative for matches; negate it so
	// callers see a higher-is-better relevance score.
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.document_id, c.chunk_index, c.content, c.tokens, d.name, -bm25(chunks_fts) AS score
		 FROM chunks_fts
		 JOIN document_chunks c ON c.id = chunks_fts.rowid
		 JOIN documents d ON d.id = c.document_id
		 WHERE chunks_fts MATCH ?
		 ORDER BY bm25(chunks_fts)
		 LIMIT ?`, match, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var r domain.SearchResult
		var rowID int64
		if err := rows.Scan(&rowID, &r.Chunk.DocumentID, &r.Chunk.ChunkIndex,
			&r.Chunk.Content, &r.Chunk.TokenCount, &r.DocName, &r.Score); err != nil {
			return nil, err
		}
		r.Chunk.ID = strconv.FormatInt(rowID, 10)
		results = append(results, r)
	}
	return results, rows.Err()
}
