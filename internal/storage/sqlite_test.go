package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"leasebot/internal/domain"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "leasebot.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTicketRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	eta := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	in := &domain.MaintenanceTicket{
		TicketID:            "MAINT-1712345678901",
		Description:         "Location: kitchen\nReported Issue: sink leak",
		TenantPhone:         "+15109549624",
		Category:            domain.CategoryPlumbing,
		Priority:            domain.PriorityHigh,
		Status:              domain.StatusNew,
		ApartmentNumber:     "12B",
		AccessInstructions:  "spare key under mat",
		EstimatedCompletion: &eta,
		ImagePaths:          []string{"/tmp/ticket_MAINT-1712345678901_img_1.jpg"},
		Notes: []domain.TicketNote{
			{Text: "initial triage", Author: "system", CreatedAt: time.Now()},
		},
	}
	if err := s.Put(ctx, in); err != nil {
		t.Fatalf("Put: %v", err)
	}

	out, err := s.Get(ctx, in.TicketID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out == nil {
		t.Fatal("ticket not found after Put")
	}
	if out.Category != domain.CategoryPlumbing || out.Priority != domain.PriorityHigh {
		t.Fatalf("enum fields lost: %+v", out)
	}
	if out.ApartmentNumber != "12B" || out.AccessInstructions != "spare key under mat" {
		t.Fatalf("detail fields lost: %+v", out)
	}
	if len(out.ImagePaths) != 1 || len(out.Notes) != 1 {
		t.Fatalf("json columns lost: images=%v notes=%v", out.ImagePaths, out.Notes)
	}
	if out.EstimatedCompletion == nil || !out.EstimatedCompletion.Equal(eta) {
		t.Fatalf("estimated completion lost: %v", out.EstimatedCompletion)
	}
}

func TestGetUnknownTicket(t *testing.T) {
	s := testStore(t)
	out, err := s.Get(context.Background(), "MAINT-0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil ticket, got %+v", out)
	}
}

func TestUpdateTicket(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	in := &domain.MaintenanceTicket{
		TicketID:    "MAINT-1",
		Description: "leak",
		TenantPhone: "+15550001111",
		Category:    domain.CategoryPlumbing,
		Priority:    domain.PriorityNormal,
		Status:      domain.StatusNew,
	}
	if err := s.Put(ctx, in); err != nil {
		t.Fatal(err)
	}

	in.Status = domain.StatusAssigned
	in.AssignedTo = "handyman"
	in.Notes = append(in.Notes, domain.TicketNote{Text: "scheduled", CreatedAt: time.Now()})
	if err := s.Update(ctx, in); err != nil {
		t.Fatalf("Update: %v", err)
	}

	out, _ := s.Get(ctx, "MAINT-1")
	if out.Status != domain.StatusAssigned || out.AssignedTo != "handyman" || len(out.Notes) != 1 {
		t.Fatalf("update not persisted: %+v", out)
	}
}

func TestUpdateUnknownTicket(t *testing.T) {
	s := testStore(t)
	err := s.Update(context.Background(), &domain.MaintenanceTicket{TicketID: "MAINT-404", Status: domain.StatusNew})
	if err == nil {
		t.Fatal("expected error updating missing ticket")
	}
}

func TestListTickets(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i, id := range []string{"MAINT-1", "MAINT-2", "MAINT-3"} {
		tk := &domain.MaintenanceTicket{
			TicketID:    id,
			Description: "x",
			TenantPhone: "+15550001111",
			Category:    domain.CategoryOther,
			Priority:    domain.PriorityNormal,
			Status:      domain.StatusNew,
			CreatedAt:   time.Now().Add(time.Duration(i) * time.Minute),
		}
		if err := s.Put(ctx, tk); err != nil {
			t.Fatal(err)
		}
	}

	tickets, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tickets) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(tickets))
	}
	if tickets[0].TicketID != "MAINT-3" {
		t.Fatalf("expected newest first, got %s", tickets[0].TicketID)
	}
}

func TestDocumentSearch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	doc := domain.Document{ID: "doc1", Name: "lease.pdf", MimeType: "application/pdf", Size: 1024}
	chunks := []domain.DocumentChunk{
		{DocumentID: "doc1", ChunkIndex: 0, Content: "Section 4: Pets are permitted with a deposit of $300.", TokenCount: 10},
		{DocumentID: "doc1", ChunkIndex: 1, Content: "Section 7: Rent is due on the first of each month.", TokenCount: 11},
	}
	if err := s.AddDocument(ctx, doc, chunks); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	results, err := s.Search(ctx, "are pets allowed in the apartment?", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one hit")
	}
	best := results[0]
	if best.Chunk.ChunkIndex != 0 {
		t.Fatalf("expected the pets clause first, got %+v", best.Chunk)
	}
	if best.DocName != "lease.pdf" {
		t.Fatalf("doc name = %q", best.DocName)
	}
	if best.Score <= 0 {
		t.Fatalf("relevance must be positive, got %f", best.Score)
	}
}

func TestSearchDegenerateQuery(t *testing.T) {
	s := testStore(t)
	results, err := s.Search(context.Background(), "?!  ...", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results != nil {
		t.Fatalf("expected no results, got %v", results)
	}
}

func TestDeleteDocumentRemovesChunks(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	doc := domain.Document{ID: "doc1", Name: "lease.pdf"}
	chunks := []domain.DocumentChunk{
		{DocumentID: "doc1", ChunkIndex: 0, Content: "Quiet hours are from 10pm to 7am."},
	}
	if err := s.AddDocument(ctx, doc, chunks); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteDocument(ctx, "doc1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	results, err := s.Search(ctx, "quiet hours", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("chunks survived delete: %v", results)
	}

	docs, _ := s.ListDocuments(ctx)
	if len(docs) != 0 {
		t.Fatalf("document survived delete: %v", docs)
	}
}

func TestReingestReplacesChunks(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	doc := domain.Document{ID: "doc1", Name: "lease.pdf"}
	if err := s.AddDocument(ctx, doc, []domain.DocumentChunk{
		{DocumentID: "doc1", ChunkIndex: 0, Content: "old text about parking"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddDocument(ctx, doc, []domain.DocumentChunk{
		{DocumentID: "doc1", ChunkIndex: 0, Content: "new text about parking spaces"},
	}); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, "parking", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one chunk after re-ingest, got %d", len(results))
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leasebot.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	s1, err := NewSQLiteStore(path, logger)
	if err != nil {
		t.Fatal(err)
	}
	v, err := SchemaVersion(s1.DB())
	if err != nil {
		t.Fatal(err)
	}
	if v != migrations[len(migrations)-1].Version {
		t.Fatalf("schema version = %d", v)
	}
	s1.Close()

	s2, err := NewSQLiteStore(path, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	s2.Close()
}
