// Package ticket turns classified maintenance requests into persisted
// tickets and renders tenant-facing confirmations.
package ticket

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"leasebot/internal/domain"
)

// Workflow owns ticket creation and the administrative update path. It is
// the sole writer of ticket records.
type Workflow struct {
	store     domain.TicketStore
	fetcher   domain.MediaFetcher
	imagesDir string
	logger    *slog.Logger

	mu         sync.Mutex
	lastIDUnix int64 // last issued id token, for monotonicity
}

type WorkflowConfig struct {
	Store     domain.TicketStore
	Fetcher   domain.MediaFetcher
	ImagesDir string
	Logger    *slog.Logger
}

func NewWorkflow(cfg WorkflowConfig) *Workflow {
	return &Workflow{
		store:     cfg.Store,
		fetcher:   cfg.Fetcher,
		imagesDir: cfg.ImagesDir,
		logger:    cfg.Logger,
	}
}

// nextTicketID issues a time-based id token. Tokens are monotonically
// non-decreasing within a process: when the clock has not advanced past the
// last issued token, the token is bumped instead, which also keeps ids
// pairwise distinct under bursts.
func (w *Workflow) nextTicketID() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now().UnixMilli()
	if now <= w.lastIDUnix {
		now = w.lastIDUnix + 1
	}
	w.lastIDUnix = now
	return fmt.Sprintf("MAINT-%d", now)
}

// Create allocates a ticket for the extracted maintenance data, persists
// it, attaches whatever media can be fetched, and renders the confirmation.
// The only error surfaced is a persistence failure: a ticket that cannot be
// durably recorded must not be confirmed to the tenant.
func (w *Workflow) Create(ctx context.Context, msg domain.InboundMessage, data *domain.TicketData) (*domain.MaintenanceTicket, string, error) {
	if data == nil {
		data = &domain.TicketData{Description: msg.Body}
	}

	description := strings.TrimSpace(data.Description)
	if description == "" {
		description = msg.Body
	}

	now := time.Now()
	t := &domain.MaintenanceTicket{
		TicketID:           w.nextTicketID(),
		Description:        description,
		TenantPhone:        NormalizePhone(msg.SenderID),
		Category:           domain.ParseCategory(string(data.Category)),
		Priority:           domain.ParsePriority(string(data.Priority)),
		Status:             domain.StatusNew,
		ApartmentNumber:    data.ApartmentNumber,
		AccessInstructions: data.AccessInstructions,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	t.ImagePaths = w.saveImages(ctx, t.TicketID, msg.Media)

	if err := w.store.Put(ctx, t); err != nil {
		return nil, "", fmt.Errorf("persist ticket %s: %w", t.TicketID, err)
	}

	w.logger.Info("maintenance ticket created",
		"ticket", t.TicketID,
		"category", t.Category,
		"priority", t.Priority,
		"images", len(t.ImagePaths),
	)

	return t, renderConfirmation(t), nil
}

// saveImages fetches each media reference and stores it under the
// per-ticket naming convention. A failed fetch skips that single item.
func (w *Workflow) saveImages(ctx context.Context, ticketID string, media []string) []string {
	if len(media) == 0 || w.fetcher == nil {
		return nil
	}

	if err := os.MkdirAll(w.imagesDir, 0o755); err != nil {
		w.logger.Error("cannot create images directory, skipping attachments", "dir", w.imagesDir, "err", err)
		return nil
	}

	var paths []string
	for i, uri := range media {
		data, err := w.fetcher.Fetch(ctx, uri)
		if err != nil {
			w.logger.Warn("media fetch failed, skipping attachment",
				"ticket", ticketID, "index", i, "err", err)
			continue
		}

		name := fmt.Sprintf("ticket_%s_img_%d.jpg", ticketID, i+1)
		path := filepath.Join(w.imagesDir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			w.logger.Warn("media save failed, skipping attachment",
				"ticket", ticketID, "path", path, "err", err)
			continue
		}
		paths = append(paths, path)
		w.logger.Info("saved attachment", "ticket", ticketID, "path", path)
	}
	return paths
}

// priorityGlyphs maps priority to the urgency marker shown to the tenant.
var priorityGlyphs = map[domain.TicketPriority]string{
	domain.PriorityEmergency: "🚨",
	domain.PriorityHigh:      "⚠️",
	domain.PriorityNormal:    "✅",
	domain.PriorityLow:       "ℹ️",
}

// renderConfirmation builds the templated confirmation message. The
// template is in the operator's language; the router deliberately skips
// translating it.
func renderConfirmation(t *domain.MaintenanceTicket) string {
	glyph, ok := priorityGlyphs[t.Priority]
	if !ok {
		glyph = "✅"
	}

	images := "No"
	if len(t.ImagePaths) > 0 {
		images = "Yes"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Maintenance Ticket #%s\n\n", glyph, t.TicketID)
	sb.WriteString("Your request has been received and assigned status: NEW\n\n")
	fmt.Fprintf(&sb, "Category: %s\n", titleCase(string(t.Category)))
	fmt.Fprintf(&sb, "Priority: %s\n\n", titleCase(string(t.Priority)))
	fmt.Fprintf(&sb, "Details:\n%s\n\n", t.Description)
	if t.ApartmentNumber != "" {
		fmt.Fprintf(&sb, "Apartment: %s\n", t.ApartmentNumber)
	}
	fmt.Fprintf(&sb, "Images Attached: %s\n\n", images)
	sb.WriteString("We'll review your request and provide updates.\n")
	fmt.Fprintf(&sb, "For status updates, text 'status #%s'", t.TicketID)
	return sb.String()
}

// UpdateRequest is the administrative status-update input.
type UpdateRequest struct {
	Status              domain.TicketStatus
	Note                string
	Author              string
	AssignedTo          string
	EstimatedCompletion *time.Time
}

// Update applies an administrative update, enforcing the status lifecycle.
func (w *Workflow) Update(ctx context.Context, ticketID string, req UpdateRequest) (*domain.MaintenanceTicket, error) {
	t, err := w.store.Get(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	if t == nil {
		return nil, fmt.Errorf("ticket %s not found", ticketID)
	}

	if req.Status != "" && req.Status != t.Status {
		if err := ValidateTransition(t.Status, req.Status); err != nil {
			return nil, err
		}
		t.Status = req.Status
	}
	if req.AssignedTo != "" {
		t.AssignedTo = req.AssignedTo
	}
	if req.EstimatedCompletion != nil {
		t.EstimatedCompletion = req.EstimatedCompletion
	}
	if req.Note != "" {
		t.Notes = append(t.Notes, domain.TicketNote{
			Text:      req.Note,
			Author:    req.Author,
			CreatedAt: time.Now(),
		})
	}
	t.UpdatedAt = time.Now()

	if err := w.store.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update ticket %s: %w", ticketID, err)
	}
	return t, nil
}

var ticketIDRe = regexp.MustCompile(`MAINT-\d+`)

// StatusReport resolves a ticket id mentioned in a status-check message and
// renders the current state. Like the confirmation, the report is templated
// in the operator's language.
func (w *Workflow) StatusReport(ctx context.Context, text string) string {
	id := ticketIDRe.FindString(text)
	if id == "" {
		return "Please include your ticket number, for example: status #MAINT-1712345678901"
	}

	t, err := w.store.Get(ctx, id)
	if err != nil {
		w.logger.Error("status lookup failed", "ticket", id, "err", err)
		return fmt.Sprintf("Sorry, I could not look up ticket #%s right now. Please try again later.", id)
	}
	if t == nil {
		return fmt.Sprintf("I could not find a ticket #%s. Please check the number and try again.", id)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Ticket #%s\n\n", t.TicketID)
	fmt.Fprintf(&sb, "Status: %s\n", strings.ToUpper(strings.ReplaceAll(string(t.Status), "_", " ")))
	fmt.Fprintf(&sb, "Category: %s\n", titleCase(string(t.Category)))
	fmt.Fprintf(&sb, "Priority: %s\n", titleCase(string(t.Priority)))
	if t.AssignedTo != "" {
		fmt.Fprintf(&sb, "Assigned to: %s\n", t.AssignedTo)
	}
	if t.EstimatedCompletion != nil {
		fmt.Fprintf(&sb, "Estimated completion: %s\n", t.EstimatedCompletion.Format("Jan 2, 2006"))
	}
	fmt.Fprintf(&sb, "Opened: %s", t.CreatedAt.Format("Jan 2, 2006"))
	return sb.String()
}

// NormalizePhone strips transport prefixes and spaces, and adds a country
// code to bare 10-digit US numbers.
func NormalizePhone(phone string) string {
	phone = strings.TrimPrefix(phone, "whatsapp:")
	phone = strings.ReplaceAll(phone, " ", "")
	if len(phone) == 10 && isDigits(phone) {
		return "+1" + phone
	}
	if strings.HasPrefix(phone, "1") && !strings.HasPrefix(phone, "+") && isDigits(phone) {
		return "+" + phone
	}
	return phone
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
