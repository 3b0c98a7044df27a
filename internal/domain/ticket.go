package domain

import (
	"context"
	"strings"
	"time"
)

// TicketCategory classifies a maintenance request. The set is closed;
// anything an oracle invents outside it is coerced to CategoryOther.
type TicketCategory string

const (
	CategoryPlumbing   TicketCategory = "plumbing"
	CategoryElectrical TicketCategory = "electrical"
	CategoryHVAC       TicketCategory = "hvac"
	CategoryAppliance  TicketCategory = "appliance"
	CategoryStructural TicketCategory = "structural"
	CategoryPest       TicketCategory = "pest"
	CategoryLocksmith  TicketCategory = "locksmith"
	CategoryCleaning   TicketCategory = "cleaning"
	CategoryOther      TicketCategory = "other"
)

// TicketPriority is the urgency of a maintenance request.
type TicketPriority string

const (
	PriorityLow       TicketPriority = "low"
	PriorityNormal    TicketPriority = "normal"
	PriorityHigh      TicketPriority = "high"
	PriorityEmergency TicketPriority = "emergency"
)

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusNew        TicketStatus = "new"
	StatusAssigned   TicketStatus = "assigned"
	StatusInProgress TicketStatus = "in_progress"
	StatusOnHold     TicketStatus = "on_hold"
	StatusCompleted  TicketStatus = "completed"
	StatusCancelled  TicketStatus = "cancelled"
)

// ParseCategory coerces an arbitrary string to a member of the closed
// category enum, falling back to CategoryOther.
func ParseCategory(s string) TicketCategory {
	c := TicketCategory(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryPlumbing, CategoryElectrical, CategoryHVAC, CategoryAppliance,
		CategoryStructural, CategoryPest, CategoryLocksmith, CategoryCleaning, CategoryOther:
		return c
	}
	return CategoryOther
}

// ParsePriority coerces an arbitrary string to a member of the closed
// priority enum, falling back to PriorityNormal.
func ParsePriority(s string) TicketPriority {
	p := TicketPriority(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityEmergency:
		return p
	}
	return PriorityNormal
}

// TicketNote is one free-form annotation appended during an update.
type TicketNote struct {
	Text      string    `json:"text"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MaintenanceTicket is a persisted maintenance-request record.
// Tickets are created in StatusNew and are never deleted; they terminate
// into StatusCompleted or StatusCancelled.
type MaintenanceTicket struct {
	TicketID            string         `json:"ticket_id"`
	Description         string         `json:"description"`
	TenantPhone         string         `json:"tenant_phone"`
	Category            TicketCategory `json:"category"`
	Priority            TicketPriority `json:"priority"`
	Status              TicketStatus   `json:"status"`
	ApartmentNumber     string         `json:"apartment_number,omitempty"`
	AccessInstructions  string         `json:"access_instructions,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	AssignedTo          string         `json:"assigned_to,omitempty"`
	EstimatedCompletion *time.Time     `json:"estimated_completion,omitempty"`
	ImagePaths          []string       `json:"image_paths"`
	Notes               []TicketNote   `json:"notes"`
}

// TicketStore persists tickets keyed by ticket id. Put during intake is
// create-only; Update is the administrative path.
type TicketStore interface {
	Put(ctx context.Context, t *MaintenanceTicket) error
	Get(ctx context.Context, ticketID string) (*MaintenanceTicket, error)
	Update(ctx context.Context, t *MaintenanceTicket) error
	List(ctx context.Context, limit int) ([]*MaintenanceTicket, error)
}

// MediaFetcher retrieves the bytes behind a media URI. Fetch failures are
// per-item and never abort ticket creation.
type MediaFetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}
