package domain

// Intent is the classified purpose of an inbound message.
type Intent string

const (
	IntentQuestion    Intent = "question"
	IntentMaintenance Intent = "maintenance"
	IntentStatusCheck Intent = "status_check"
	IntentOther       Intent = "other"
)

// TicketData is the structured extraction the classifier produces for
// maintenance requests.
type TicketData struct {
	Description        string         `json:"description"`
	Location           string         `json:"location"`
	Symptoms           string         `json:"symptoms"`
	Category           TicketCategory `json:"category"`
	Priority           TicketPriority `json:"priority"`
	ApartmentNumber    string         `json:"apartment_number"`
	AccessInstructions string         `json:"access_instructions"`
}

// IntentResult is produced exactly once per message.
// TicketData is non-nil if and only if Intent is IntentMaintenance.
type IntentResult struct {
	Intent     Intent
	Confidence float64
	TicketData *TicketData
}
