package domain

import "context"

// Provider is the interface all LLM backends implement.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string
	Models() []string
	Healthy(ctx context.Context) error
}

type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

type ChatResponse struct {
	Content      string
	FinishReason string // stop | length
	Usage        Usage
	LatencyMs    int64
}

type Message struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Oracle is the normalized text-completion boundary every pipeline
// component calls. Whatever shape a backend returns, normalization to a
// plain string happens once, inside the adapter, never in business logic.
type Oracle interface {
	Complete(ctx context.Context, instruction, input string) (string, error)
}
