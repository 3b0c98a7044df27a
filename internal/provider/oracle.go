package provider

import (
	"context"
	"fmt"
	"strings"

	"leasebot/internal/domain"
)

const (
	oracleMaxTokens   = 1024
	oracleTemperature = 0.2
)

// OracleAdapter turns a chat provider into the normalized text-completion
// boundary the pipeline components call. Whatever the backend puts in its
// response, callers only ever see a plain trimmed string.
type OracleAdapter struct {
	provider domain.Provider
}

func NewOracle(p domain.Provider) *OracleAdapter {
	return &OracleAdapter{provider: p}
}

func (a *OracleAdapter) Complete(ctx context.Context, instruction, input string) (string, error) {
	resp, err := a.provider.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{
			{Role: "system", Content: instruction},
			{Role: "user", Content: input},
		},
		MaxTokens:   oracleMaxTokens,
		Temperature: oracleTemperature,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("empty completion from %s", a.provider.Name())
	}
	return text, nil
}
