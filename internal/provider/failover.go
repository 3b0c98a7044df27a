package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"leasebot/internal/domain"
)

// Failover tries multiple providers in order, falling back to the next one
// when the current fails.
type Failover struct {
	providers []domain.Provider
	logger    *slog.Logger
}

// NewFailover creates a failover chain from the given providers.
// At least one provider is required.
func NewFailover(providers []domain.Provider, logger *slog.Logger) *Failover {
	return &Failover{
		providers: providers,
		logger:    logger,
	}
}

func (fp *Failover) Name() string {
	names := make([]string, len(fp.providers))
	for i, p := range fp.providers {
		names[i] = p.Name()
	}
	return "failover(" + strings.Join(names, ">") + ")"
}

func (fp *Failover) Models() []string {
	var all []string
	seen := make(map[string]bool)
	for _, p := range fp.providers {
		for _, m := range p.Models() {
			if !seen[m] {
				seen[m] = true
				all = append(all, m)
			}
		}
	}
	return all
}

func (fp *Failover) Healthy(ctx context.Context) error {
	for _, p := range fp.providers {
		if err := p.Healthy(ctx); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no healthy provider in failover chain")
}

// Chat tries each provider in order. Returns the first successful response.
func (fp *Failover) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	var lastErr error
	for i, p := range fp.providers {
		resp, err := p.Chat(ctx, req)
		if err == nil {
			if i > 0 {
				fp.logger.Info("failover succeeded", "provider", p.Name(), "attempts", i+1)
			}
			return resp, nil
		}
		lastErr = err
		fp.logger.Warn("provider failed, trying next", "provider", p.Name(), "err", err)
	}
	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}
