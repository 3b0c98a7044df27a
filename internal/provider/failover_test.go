package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"leasebot/internal/domain"
)

type stubProvider struct {
	name  string
	fail  bool
	calls int
}

func (s *stubProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	s.calls++
	if s.fail {
		return nil, errors.New("stub failure")
	}
	return &domain.ChatResponse{Content: "reply from " + s.name}, nil
}

func (s *stubProvider) Name() string     { return s.name }
func (s *stubProvider) Models() []string { return []string{s.name + "-model"} }
func (s *stubProvider) Healthy(ctx context.Context) error {
	if s.fail {
		return fmt.Errorf("%s unhealthy", s.name)
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestFailover_FirstHealthyWins(t *testing.T) {
	a := &stubProvider{name: "a"}
	b := &stubProvider{name: "b"}
	fp := NewFailover([]domain.Provider{a, b}, testLogger())

	resp, err := fp.Chat(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "reply from a" {
		t.Fatalf("expected first provider, got %q", resp.Content)
	}
	if b.calls != 0 {
		t.Fatal("second provider should not be called")
	}
}

func TestFailover_FallsThrough(t *testing.T) {
	a := &stubProvider{name: "a", fail: true}
	b := &stubProvider{name: "b"}
	fp := NewFailover([]domain.Provider{a, b}, testLogger())

	resp, err := fp.Chat(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "reply from b" {
		t.Fatalf("expected fallback provider, got %q", resp.Content)
	}
}

func TestFailover_AllFail(t *testing.T) {
	a := &stubProvider{name: "a", fail: true}
	b := &stubProvider{name: "b", fail: true}
	fp := NewFailover([]domain.Provider{a, b}, testLogger())

	if _, err := fp.Chat(context.Background(), domain.ChatRequest{}); err == nil {
		t.Fatal("expected error when every provider fails")
	}
	if err := fp.Healthy(context.Background()); err == nil {
		t.Fatal("expected unhealthy chain")
	}
}

func TestOracleAdapter_NormalizesToText(t *testing.T) {
	p := &stubProvider{name: "a"}
	oracle := NewOracle(p)

	out, err := oracle.Complete(context.Background(), "instruction", "input")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "reply from a" {
		t.Fatalf("unexpected completion: %q", out)
	}
}

func TestOracleAdapter_PropagatesFailure(t *testing.T) {
	oracle := NewOracle(&stubProvider{name: "a", fail: true})
	if _, err := oracle.Complete(context.Background(), "i", "x"); err == nil {
		t.Fatal("expected error from failing provider")
	}
}
