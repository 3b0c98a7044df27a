package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"leasebot/internal/config"
	"leasebot/internal/domain"
)

type captureBus struct {
	mu       sync.Mutex
	inbound  []domain.InboundMessage
	handlers map[string]func(domain.OutboundMessage)
}

func newCaptureBus() *captureBus {
	return &captureBus{handlers: make(map[string]func(domain.OutboundMessage))}
}

func (b *captureBus) Publish(msg domain.InboundMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inbound = append(b.inbound, msg)
}

func (b *captureBus) Subscribe() <-chan domain.InboundMessage { return nil }
func (b *captureBus) SendOutbound(msg domain.OutboundMessage) {
	if h, ok := b.handlers[msg.Channel]; ok {
		h(msg)
	}
}
func (b *captureBus) OnOutbound(name string, h func(domain.OutboundMessage)) { b.handlers[name] = h }
func (b *captureBus) Close()                                                {}

func (b *captureBus) messages() []domain.InboundMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.InboundMessage(nil), b.inbound...)
}

func testWhatsApp(t *testing.T, cfg config.WhatsAppConfig, apiBase string) (*WhatsApp, *captureBus) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	wa := NewWhatsApp(WhatsAppChannelConfig{Config: cfg, Logger: logger, APIBase: apiBase})
	bus := newCaptureBus()
	if err := wa.Start(context.Background(), bus); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return wa, bus
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func textPayload(from, body string) []byte {
	p := waPayload{
		Object: "whatsapp_business_account",
		Entry: []waEntry{{
			Changes: []waChange{{
				Value: waValue{Messages: []waMessage{{
					From: from, Type: "text", Text: &waText{Body: body},
				}}},
			}},
		}},
	}
	out, _ := json.Marshal(p)
	return out
}

func TestWhatsApp_VerificationChallenge(t *testing.T) {
	wa, _ := testWhatsApp(t, config.WhatsAppConfig{VerifyToken: "secret-token"}, "")

	req := httptest.NewRequest("GET",
		"/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	wa.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "12345" {
		t.Fatalf("verification failed: %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest("GET",
		"/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rec = httptest.NewRecorder()
	wa.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("bad token must be rejected, got %d", rec.Code)
	}
}

func TestWhatsApp_SignatureEnforced(t *testing.T) {
	wa, bus := testWhatsApp(t, config.WhatsAppConfig{AppSecret: "app-secret"}, "")
	body := textPayload("15550001111", "hello")

	req := httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(string(body)))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()
	wa.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("forged signature must be rejected, got %d", rec.Code)
	}
	if len(bus.messages()) != 0 {
		t.Fatal("rejected request must not publish")
	}

	req = httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(string(body)))
	req.Header.Set("X-Hub-Signature-256", sign("app-secret", body))
	rec = httptest.NewRecorder()
	wa.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid signature rejected: %d", rec.Code)
	}

	msgs := bus.messages()
	if len(msgs) != 1 || msgs[0].Body != "hello" || msgs[0].SenderID != "15550001111" {
		t.Fatalf("unexpected inbound: %+v", msgs)
	}
}

func TestWhatsApp_ImageMessageResolvesMediaURL(t *testing.T) {
	graph := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/media-123" {
			json.NewEncoder(rw).Encode(map[string]string{"url": "https://cdn.example/file.jpg"})
			return
		}
		http.NotFound(rw, r)
	}))
	defer graph.Close()

	wa, bus := testWhatsApp(t, config.WhatsAppConfig{AccessToken: "tok"}, graph.URL)

	p := waPayload{Entry: []waEntry{{Changes: []waChange{{Value: waValue{Messages: []waMessage{{
		From: "15550001111", Type: "image",
		Image: &waImage{ID: "media-123", Caption: "leaking pipe"},
	}}}}}}}}
	body, _ := json.Marshal(p)

	req := httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	wa.Handler().ServeHTTP(rec, req)

	msgs := bus.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 inbound, got %d", len(msgs))
	}
	if msgs[0].Body != "leaking pipe" {
		t.Fatalf("caption lost: %q", msgs[0].Body)
	}
	if len(msgs[0].Media) != 1 || msgs[0].Media[0] != "https://cdn.example/file.jpg" {
		t.Fatalf("media url not resolved: %v", msgs[0].Media)
	}
}

func TestWhatsApp_UnsupportedTypeDropped(t *testing.T) {
	wa, bus := testWhatsApp(t, config.WhatsAppConfig{}, "")

	p := waPayload{Entry: []waEntry{{Changes: []waChange{{Value: waValue{Messages: []waMessage{{
		From: "15550001111", Type: "audio",
	}}}}}}}}
	body, _ := json.Marshal(p)

	req := httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	wa.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unsupported types are acked, got %d", rec.Code)
	}
	if len(bus.messages()) != 0 {
		t.Fatal("unsupported types must not reach the pipeline")
	}
}

func TestWhatsApp_SendDeliversSegmentsInOrder(t *testing.T) {
	var mu sync.Mutex
	var sent []string
	graph := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var payload struct {
			Text struct {
				Body string `json:"body"`
			} `json:"text"`
		}
		json.Unmarshal(raw, &payload)
		mu.Lock()
		sent = append(sent, payload.Text.Body)
		mu.Unlock()
		rw.WriteHeader(http.StatusOK)
	}))
	defer graph.Close()

	wa, _ := testWhatsApp(t, config.WhatsAppConfig{PhoneNumberID: "pnid", AccessToken: "tok"}, graph.URL)

	segments := []string{"Part 1/2:\nfirst", "Part 2/2:\nsecond"}
	if err := wa.Send(context.Background(), "15550001111", segments); err != nil {
		t.Fatalf("Send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sent) != 2 || sent[0] != segments[0] || sent[1] != segments[1] {
		t.Fatalf("segments out of order or missing: %v", sent)
	}
}

func TestWhatsApp_SendAbortsOnFailedSegment(t *testing.T) {
	var calls int
	graph := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(rw, "boom", http.StatusInternalServerError)
	}))
	defer graph.Close()

	wa, _ := testWhatsApp(t, config.WhatsAppConfig{PhoneNumberID: "pnid"}, graph.URL)

	err := wa.Send(context.Background(), "15550001111", []string{"a", "b", "c"})
	if err == nil {
		t.Fatal("expected send failure")
	}
	if calls != 1 {
		t.Fatalf("later segments must not be sent after a failure, calls=%d", calls)
	}
}
