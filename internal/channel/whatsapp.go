package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"time"

	"leasebot/internal/config"
	"leasebot/internal/domain"
)

const whatsappAPIBase = "https://graph.facebook.com/v21.0"

// WhatsApp implements domain.Channel for the WhatsApp Business Cloud API.
// Inbound webhooks are verified with the app secret; outbound replies are
// delivered segment by segment, in order.
type WhatsApp struct {
	cfg     config.WhatsAppConfig
	bus     domain.MessageBus
	logger  *slog.Logger
	client  *http.Client
	mux     *http.ServeMux
	apiBase string
}

type WhatsAppChannelConfig struct {
	Config config.WhatsAppConfig
	Logger *slog.Logger

	// APIBase overrides the Graph API endpoint in tests.
	APIBase string
}

func NewWhatsApp(cfg WhatsAppChannelConfig) *WhatsApp {
	base := cfg.APIBase
	if base == "" {
		base = whatsappAPIBase
	}
	return &WhatsApp{
		cfg:     cfg.Config,
		logger:  cfg.Logger,
		client:  &http.Client{Timeout: 30 * time.Second},
		apiBase: base,
	}
}

func (w *WhatsApp) Name() string { return "whatsapp" }

func (w *WhatsApp) Start(ctx context.Context, bus domain.MessageBus) error {
	w.bus = bus

	bus.OnOutbound("whatsapp", func(msg domain.OutboundMessage) {
		if err := w.Send(ctx, msg.To, msg.Segments); err != nil {
			w.logger.Error("whatsapp send failed", "err", err, "to", msg.To)
		}
	})

	w.mux = http.NewServeMux()
	webhookPath := w.cfg.WebhookPath
	if webhookPath == "" {
		webhookPath = "/webhook/whatsapp"
	}

	w.mux.HandleFunc("GET "+webhookPath, w.handleVerification)
	w.mux.HandleFunc("POST "+webhookPath, w.handleIncoming)

	w.logger.Info("whatsapp channel ready", "webhook", webhookPath)
	return nil
}

func (w *WhatsApp) Stop() error { return nil }

// Send delivers the reply segments in order. A failed segment aborts the
// rest so the tenant never sees "Part 3/3" before "Part 2/3".
func (w *WhatsApp) Send(ctx context.Context, to string, segments []string) error {
	for i, segment := range segments {
		if err := w.sendText(ctx, to, segment); err != nil {
			return fmt.Errorf("segment %d/%d: %w", i+1, len(segments), err)
		}
	}
	return nil
}

// Handler returns the webhook handler to be mounted on the main mux.
func (w *WhatsApp) Handler() http.Handler {
	if w.mux == nil {
		return http.NotFoundHandler()
	}
	return w.mux
}

// --- Webhook handlers ---

// handleVerification answers the WhatsApp webhook verification challenge.
func (w *WhatsApp) handleVerification(rw http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == w.cfg.VerifyToken {
		w.logger.Info("whatsapp webhook verified")
		rw.WriteHeader(http.StatusOK)
		fmt.Fprint(rw, html.EscapeString(challenge))
		return
	}

	w.logger.Warn("whatsapp webhook verification failed", "mode", mode)
	http.Error(rw, "Forbidden", http.StatusForbidden)
}

// handleIncoming verifies the signature and publishes text and image
// messages to the bus. Unsupported message types are acknowledged and
// dropped so WhatsApp does not retry them.
func (w *WhatsApp) handleIncoming(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(rw, "Bad request", http.StatusBadRequest)
		return
	}

	if w.cfg.AppSecret != "" {
		sig := r.Header.Get("X-Hub-Signature-256")
		if !w.verifySignature(body, sig) {
			w.logger.Warn("whatsapp invalid signature")
			http.Error(rw, "Forbidden", http.StatusForbidden)
			return
		}
	}

	var payload waPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		w.logger.Warn("whatsapp bad payload", "err", err)
		http.Error(rw, "Bad request", http.StatusBadRequest)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				w.handleMessage(r.Context(), msg)
			}
		}
	}

	rw.WriteHeader(http.StatusOK)
}

func (w *WhatsApp) handleMessage(ctx context.Context, msg waMessage) {
	inbound := domain.InboundMessage{
		Channel:    "whatsapp",
		SenderID:   msg.From,
		ReceivedAt: time.Now(),
	}

	switch msg.Type {
	case "text":
		if msg.Text == nil {
			return
		}
		inbound.Body = msg.Text.Body
	case "image":
		if msg.Image == nil {
			return
		}
		inbound.Body = msg.Image.Caption
		url, err := w.resolveMediaURL(ctx, msg.Image.ID)
		if err != nil {
			// Media resolution is best-effort: the text still flows through.
			w.logger.Warn("whatsapp media resolve failed", "media_id", msg.Image.ID, "err", err)
		} else {
			inbound.Media = []string{url}
		}
	default:
		w.logger.Debug("whatsapp unsupported message type dropped", "type", msg.Type)
		return
	}

	w.logger.Info("whatsapp message received",
		"from", msg.From, "type", msg.Type, "media", len(inbound.Media))
	w.bus.Publish(inbound)
}

// verifySignature checks the X-Hub-Signature-256 header.
func (w *WhatsApp) verifySignature(body []byte, signature string) bool {
	if len(signature) < 7 || signature[:7] != "sha256=" {
		return false
	}
	expected := signature[7:]

	mac := hmac.New(sha256.New, []byte(w.cfg.AppSecret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(computed))
}

// resolveMediaURL exchanges a media id for its short-lived download URL.
func (w *WhatsApp) resolveMediaURL(ctx context.Context, mediaID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/%s", w.apiBase, mediaID), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+w.cfg.AccessToken)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("media lookup %d: %s", resp.StatusCode, string(respBody))
	}

	var media struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return "", err
	}
	if media.URL == "" {
		return "", fmt.Errorf("media %s has no url", mediaID)
	}
	return media.URL, nil
}

// sendText sends one text message via the Cloud API.
func (w *WhatsApp) sendText(ctx context.Context, to string, text string) error {
	url := fmt.Sprintf("%s/%s/messages", w.apiBase, w.cfg.PhoneNumberID)

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": text},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.cfg.AccessToken)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp API %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// --- WhatsApp webhook payload types ---

type waPayload struct {
	Object string    `json:"object"`
	Entry  []waEntry `json:"entry"`
}

type waEntry struct {
	ID      string     `json:"id"`
	Changes []waChange `json:"changes"`
}

type waChange struct {
	Value waValue `json:"value"`
	Field string  `json:"field"`
}

type waValue struct {
	MessagingProduct string      `json:"messaging_product"`
	Messages         []waMessage `json:"messages"`
}

type waMessage struct {
	From  string   `json:"from"`
	ID    string   `json:"id"`
	Type  string   `json:"type"`
	Text  *waText  `json:"text,omitempty"`
	Image *waImage `json:"image,omitempty"`
}

type waText struct {
	Body string `json:"body"`
}

type waImage struct {
	ID      string `json:"id"`
	Caption string `json:"caption,omitempty"`
	MIME    string `json:"mime_type,omitempty"`
}
