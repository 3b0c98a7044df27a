package agent

import (
	"context"
	"log/slog"

	"leasebot/internal/bus"
	"leasebot/internal/domain"
	"leasebot/internal/lang"
)

const (
	rateLimitedReply = "⚠️ You're sending messages too quickly. Please wait a moment before trying again."
	panicReply       = "Sorry, something went wrong while processing your message. Please try again."
	persistFailReply = "Sorry, I couldn't record your maintenance request right now. Please try again in a few minutes."
)

// Classifier decides what an inbound message is asking for.
type Classifier interface {
	Classify(ctx context.Context, text string) domain.IntentResult
}

// Translator bridges the tenant's language and the pivot language the
// document engine works in.
type Translator interface {
	ToPivot(ctx context.Context, text, sourceLang string) string
	FromPivot(ctx context.Context, text, targetLang string) string
}

// Answerer resolves a document question to a reply string.
type Answerer interface {
	Answer(ctx context.Context, question string) string
}

// TicketDesk is the maintenance-workflow boundary the router drives.
type TicketDesk interface {
	Create(ctx context.Context, msg domain.InboundMessage, data *domain.TicketData) (*domain.MaintenanceTicket, string, error)
	StatusReport(ctx context.Context, text string) string
}

// Router runs the message pipeline: rate limit, detect language,
// classify, then branch to the ticket desk or the document engine.
type Router struct {
	classifier  Classifier
	translator  Translator
	engine      Answerer
	tickets     TicketDesk
	synthesizer *Synthesizer
	limiter     *RateLimiter
	events      *bus.EventBus
	logger      *slog.Logger
}

type RouterConfig struct {
	Classifier  Classifier
	Translator  Translator
	Engine      Answerer
	Tickets     TicketDesk
	Synthesizer *Synthesizer
	Limiter     *RateLimiter
	Events      *bus.EventBus
	Logger      *slog.Logger
}

func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		classifier:  cfg.Classifier,
		translator:  cfg.Translator,
		engine:      cfg.Engine,
		tickets:     cfg.Tickets,
		synthesizer: cfg.Synthesizer,
		limiter:     cfg.Limiter,
		events:      cfg.Events,
		logger:      cfg.Logger,
	}
}

func (r *Router) emit(eventType string, payload map[string]any) {
	if r.events == nil {
		return
	}
	r.events.Emit(bus.Event{Type: eventType, Source: "router", Payload: payload})
}

// stage closes the current trace stage and announces it on the event bus
// so latency metrics can be driven off the pipeline without coupling.
func (r *Router) stage(trace *Trace, name, detail string) {
	rec := trace.Record(name, detail)
	r.emit(bus.EventPipelineStage, map[string]any{
		"trace":   trace.ID,
		"stage":   rec.Stage,
		"seconds": rec.Elapsed.Seconds(),
	})
}

// Handle processes one inbound message and returns the reply body.
// It never panics outward: an unexpected failure anywhere in the
// pipeline degrades to a fixed apology.
func (r *Router) Handle(ctx context.Context, msg domain.InboundMessage) string {
	reply, _ := r.HandleTraced(ctx, msg)
	return reply
}

// HandleTraced is Handle plus the per-stage trace, for callers that need
// to inspect how the reply was produced.
func (r *Router) HandleTraced(ctx context.Context, msg domain.InboundMessage) (reply string, trace *Trace) {
	trace = NewTrace(msg.SenderID)
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("pipeline panic",
				"trace", trace.ID, "sender", msg.SenderID, "panic", rec)
			reply = panicReply
		}
	}()

	if r.limiter != nil && !r.limiter.Allow(msg.SenderID) {
		r.logger.Warn("rate limited", "trace", trace.ID, "sender", msg.SenderID)
		r.emit(bus.EventRateLimited, map[string]any{"sender": msg.SenderID})
		return rateLimitedReply, trace
	}

	detected := lang.Detect(msg.Body)
	r.stage(trace, "detect", detected)

	// Classification sees the original text: the oracle is multilingual
	// and extraction quality degrades through a translation round-trip.
	result := r.classifier.Classify(ctx, msg.Body)
	r.stage(trace, "classify", string(result.Intent))

	switch result.Intent {
	case domain.IntentMaintenance:
		reply = r.handleMaintenance(ctx, msg, result.TicketData, trace)
	case domain.IntentStatusCheck:
		reply = r.tickets.StatusReport(ctx, msg.Body)
		r.stage(trace, "status", "")
	default:
		reply = r.handleQuestion(ctx, msg.Body, detected, trace)
	}

	r.emit(bus.EventPipelineStage, map[string]any{
		"trace":   trace.ID,
		"stage":   "total",
		"seconds": trace.Total().Seconds(),
	})
	r.logger.Debug("message handled", trace.Attrs()...)
	return reply, trace
}

// handleMaintenance opens a ticket. The confirmation is a fixed template
// in the operator's language and is deliberately not translated, so the
// ticket id and status keywords survive verbatim.
func (r *Router) handleMaintenance(ctx context.Context, msg domain.InboundMessage, data *domain.TicketData, trace *Trace) string {
	t, confirmation, err := r.tickets.Create(ctx, msg, data)
	if err != nil {
		r.logger.Error("ticket creation failed",
			"trace", trace.ID, "sender", msg.SenderID, "err", err)
		r.stage(trace, "ticket", "failed")
		return persistFailReply
	}
	r.stage(trace, "ticket", t.TicketID)
	r.emit(bus.EventTicketCreated, map[string]any{
		"ticket_id": t.TicketID,
		"category":  string(t.Category),
		"priority":  string(t.Priority),
	})
	return confirmation
}

func (r *Router) handleQuestion(ctx context.Context, body, detected string, trace *Trace) string {
	question := r.translator.ToPivot(ctx, body, detected)
	r.stage(trace, "to_pivot", detected)

	answer := r.engine.Answer(ctx, question)
	r.stage(trace, "answer", Digest(answer))

	if r.synthesizer != nil {
		answer = r.synthesizer.Polish(ctx, answer)
		r.stage(trace, "polish", "")
	}

	reply := r.translator.FromPivot(ctx, answer, detected)
	r.stage(trace, "from_pivot", detected)
	return reply
}
