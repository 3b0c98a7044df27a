package agent

import (
	"context"
	"log/slog"

	"leasebot/internal/bus"
	"leasebot/internal/domain"
)

const defaultConcurrency = 3

// Loop consumes inbound messages from the bus, runs each through the
// router with bounded concurrency, and publishes the segmented reply.
type Loop struct {
	bus          domain.MessageBus
	router       *Router
	events       *bus.EventBus
	logger       *slog.Logger
	concurrency  int
	segmentLimit int
}

type LoopConfig struct {
	Bus          domain.MessageBus
	Router       *Router
	Events       *bus.EventBus
	Logger       *slog.Logger
	Concurrency  int // max in-flight messages (default 3)
	SegmentLimit int // max runes per outbound segment (default 1500)
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.SegmentLimit <= 0 {
		cfg.SegmentLimit = DefaultSegmentLimit
	}
	return &Loop{
		bus:          cfg.Bus,
		router:       cfg.Router,
		events:       cfg.Events,
		logger:       cfg.Logger,
		concurrency:  cfg.Concurrency,
		segmentLimit: cfg.SegmentLimit,
	}
}

// Run consumes inbound messages until the context is cancelled or the
// bus closes. Each message is processed in its own goroutine; the
// semaphore bounds how many run at once.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("pipeline loop started", "concurrency", l.concurrency)

	sem := make(chan struct{}, l.concurrency)
	inbound := l.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("pipeline loop stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				l.logger.Info("inbound channel closed, pipeline loop stopping")
				return
			}
			sem <- struct{}{}
			go func(m domain.InboundMessage) {
				defer func() { <-sem }()
				l.process(ctx, m)
			}(msg)
		}
	}
}

// ProcessDirect runs a message through the pipeline synchronously and
// returns the reply segments. Used by the CLI channel.
func (l *Loop) ProcessDirect(ctx context.Context, msg domain.InboundMessage) []string {
	reply := l.router.Handle(ctx, msg)
	return SplitMessage(reply, l.segmentLimit)
}

func (l *Loop) process(ctx context.Context, msg domain.InboundMessage) {
	l.logger.Info("processing message",
		"channel", msg.Channel,
		"sender", msg.SenderID,
		"body_digest", Digest(msg.Body),
		"media", len(msg.Media),
	)
	if l.events != nil {
		l.events.Emit(bus.Event{
			Type:   bus.EventMessageReceived,
			Source: "loop",
			Payload: map[string]any{
				"channel": msg.Channel,
				"sender":  msg.SenderID,
			},
		})
	}

	reply := l.router.Handle(ctx, msg)
	segments := SplitMessage(reply, l.segmentLimit)

	l.bus.SendOutbound(domain.OutboundMessage{
		Channel:  msg.Channel,
		To:       msg.SenderID,
		Segments: segments,
	})

	if l.events != nil {
		l.events.Emit(bus.Event{
			Type:   bus.EventReplySent,
			Source: "loop",
			Payload: map[string]any{
				"channel":  msg.Channel,
				"sender":   msg.SenderID,
				"segments": len(segments),
			},
		})
	}
}
