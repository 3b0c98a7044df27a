package domain

import "context"

// Channel is the interface for tenant-facing transports (WhatsApp,
// Telegram, CLI). Delivery confirmation and signature verification live
// here, not in the pipeline.
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
	Send(ctx context.Context, to string, segments []string) error
}
