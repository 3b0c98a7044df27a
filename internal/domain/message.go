package domain

import "time"

// InboundMessage is one tenant message as received from a transport.
// It is immutable for the duration of a routing cycle.
type InboundMessage struct {
	Channel    string
	SenderID   string
	Body       string
	Media      []string // media URIs in the order the transport reported them
	ReceivedAt time.Time
}

// OutboundMessage carries the reply segments for one inbound message.
// Segments are already split to the transport size limit and must be
// delivered in order.
type OutboundMessage struct {
	Channel  string
	To       string
	Segments []string
}
