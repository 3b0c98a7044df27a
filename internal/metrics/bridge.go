package metrics

import "leasebot/internal/bus"

// ObserveEvents wires the pipeline's event bus into the collector so the
// /metrics endpoint reflects live traffic without the pipeline knowing
// about Prometheus.
func ObserveEvents(events *bus.EventBus) {
	events.On(bus.EventMessageReceived, func(bus.Event) { MessagesTotal.Inc() })
	events.On(bus.EventReplySent, func(bus.Event) { RepliesTotal.Inc() })
	events.On(bus.EventTicketCreated, func(bus.Event) { TicketsCreated.Inc() })
	events.On(bus.EventRateLimited, func(bus.Event) { RateLimitedTotal.Inc() })
	events.On(bus.EventOracleError, func(bus.Event) { OracleErrors.Inc() })
	events.On(bus.EventPipelineStage, func(ev bus.Event) {
		stage, _ := ev.Payload["stage"].(string)
		seconds, _ := ev.Payload["seconds"].(float64)
		switch stage {
		case "":
			return
		case "total":
			PipelineLatency.Observe(seconds)
		default:
			StageLatency(stage).Observe(seconds)
		}
	})
}
