package status

import "github.com/stadtwache/opsclient/observability"

// Aggregator event types.
const (
	EventPollStart    observability.EventType = "status.poll.start"
	EventPollComplete observability.EventType = "status.poll.complete"
	EventQueryFailed  observability.EventType = "status.query.failed"
	EventDegraded     observability.EventType = "status.degraded"
	EventLoopStart    observability.EventType = "status.loop.start"
	EventLoopStop     observability.EventType = "status.loop.stop"
)
