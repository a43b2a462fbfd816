package client

import "github.com/stadtwache/opsclient/observability"

// Client event types.
const (
	EventStart        observability.EventType = "client.start"
	EventPollingStart observability.EventType = "client.polling.start"
	EventPollingStop  observability.EventType = "client.polling.stop"
	EventClose        observability.EventType = "client.close"
)
