package gateway

import "github.com/stadtwache/opsclient/observability"

// Gateway event types.
const (
	EventRequest        observability.EventType = "gateway.request"
	EventResponse       observability.EventType = "gateway.response"
	EventRecover        observability.EventType = "gateway.recover"
	EventRecoverFailed  observability.EventType = "gateway.recover.failed"
	EventTransportError observability.EventType = "gateway.transport.error"
)
