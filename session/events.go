package session

import "github.com/stadtwache/opsclient/observability"

// Session event types. Event data never carries the token.
const (
	EventTransition      observability.EventType = "session.transition"
	EventRestoreStart    observability.EventType = "session.restore.start"
	EventRestoreComplete observability.EventType = "session.restore.complete"
	EventRestoreFailed   observability.EventType = "session.restore.failed"
	EventLoginStart      observability.EventType = "session.login.start"
	EventLoginComplete   observability.EventType = "session.login.complete"
	EventLoginFailed     observability.EventType = "session.login.failed"
	EventLogout          observability.EventType = "session.logout"
	EventRecoverStart    observability.EventType = "session.recover.start"
	EventRecoverComplete observability.EventType = "session.recover.complete"
	EventRecoverFailed   observability.EventType = "session.recover.failed"
	EventProfileUpdate   observability.EventType = "session.profile.update"
	EventClearFailed     observability.EventType = "session.clear.failed"
)
