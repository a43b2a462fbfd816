// Package gateway sends authorized API requests. Every request carries the
// current session token, read from an Authenticator at send time. A 401 on a
// request triggers one recovery through the Authenticator and, if that
// succeeds, one resubmission; the retry budget belongs to the call, never to
// the Gateway.
//
//	gw := gateway.New(transport, manager)
//	var incidents []Incident
//	err := gw.GetJSON(ctx, "/api/incidents", nil, &incidents)
package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/stadtwache/opsclient/observability"
)

// Authenticator supplies the bearer token and performs recovery after an
// authorization failure. Token reports ok=false when no session is active.
type Authenticator interface {
	Token() (string, bool)
	Recover(ctx context.Context) error
}

// RecoveryWaiter is implemented by Authenticators that can report a
// recovery already in flight. A request that finds no token waits for that
// recovery before it is sent.
type RecoveryWaiter interface {
	AwaitRecovery(ctx context.Context) error
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithObserver sets the event observer.
func WithObserver(o observability.Observer) Option {
	return func(g *Gateway) { g.observer = o }
}

// Gateway wraps a Transport with bearer authorization and one-shot recovery.
type Gateway struct {
	transport Transport
	auth      Authenticator
	observer  observability.Observer
}

// New creates a Gateway. A nil auth sends requests without authorization.
func New(transport Transport, auth Authenticator, opts ...Option) *Gateway {
	g := &Gateway{
		transport: transport,
		auth:      auth,
		observer:  observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do sends req and returns the 2xx response. Non-2xx outcomes are returned
// as *StatusError. When recovery after a 401 fails, the original 401 is
// returned.
func (g *Gateway) Do(ctx context.Context, req *Request) (*Response, error) {
	retried := false

	for {
		attempt := req.Clone()
		authorized := g.authorize(ctx, attempt)

		g.emit(ctx, EventRequest, observability.LevelVerbose, map[string]any{
			"method":  attempt.Method,
			"path":    attempt.Path,
			"retried": retried,
		})

		resp, err := g.transport.RoundTrip(ctx, attempt)
		if err != nil {
			g.emit(ctx, EventTransportError, observability.LevelWarning, map[string]any{
				"path":  attempt.Path,
				"error": err.Error(),
			})
			return nil, err
		}

		g.emit(ctx, EventResponse, observability.LevelVerbose, map[string]any{
			"path":   attempt.Path,
			"status": resp.Status,
		})

		statusErr := resp.Err()
		if statusErr == nil {
			return resp, nil
		}
		if resp.Status != http.StatusUnauthorized || retried || !authorized {
			return nil, statusErr
		}

		retried = true
		g.emit(ctx, EventRecover, observability.LevelInfo, map[string]any{"path": attempt.Path})

		if rerr := g.auth.Recover(ctx); rerr != nil {
			g.emit(ctx, EventRecoverFailed, observability.LevelWarning, map[string]any{
				"path":  attempt.Path,
				"error": rerr.Error(),
			})
			return nil, statusErr
		}
	}
}

// GetJSON issues a GET for path with query and decodes the JSON body into out.
func (g *Gateway) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	req := NewRequest(http.MethodGet, path)
	req.Query = query

	resp, err := g.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

func (g *Gateway) authorize(ctx context.Context, req *Request) bool {
	if g.auth == nil {
		return false
	}
	token, ok := currentToken(ctx, g.auth)
	if !ok {
		req.Header.Del("Authorization")
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return true
}

// currentToken reads the token from auth, first waiting out a recovery in
// flight when auth can report one.
func currentToken(ctx context.Context, auth Authenticator) (string, bool) {
	token, ok := auth.Token()
	if ok {
		return token, true
	}
	w, isWaiter := auth.(RecoveryWaiter)
	if !isWaiter {
		return "", false
	}
	if err := w.AwaitRecovery(ctx); err != nil {
		return "", false
	}
	return auth.Token()
}

func (g *Gateway) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	observability.Emit(ctx, g.observer, typ, level, "gateway", data)
}
