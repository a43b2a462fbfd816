// Package client composes the credential store, session manager, request
// gateway and status aggregator into one operations-dashboard client.
//
// The client initializes from configuration via New. Start restores a
// persisted session; while the session is authenticated the status
// aggregator polls, and it stops as soon as the session ends.
//
//	c, err := client.New(&cfg)
//	defer c.Close()
//	err = c.Start(ctx)
//	snap := c.Status()
package client

import (
	"context"
	"fmt"
	"io"
	"sync"

	"connectrpc.com/connect"

	"github.com/stadtwache/opsclient/credstore"
	"github.com/stadtwache/opsclient/gateway"
	"github.com/stadtwache/opsclient/observability"
	"github.com/stadtwache/opsclient/profile"
	"github.com/stadtwache/opsclient/session"
	"github.com/stadtwache/opsclient/status"
)

// Option configures a Client before its subsystems are wired. Options
// replace config-created defaults.
type Option func(*Client)

// WithStore overrides the config-created credential store.
func WithStore(s credstore.Store) Option {
	return func(c *Client) { c.store = s }
}

// WithTransport overrides the config-created HTTP transport.
func WithTransport(t gateway.Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithObserver overrides the observer named in the config.
func WithObserver(o observability.Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithQueries overrides the default status queries.
func WithQueries(queries ...status.Query) Option {
	return func(c *Client) { c.queries = queries }
}

// Client is the core consumed by the UI layer.
type Client struct {
	store     credstore.Store
	transport gateway.Transport
	observer  observability.Observer
	queries   []status.Query

	session *session.Manager
	gateway *gateway.Gateway
	status  *status.Aggregator

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup

	reconcileMu sync.Mutex
}

// New creates a Client from configuration.
func New(cfg *Config, opts ...Option) (*Client, error) {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}

	if c.observer == nil {
		name := cfg.Observer
		if name == "" {
			name = "noop"
		}
		obs, err := observability.GetObserver(name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		c.observer = obs
	}

	if c.transport == nil {
		t, err := gateway.NewHTTPTransport(&cfg.Server)
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		c.transport = t
	}

	if c.store == nil {
		s, err := credstore.NewStore(context.Background(), &cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("failed to create credential store: %w", err)
		}
		c.store = s
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.session = session.New(c.transport, credstore.NewVault(c.store), &cfg.Session,
		session.WithObserver(c.observer),
		session.WithTransitionHook(c.onTransition),
	)
	c.gateway = gateway.New(c.transport, c.session, gateway.WithObserver(c.observer))

	statusOpts := []status.Option{status.WithObserver(c.observer)}
	if len(c.queries) > 0 {
		statusOpts = append(statusOpts, status.WithQueries(c.queries...))
	}
	c.status = status.New(c.gateway, &cfg.Status, statusOpts...)

	return c, nil
}

// Start restores the persisted session. A failed restore leaves the client
// usable in the Unauthenticated state; the error says why.
func (c *Client) Start(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	observability.Emit(ctx, c.observer, EventStart, observability.LevelInfo, "client", nil)
	return c.session.Restore(ctx)
}

// Login signs in with identifier and secret.
func (c *Client) Login(ctx context.Context, identifier, secret string) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.session.Login(ctx, identifier, secret)
}

// Logout ends the session and stops polling.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

// UpdateProfile merges patch into the signed-in user's profile.
func (c *Client) UpdateProfile(ctx context.Context, patch profile.Patch) error {
	return c.session.UpdateProfile(ctx, patch)
}

// Session returns the current session state.
func (c *Client) Session() session.Snapshot {
	return c.session.Snapshot()
}

// Status returns the latest published status snapshot.
func (c *Client) Status() status.Snapshot {
	return c.status.Snapshot()
}

// Refresh polls the status sources immediately.
func (c *Client) Refresh(ctx context.Context) (status.Snapshot, error) {
	if c.isClosed() {
		return status.Snapshot{}, ErrClosed
	}
	if c.session.Status() != session.Authenticated {
		return status.Snapshot{}, ErrNotAuthenticated
	}
	return c.status.Refresh(ctx), nil
}

// Polling reports whether the status aggregator is running.
func (c *Client) Polling() bool {
	return c.status.Running()
}

// Gateway returns the authorized request gateway for additional API calls.
func (c *Client) Gateway() *gateway.Gateway {
	return c.gateway
}

// Interceptor returns a Connect interceptor that authorizes RPC clients with
// the current session.
func (c *Client) Interceptor() connect.Interceptor {
	return gateway.ConnectInterceptor(c.session)
}

// Close stops polling and releases the credential store. The persisted
// session is kept for the next Start.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.pending.Wait()
	c.status.Stop()

	observability.Emit(context.Background(), c.observer, EventClose, observability.LevelInfo, "client", nil)

	if closer, ok := c.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// onTransition runs the reconcile step on its own goroutine: the transition
// may come from inside a poll (a 401 recovery that ends in logout), and
// stopping the aggregator waits for that poll.
func (c *Client) onTransition(session.Transition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		c.reconcile()
	}()
}

// reconcile aligns polling with the current session status. Reconciles are
// serialized, so the last one to run always sees the latest status.
func (c *Client) reconcile() {
	c.reconcileMu.Lock()
	defer c.reconcileMu.Unlock()
	if c.isClosed() {
		return
	}

	switch c.session.Status() {
	case session.Authenticated:
		if !c.status.Running() {
			c.status.Start(c.ctx)
			c.emit(EventPollingStart)
		}
	case session.Unauthenticated:
		if c.status.Running() {
			c.status.Stop()
			c.emit(EventPollingStop)
		}
	}
}

func (c *Client) emit(typ observability.EventType) {
	observability.Emit(c.ctx, c.observer, typ, observability.LevelInfo, "client", nil)
}
