// Package session owns the authentication session: acquiring a token by
// login, restoring a persisted token at startup, recovering after an
// authorization failure, and clearing everything on logout.
//
// A Manager is the single writer of session state. Network and storage calls
// run outside its lock; only one of Login, Restore or Recover may be in flight
// at a time, and Logout invalidates whatever is in flight so it cannot commit
// afterwards.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/stadtwache/opsclient/credstore"
	"github.com/stadtwache/opsclient/gateway"
	"github.com/stadtwache/opsclient/observability"
	"github.com/stadtwache/opsclient/profile"
)

// Status is the session lifecycle state.
type Status int

const (
	Unauthenticated Status = iota
	Restoring
	Authenticated
	Recovering
)

func (s Status) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	case Recovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the session. Token is empty and User
// is the zero Profile unless Status is Authenticated.
type Snapshot struct {
	Status Status
	Token  string
	User   profile.Profile
	Busy   bool
}

// Transition records one status change.
type Transition struct {
	From Status
	To   Status
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver sets the event observer.
func WithObserver(o observability.Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithTransitionHook registers fn to run after every status change. It runs
// outside the Manager lock and may call back into the Manager.
func WithTransitionHook(fn func(Transition)) Option {
	return func(m *Manager) { m.hook = fn }
}

const (
	opLogin   = "login"
	opRestore = "restore"
	opRecover = "recover"
	opLogout  = "logout"
	opUpdate  = "update_profile"
)

type operation struct {
	name string
	done chan struct{}
	err  error
}

// Manager holds the session state machine.
type Manager struct {
	transport gateway.Transport
	vault     *credstore.Vault
	cfg       Config
	observer  observability.Observer
	hook      func(Transition)
	now       func() time.Time

	mu       sync.Mutex
	status   Status
	token    string
	user     profile.Profile
	gen      uint64
	inflight *operation
}

// New creates a Manager in the Unauthenticated state. transport carries the
// credential exchange and validation calls; vault persists the credential
// pair.
func New(transport gateway.Transport, vault *credstore.Vault, cfg *Config, opts ...Option) *Manager {
	merged := DefaultConfig()
	if cfg != nil {
		merged.Merge(cfg)
	}

	m := &Manager{
		transport: transport,
		vault:     vault,
		cfg:       merged,
		observer:  observability.NoOpObserver{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{Status: m.status, Busy: m.inflight != nil}
	if m.status == Authenticated {
		snap.Token = m.token
		snap.User = m.user
	}
	return snap
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Token returns the bearer token for outgoing requests. ok is false unless
// the session is Authenticated.
func (m *Manager) Token() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != Authenticated {
		return "", false
	}
	return m.token, true
}

// Restore loads the persisted credential pair and validates the token with
// the server. With no persisted pair the session stays Unauthenticated and
// Restore returns nil. Any failure clears the persisted pair.
func (m *Manager) Restore(ctx context.Context) error {
	started := m.now()

	m.mu.Lock()
	if m.inflight != nil {
		m.mu.Unlock()
		return newError(opRestore, ErrAlreadyInProgress, "", nil)
	}
	if m.status != Unauthenticated {
		status := m.status
		m.mu.Unlock()
		return newError(opRestore, ErrInvalidState, "session is "+status.String(), nil)
	}
	op := m.claim(opRestore)
	gen := m.gen
	m.mu.Unlock()

	err := m.restore(ctx, gen, started)
	m.release(op, err)
	return err
}

func (m *Manager) restore(ctx context.Context, gen uint64, started time.Time) error {
	defer m.pad(ctx, started)
	m.emit(ctx, EventRestoreStart, observability.LevelInfo, nil)

	rec, err := m.vault.Load(ctx)
	if errors.Is(err, credstore.ErrNoRecord) {
		m.emit(ctx, EventRestoreComplete, observability.LevelInfo, map[string]any{"restored": false})
		return nil
	}
	if err != nil {
		m.clearRecord(ctx, opRestore)
		return m.restoreFailed(ctx, newError(opRestore, ErrStorage, "", err))
	}

	user, err := profile.Parse(rec.Profile)
	if err == nil && user.IsZero() {
		err = profile.ErrInvalid
	}
	if err != nil {
		m.clearRecord(ctx, opRestore)
		return m.restoreFailed(ctx, newError(opRestore, ErrStorage, "persisted profile is unreadable", err))
	}

	if !m.transition(gen, Restoring, nil) {
		return newError(opRestore, ErrInvalidState, "session was closed during restore", nil)
	}

	verr := m.validate(ctx, opRestore, rec.Token)

	if verr != nil {
		m.clearRecord(ctx, opRestore)
		m.transition(gen, Unauthenticated, func() {
			m.token = ""
			m.user = profile.Profile{}
		})
		return m.restoreFailed(ctx, verr)
	}

	ok := m.transition(gen, Authenticated, func() {
		m.token = rec.Token
		m.user = user
	})
	if !ok {
		return newError(opRestore, ErrInvalidState, "session was closed during restore", nil)
	}

	m.emit(ctx, EventRestoreComplete, observability.LevelInfo, map[string]any{
		"restored": true,
		"user_id":  user.ID(),
	})
	return nil
}

func (m *Manager) restoreFailed(ctx context.Context, err *Error) error {
	m.emit(ctx, EventRestoreFailed, observability.LevelWarning, map[string]any{
		"kind":  err.Kind.Error(),
		"error": err.Error(),
	})
	return err
}

// pad waits until RestoreMinDuration has elapsed since started. It never
// shortens the operation.
func (m *Manager) pad(ctx context.Context, started time.Time) {
	remaining := m.cfg.RestoreMinDuration.Std() - m.now().Sub(started)
	if remaining <= 0 {
		return
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Login exchanges identifier and secret for a token. Both are trimmed; an
// empty value fails with ErrValidation before any network call. Login never
// retries and requires an Unauthenticated session.
func (m *Manager) Login(ctx context.Context, identifier, secret string) error {
	identifier = strings.TrimSpace(identifier)
	secret = strings.TrimSpace(secret)
	if identifier == "" || secret == "" {
		return newError(opLogin, ErrValidation, m.cfg.MissingCredentialsMessage, nil)
	}

	m.mu.Lock()
	if m.inflight != nil {
		m.mu.Unlock()
		return newError(opLogin, ErrAlreadyInProgress, "", nil)
	}
	if m.status != Unauthenticated {
		status := m.status
		m.mu.Unlock()
		return newError(opLogin, ErrInvalidState, "session is "+status.String(), nil)
	}
	op := m.claim(opLogin)
	gen := m.gen
	m.mu.Unlock()

	err := m.login(ctx, gen, identifier, secret)
	m.release(op, err)
	return err
}

type loginResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	User        profile.Profile `json:"user"`
}

func (m *Manager) login(ctx context.Context, gen uint64, identifier, secret string) error {
	m.emit(ctx, EventLoginStart, observability.LevelInfo, map[string]any{"identifier": identifier})

	req := gateway.NewRequest(http.MethodPost, "/api/auth/login")
	req.Body = map[string]string{"email": identifier, "password": secret}

	resp, err := m.transport.RoundTrip(ctx, req)
	if err == nil {
		err = resp.Err()
	}
	if err != nil {
		return m.loginFailed(ctx, m.classify(opLogin, err))
	}

	var body loginResponse
	if err := resp.Decode(&body); err != nil {
		return m.loginFailed(ctx, newError(opLogin, ErrNetworkUnavailable, m.cfg.GenericErrorMessage, err))
	}
	if body.AccessToken == "" || body.User.IsZero() {
		return m.loginFailed(ctx, newError(opLogin, ErrNetworkUnavailable, m.cfg.GenericErrorMessage,
			errors.New("login response is missing token or user")))
	}

	userJSON, err := body.User.MarshalJSON()
	if err != nil {
		return m.loginFailed(ctx, newError(opLogin, ErrStorage, "", err))
	}
	if err := m.vault.Save(ctx, credstore.Record{Token: body.AccessToken, Profile: userJSON}); err != nil {
		return m.loginFailed(ctx, newError(opLogin, ErrStorage, "", err))
	}

	ok := m.transition(gen, Authenticated, func() {
		m.token = body.AccessToken
		m.user = body.User
	})
	if !ok {
		m.clearRecord(ctx, opLogin)
		return m.loginFailed(ctx, newError(opLogin, ErrInvalidState, "session was closed during login", nil))
	}

	m.emit(ctx, EventLoginComplete, observability.LevelInfo, map[string]any{
		"user_id": body.User.ID(),
		"role":    body.User.Role(),
	})
	return nil
}

func (m *Manager) loginFailed(ctx context.Context, err *Error) error {
	m.emit(ctx, EventLoginFailed, observability.LevelWarning, map[string]any{
		"kind":    err.Kind.Error(),
		"message": err.Message,
	})
	return err
}

// Logout clears the session in memory and in storage. It is valid in every
// status and idempotent. Any in-flight operation is prevented from
// committing. The returned error reports only a storage failure; the
// in-memory session is cleared regardless.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.gen++
	from := m.status
	m.status = Unauthenticated
	m.token = ""
	m.user = profile.Profile{}
	m.mu.Unlock()

	if from != Unauthenticated {
		m.notify(ctx, Transition{From: from, To: Unauthenticated})
	}
	m.emit(ctx, EventLogout, observability.LevelInfo, map[string]any{"from": from.String()})

	if err := m.clearRecord(ctx, opLogout); err != nil {
		return newError(opLogout, ErrStorage, "", err)
	}
	return nil
}

// Recover re-validates the current token after an authorization failure.
// On success the session returns to Authenticated; on failure it is logged
// out. Concurrent callers share the outcome of the recovery already in
// flight.
func (m *Manager) Recover(ctx context.Context) error {
	m.mu.Lock()
	if op := m.inflight; op != nil {
		m.mu.Unlock()
		if op.name != opRecover {
			return newError(opRecover, ErrAlreadyInProgress, "", nil)
		}
		select {
		case <-op.done:
			return op.err
		case <-ctx.Done():
			return newError(opRecover, ErrNetworkUnavailable, m.cfg.GenericErrorMessage, ctx.Err())
		}
	}
	if m.status != Authenticated {
		status := m.status
		m.mu.Unlock()
		return newError(opRecover, ErrInvalidState, "session is "+status.String(), nil)
	}
	op := m.claim(opRecover)
	gen := m.gen
	token := m.token
	m.mu.Unlock()

	err := m.recover(ctx, gen, token)
	m.release(op, err)
	return err
}

func (m *Manager) recover(ctx context.Context, gen uint64, token string) error {
	m.emit(ctx, EventRecoverStart, observability.LevelInfo, nil)

	if !m.transition(gen, Recovering, nil) {
		return newError(opRecover, ErrInvalidState, "session was closed during recovery", nil)
	}

	if verr := m.validate(ctx, opRecover, token); verr != nil {
		m.emit(ctx, EventRecoverFailed, observability.LevelWarning, map[string]any{
			"kind":  verr.Kind.Error(),
			"error": verr.Error(),
		})
		m.mu.Lock()
		current := m.gen == gen
		m.mu.Unlock()
		if current {
			// A storage failure here is reported by Logout's own event.
			_ = m.Logout(ctx)
		}
		return verr
	}

	if !m.transition(gen, Authenticated, nil) {
		return newError(opRecover, ErrInvalidState, "session was closed during recovery", nil)
	}
	m.emit(ctx, EventRecoverComplete, observability.LevelInfo, nil)
	return nil
}

// UpdateProfile shallow-merges patch into the user profile, persists the
// merged pair and then commits it in memory. It requires an Authenticated
// session and occupies the in-flight slot until the pair is persisted, so no
// other session can start while the write is pending.
func (m *Manager) UpdateProfile(ctx context.Context, patch profile.Patch) error {
	m.mu.Lock()
	if m.inflight != nil {
		m.mu.Unlock()
		return newError(opUpdate, ErrAlreadyInProgress, "", nil)
	}
	if m.status != Authenticated {
		status := m.status
		m.mu.Unlock()
		return newError(opUpdate, ErrInvalidState, "session is "+status.String(), nil)
	}
	op := m.claim(opUpdate)
	gen, token, user := m.gen, m.token, m.user
	m.mu.Unlock()

	err := m.updateProfile(ctx, gen, token, user, patch)
	m.release(op, err)
	return err
}

func (m *Manager) updateProfile(ctx context.Context, gen uint64, token string, user profile.Profile, patch profile.Patch) error {
	merged, err := user.Merge(patch)
	if err != nil {
		return newError(opUpdate, ErrValidation, "", err)
	}
	data, err := merged.MarshalJSON()
	if err != nil {
		return newError(opUpdate, ErrValidation, "", err)
	}

	if err := m.vault.Save(ctx, credstore.Record{Token: token, Profile: data}); err != nil {
		return newError(opUpdate, ErrStorage, "", err)
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.clearRecord(ctx, opUpdate)
		return newError(opUpdate, ErrInvalidState, "session was closed during update", nil)
	}
	m.user = merged
	m.mu.Unlock()

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	m.emit(ctx, EventProfileUpdate, observability.LevelInfo, map[string]any{"fields": keys})
	return nil
}

// AwaitRecovery blocks until the recovery in flight, if any, has finished.
// It returns the recovery's error, or ctx's error when ctx ends first.
func (m *Manager) AwaitRecovery(ctx context.Context) error {
	m.mu.Lock()
	op := m.inflight
	m.mu.Unlock()

	if op == nil || op.name != opRecover {
		return nil
	}
	select {
	case <-op.done:
		return op.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// clearRecord deletes the persisted pair. A failure leaves a stale record
// behind and is reported as an event.
func (m *Manager) clearRecord(ctx context.Context, op string) error {
	err := m.vault.Clear(ctx)
	if err != nil {
		m.emit(ctx, EventClearFailed, observability.LevelWarning, map[string]any{
			"op":    op,
			"error": err.Error(),
		})
	}
	return err
}

// validate checks token against the server. Expired JWTs are rejected
// without a network call.
func (m *Manager) validate(ctx context.Context, op, token string) *Error {
	if tokenExpired(token, m.cfg.ExpiryLeeway.Std(), m.now()) {
		return newError(op, ErrAuthRejected, "token expired", nil)
	}

	req := gateway.NewRequest(http.MethodGet, "/api/auth/me")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := m.transport.RoundTrip(ctx, req)
	if err == nil {
		err = resp.Err()
	}
	if err != nil {
		return m.classify(op, err)
	}
	return nil
}

// classify maps a transport or status failure onto a failure kind. Server
// detail messages are preferred over the generic message.
func (m *Manager) classify(op string, err error) *Error {
	var se *gateway.StatusError
	if !errors.As(err, &se) {
		return newError(op, ErrNetworkUnavailable, m.cfg.GenericErrorMessage, err)
	}

	message := se.Detail
	if message == "" {
		message = m.cfg.GenericErrorMessage
	}
	if se.Status >= 400 && se.Status < 500 {
		return newError(op, ErrAuthRejected, message, err)
	}
	return newError(op, ErrNetworkUnavailable, message, err)
}

// claim occupies the in-flight slot. Caller holds m.mu.
func (m *Manager) claim(name string) *operation {
	op := &operation{name: name, done: make(chan struct{})}
	m.inflight = op
	return op
}

func (m *Manager) release(op *operation, err error) {
	m.mu.Lock()
	if m.inflight == op {
		m.inflight = nil
	}
	m.mu.Unlock()

	op.err = err
	close(op.done)
}

// transition moves to status and applies mutate under the lock, unless a
// Logout has happened since gen was read. It reports whether it committed.
func (m *Manager) transition(gen uint64, to Status, mutate func()) bool {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return false
	}
	from := m.status
	m.status = to
	if mutate != nil {
		mutate()
	}
	m.mu.Unlock()

	if from != to {
		m.notify(context.Background(), Transition{From: from, To: to})
	}
	return true
}

func (m *Manager) notify(ctx context.Context, t Transition) {
	m.emit(ctx, EventTransition, observability.LevelVerbose, map[string]any{
		"from": t.From.String(),
		"to":   t.To.String(),
	})
	if m.hook != nil {
		m.hook(t)
	}
}

func (m *Manager) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	observability.Emit(ctx, m.observer, typ, level, "session", data)
}
