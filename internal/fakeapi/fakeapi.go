// Package fakeapi is an in-process stand-in for the operations backend. It
// serves the login, identity, incident, roster and message endpoints with
// HS256 tokens and lets tests inject failures and revoke sessions.
package fakeapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default seed credentials.
const (
	AdminEmail    = "admin@stadtwache.sys"
	AdminPassword = "admin123"
)

// Incident is one entry of GET /api/incidents.
type Incident struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
}

// Message is one entry of GET /api/messages.
type Message struct {
	ID      string `json:"id"`
	Channel string `json:"channel"`
	Content string `json:"content"`
}

type account struct {
	password string
	fields   map[string]any
}

type claims struct {
	Epoch int `json:"epoch"`
	jwt.RegisteredClaims
}

// Option configures a Server.
type Option func(*Server)

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) { s.ttl = ttl }
}

// WithoutSeed starts the server with no accounts, incidents or messages.
func WithoutSeed() Option {
	return func(s *Server) { s.seed = false }
}

// Server is an http.Handler emulating the backend.
type Server struct {
	router http.Handler
	secret []byte
	ttl    time.Duration
	seed   bool

	mu        sync.Mutex
	accounts  map[string]*account
	incidents []Incident
	messages  []Message
	epoch     int
	failures  map[string]int
	delays    map[string]time.Duration
	calls     map[string]int
}

// New creates a Server seeded with an admin account and a few records.
func New(opts ...Option) *Server {
	s := &Server{
		secret:   []byte(uuid.NewString()),
		ttl:      time.Hour,
		seed:     true,
		accounts: make(map[string]*account),
		failures: make(map[string]int),
		delays:   make(map[string]time.Duration),
		calls:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.seed {
		s.seedData()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.inject)
	r.Post("/api/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/api/auth/me", s.handleMe)
		r.Get("/api/incidents", s.handleIncidents)
		r.Get("/api/users/by-status", s.handleUsersByStatus)
		r.Get("/api/messages", s.handleMessages)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) seedData() {
	s.accounts[AdminEmail] = &account{
		password: AdminPassword,
		fields: map[string]any{
			"id":             uuid.NewString(),
			"email":          AdminEmail,
			"username":       "Administrator",
			"role":           "admin",
			"badge_number":   "ADMIN001",
			"department":     "Administration",
			"rank":           "Hauptkommissar",
			"status":         "Im Dienst",
			"service_number": "SVC001",
		},
	}
	s.accounts["streife1@stadtwache.sys"] = &account{
		password: "streife123",
		fields: map[string]any{
			"id":         uuid.NewString(),
			"email":      "streife1@stadtwache.sys",
			"username":   "Streife 1",
			"role":       "police",
			"department": "Streifendienst",
			"status":     "Im Dienst",
		},
	}
	s.accounts["streife2@stadtwache.sys"] = &account{
		password: "streife123",
		fields: map[string]any{
			"id":         uuid.NewString(),
			"email":      "streife2@stadtwache.sys",
			"username":   "Streife 2",
			"role":       "police",
			"department": "Streifendienst",
			"status":     "Pause",
		},
	}

	s.incidents = []Incident{
		{ID: uuid.NewString(), Title: "Verkehrsunfall B7", Priority: "high", Status: "open"},
		{ID: uuid.NewString(), Title: "Ruhestörung Hauptstraße", Priority: "low", Status: "in_progress"},
		{ID: uuid.NewString(), Title: "Taschendiebstahl Markt", Priority: "medium", Status: "closed"},
	}
	s.messages = []Message{
		{ID: uuid.NewString(), Channel: "general", Content: "Alle Einheiten, bitte Status melden."},
		{ID: uuid.NewString(), Channel: "general", Content: "Streife 1 im Einsatz."},
		{ID: uuid.NewString(), Channel: "emergency", Content: "Alarm Marktplatz."},
	}
}

// AddUser registers an account. fields become the profile returned by
// login and /api/auth/me; email is set from the argument.
func (s *Server) AddUser(email, password string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		profile[k] = v
	}
	profile["email"] = email
	if _, ok := profile["id"]; !ok {
		profile["id"] = uuid.NewString()
	}
	s.accounts[email] = &account{password: password, fields: profile}
}

// AddIncident appends an incident.
func (s *Server) AddIncident(title, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = append(s.incidents, Incident{ID: uuid.NewString(), Title: title, Priority: "medium", Status: status})
}

// AddMessage appends a message to channel.
func (s *Server) AddMessage(channel, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{ID: uuid.NewString(), Channel: channel, Content: content})
}

// IssueToken returns a token for email valid for ttl. A negative ttl yields
// an already expired token.
func (s *Server) IssueToken(email string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()
	return s.sign(email, epoch, ttl)
}

// RevokeAll invalidates every token issued so far.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
}

// Fail makes every request to path answer with status until Heal is called.
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = status
}

// Delay holds every request to path for d before handling it.
func (s *Server) Delay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = d
}

// Heal removes injected failures and delays for path.
func (s *Server) Heal(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, path)
	delete(s.delays, path)
}

// Calls returns how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func (s *Server) sign(email string, epoch int, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Epoch: epoch,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(s.secret)
}

func (s *Server) verify(raw string) (*account, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Epoch != s.epoch {
		return nil, errors.New("token revoked")
	}
	acct, ok := s.accounts[c.Subject]
	if !ok {
		return nil, fmt.Errorf("unknown subject %q", c.Subject)
	}
	return acct, nil
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		status, failing := s.failures[r.URL.Path]
		delay := s.delays[r.URL.Path]
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			writeDetail(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type accountKey struct{}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		acct, err := s.verify(raw)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), acct)))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[body.Email]
	epoch := s.epoch
	s.mu.Unlock()

	if !ok || acct.password != body.Password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	token, err := s.sign(body.Email, epoch, s.ttl)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"user":         acct.fields,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, accountFrom(r.Context()).fields)
}

func (s *Server) handleIncidents(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := append([]Incident(nil), s.incidents...)
	s.mu.Unlock()

	if out == nil {
		out = []Incident{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUsersByStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	groups := make(map[string][]map[string]any)
	emails := make([]string, 0, len(s.accounts))
	for email := range s.accounts {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	for _, email := range emails {
		fields := s.accounts[email].fields
		status, _ := fields["status"].(string)
		if status == "" {
			status = "Außer Dienst"
		}
		groups[status] = append(groups[status], fields)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")

	s.mu.Lock()
	out := []Message{}
	for _, m := range s.messages {
		if channel == "" || m.Channel == channel {
			out = append(out, m)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
