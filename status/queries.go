package status

import (
	"context"
	"encoding/json"
	"net/url"
)

// Requester performs authorized JSON GETs. *gateway.Gateway satisfies it.
type Requester interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// Query is one independent data source of the dashboard. Fetch produces a
// value; Assign stores it (or Fallback when Fetch failed) on the snapshot.
type Query struct {
	Name     string
	Fallback int
	Fetch    func(ctx context.Context, r Requester) (int, error)
	Assign   func(s *Snapshot, v int)
}

// Query names of the default set.
const (
	QueryOpenIncidents  = "open_incidents"
	QueryActiveOfficers = "active_officers"
	QueryMessages       = "messages"
)

// DefaultQueries returns the open incident, on-duty officer and message
// count queries configured by cfg.
func DefaultQueries(cfg *Config) []Query {
	return []Query{
		{
			Name:     QueryOpenIncidents,
			Fallback: cfg.Fallback.OpenIncidents,
			Fetch:    countOpenIncidents,
			Assign:   func(s *Snapshot, v int) { s.OpenIncidents = v },
		},
		{
			Name:     QueryActiveOfficers,
			Fallback: cfg.Fallback.ActiveOfficers,
			Fetch:    countOnDuty(cfg.OnDutyStatus),
			Assign:   func(s *Snapshot, v int) { s.ActiveOfficers = v },
		},
		{
			Name:     QueryMessages,
			Fallback: cfg.Fallback.Messages,
			Fetch:    countMessages(cfg.Channel),
			Assign:   func(s *Snapshot, v int) { s.Messages = v },
		},
	}
}

func countOpenIncidents(ctx context.Context, r Requester) (int, error) {
	var incidents []struct {
		Status string `json:"status"`
	}
	if err := r.GetJSON(ctx, "/api/incidents", nil, &incidents); err != nil {
		return 0, err
	}

	open := 0
	for _, inc := range incidents {
		if inc.Status != "closed" {
			open++
		}
	}
	return open, nil
}

func countOnDuty(status string) func(context.Context, Requester) (int, error) {
	return func(ctx context.Context, r Requester) (int, error) {
		var groups map[string][]json.RawMessage
		if err := r.GetJSON(ctx, "/api/users/by-status", nil, &groups); err != nil {
			return 0, err
		}
		return len(groups[status]), nil
	}
}

func countMessages(channel string) func(context.Context, Requester) (int, error) {
	return func(ctx context.Context, r Requester) (int, error) {
		var messages []json.RawMessage
		if err := r.GetJSON(ctx, "/api/messages", url.Values{"channel": {channel}}, &messages); err != nil {
			return 0, err
		}
		return len(messages), nil
	}
}
