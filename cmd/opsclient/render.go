package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/stadtwache/opsclient/profile"
	"github.com/stadtwache/opsclient/status"
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(20)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

func row(label string, value any) string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		labelStyle.Render(label),
		valueStyle.Render(fmt.Sprint(value)),
	)
}

func renderStatus(snap status.Snapshot) string {
	rows := []string{
		row("Offene Einsätze", snap.OpenIncidents),
		row("Beamte im Dienst", snap.ActiveOfficers),
		row("Nachrichten", snap.Messages),
		labelStyle.Render("Stand " + snap.CapturedAt.Format("15:04:05")),
	}
	switch {
	case snap.Degraded:
		rows = append(rows, warningStyle.Render("Zentrale nicht erreichbar, Richtwerte angezeigt"))
	case len(snap.Failed) > 0:
		rows = append(rows, warningStyle.Render("Ersatzwerte für: "+strings.Join(snap.Failed, ", ")))
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderProfile(p profile.Profile) string {
	fields := p.Fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	rows := []string{valueStyle.Render(p.DisplayName())}
	for _, k := range keys {
		rows = append(rows, row(k, fields[k]))
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
