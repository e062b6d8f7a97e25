package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/xiaot623/gogo/flightdeck/api"
)

var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray - timestamps, ids

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("9"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))
)

// Determinism modes get one colour each so a replayed timeline reads at a glance.
var modeStyles = map[api.DeterminismMode]lipgloss.Style{
	api.ModeLive:      lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
	api.ModeExact:     lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	api.ModeCached:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	api.ModeSimulated: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
}

func modeLabel(m api.DeterminismMode) string {
	style, ok := modeStyles[m]
	if !ok {
		return errorStyle.Render(string(m))
	}
	return style.Render(string(m))
}

func statusLabel(status string) string {
	switch status {
	case api.RunStatusSuccess, api.ReplayStatusCompletedExact:
		return successStyle.Render(status)
	case api.RunStatusFailed, api.ReplayStatusFailedValidation, api.ReplayStatusFailedExecution:
		return errorStyle.Render(status)
	case api.ReplayStatusCompletedSimulated, api.ReplayStatusCompletedMixed:
		return modeStyles[api.ModeSimulated].Render(status)
	}
	return status
}
