// Package tui provides the EcoVision terminal UI built on Charm libraries
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"} // Leaf green
	ColorSecondary = lipgloss.AdaptiveColor{Light: "#0EA5E9", Dark: "#38BDF8"} // Sky blue
	ColorAccent    = lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#FBBF24"} // Sun amber

	ColorSuccess = lipgloss.AdaptiveColor{Light: "#10B981", Dark: "#34D399"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#FBBF24"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#EF4444", Dark: "#F87171"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#6366F1", Dark: "#818CF8"}

	ColorText   = lipgloss.AdaptiveColor{Light: "#1E293B", Dark: "#F1F5F9"}
	ColorSubtle = lipgloss.AdaptiveColor{Light: "#64748B", Dark: "#94A3B8"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#94A3B8", Dark: "#64748B"}
	ColorBorder = lipgloss.AdaptiveColor{Light: "#CBD5E1", Dark: "#334155"}
)

// Base styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary)

	BodyStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle).
			Width(16)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 2)

	BadgeStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Background(ColorPrimary).
			Foreground(lipgloss.Color("#FFFFFF"))

	BadgeMutedStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Background(ColorBorder).
			Foreground(ColorText)
)

// HeaderASCII is the application banner
var HeaderASCII = `
  ___ ___ _____   _____ ___ ___ ___  _  _ 
 | __/ __/ _ \ \ / /_ _/ __|_ _/ _ \| \| |
 | _| (_| (_) \ V / | |\__ \| | (_) | .  |
 |___\___\___/ \_/ |___|___/___\___/|_|\_|
`

// GetHeader returns the styled banner
func GetHeader() string {
	return lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Render(HeaderASCII)
}

// StepStatus colors a status card
type StepStatus int

const (
	StepPending StepStatus = iota
	StepActive
	StepCompleted
	StepError
)

// Card renders a titled card
func Card(title, content string, width int) string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		MarginBottom(1)

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 2).
		Width(width)

	return cardStyle.Render(titleStyle.Render(title) + "\n" + BodyStyle.Render(content))
}

// StatusCard renders a one-line status card with an icon
func StatusCard(icon, title, subtitle string, status StepStatus, width int) string {
	var borderColor lipgloss.AdaptiveColor
	var iconStyle lipgloss.Style

	switch status {
	case StepCompleted:
		borderColor = ColorSuccess
		iconStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	case StepActive:
		borderColor = ColorPrimary
		iconStyle = lipgloss.NewStyle().Foreground(ColorPrimary)
	case StepError:
		borderColor = ColorError
		iconStyle = lipgloss.NewStyle().Foreground(ColorError)
	default:
		borderColor = ColorBorder
		iconStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	}

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 2).
		Width(width)

	content := iconStyle.Render(icon) + " " + lipgloss.NewStyle().Bold(true).Foreground(ColorText).Render(title)
	if subtitle != "" {
		content += "\n   " + lipgloss.NewStyle().Foreground(ColorSubtle).Render(subtitle)
	}

	return cardStyle.Render(content)
}

// KeyHelp renders key/description pairs in order
func KeyHelp(pairs ...string) string {
	keyStyle := lipgloss.NewStyle().Foreground(ColorSubtle).Bold(true)

	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, keyStyle.Render(pairs[i])+" "+MutedStyle.Render(pairs[i+1]))
	}

	return MutedStyle.Render(strings.Join(parts, "  |  "))
}

// Field renders a label/value row
func Field(label, value string) string {
	return LabelStyle.Render(label) + BodyStyle.Render(value)
}
