package tui

import "github.com/charmbracelet/lipgloss"

const (
	colorFg       = "#F8FAFC" // Slate 50
	colorFgMuted  = "#94A3B8" // Slate 400
	colorPrimary  = "#3B82F6" // Blue 500
	colorSuccess  = "#10B981" // Emerald 500
	colorWarning  = "#F59E0B" // Amber 500
	colorError    = "#EF4444" // Red 500
	colorBorder   = "#334155" // Slate 700
	colorBgCard   = "#1E293B" // Slate 800
	colorUserMsg  = "#3B82F6" // Blue 500
	colorAnswer   = "#10B981" // Emerald 500
	colorCitation = "#06B6D4" // Cyan 500
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorFg)).
			Background(lipgloss.Color(colorBgCard)).
			Padding(0, 2).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color(colorBorder))

	userMessageStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color(colorUserMsg)).
				Padding(0, 2)

	assistantMessageStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color(colorAnswer)).
				Padding(0, 2)

	errorMessageStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color(colorError)).
				Padding(0, 2)

	messageContentStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(colorFg)).
				Padding(0, 2).
				MarginBottom(1)

	inputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorFg)).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder))

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorPrimary)).
			Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorFgMuted)).
			Padding(0, 2)

	answerBulletStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(colorFg))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorFgMuted))

	citationRefStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(colorCitation))

	citationQuoteStyle = lipgloss.NewStyle().
				Italic(true).
				Foreground(lipgloss.Color(colorFgMuted)).
				PaddingLeft(2)

	caveatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorWarning))

	linkStyle = lipgloss.NewStyle().
			Underline(true).
			Foreground(lipgloss.Color(colorFgMuted))

	followupStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorFgMuted))

	emptyTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorFg)).
			Padding(1, 2)

	emptyItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorFgMuted)).
			PaddingLeft(2)

	emptyFootStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color(colorFgMuted)).
			PaddingLeft(2)
)
