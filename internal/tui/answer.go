package tui

import (
	"fmt"
	"strings"

	"lawchat/internal/app"

	"github.com/charmbracelet/lipgloss"
)

// renderAnswer lays out a structured legal answer: summary bullets, statute
// citations, caveats, sources, and follow-up suggestions.
func renderAnswer(ans *app.LegalAnswer, width int) string {
	var b strings.Builder

	for _, line := range ans.ShortAnswer {
		b.WriteString(answerBulletStyle.Render("• " + line))
		b.WriteString("\n")
	}

	if len(ans.WhatTheLawSays) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("What the law says"))
		b.WriteString("\n")
		for _, c := range ans.WhatTheLawSays {
			ref := c.Act
			if c.Section != "" {
				ref = fmt.Sprintf("%s, s. %s", c.Act, c.Section)
			}
			b.WriteString(citationRefStyle.Render(ref))
			b.WriteString("\n")
			if c.Quote != "" {
				b.WriteString(citationQuoteStyle.Width(width).Render("“" + c.Quote + "”"))
				b.WriteString("\n")
			}
			if c.URL != "" {
				b.WriteString(linkStyle.Render("  " + c.URL))
				b.WriteString("\n")
			}
		}
	}

	if len(ans.Caveats) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Caveats"))
		b.WriteString("\n")
		for _, c := range ans.Caveats {
			b.WriteString(caveatStyle.Width(width).Render("! " + c))
			b.WriteString("\n")
		}
	}

	if len(ans.Sources) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Sources"))
		b.WriteString("\n")
		for _, s := range ans.Sources {
			b.WriteString(linkStyle.Render("  " + s))
			b.WriteString("\n")
		}
	}

	if len(ans.Followups) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("You could also ask"))
		b.WriteString("\n")
		for _, f := range ans.Followups {
			b.WriteString(followupStyle.Render("  › " + f))
			b.WriteString("\n")
		}
	}

	if ans.Confidence != "" {
		b.WriteString("\n")
		b.WriteString(confidenceStyle(ans.Confidence).Render("confidence: " + ans.Confidence))
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func confidenceStyle(level string) lipgloss.Style {
	switch level {
	case "high":
		return lipgloss.NewStyle().Foreground(lipgloss.Color(colorSuccess))
	case "medium":
		return lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarning))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(colorError))
	}
}
