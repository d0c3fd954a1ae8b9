package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"filesage/internal/organizer"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BC34A")).
			MarginTop(1)

	categoryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#2196F3"))

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4db6ac"))

	reasonStyle = lipgloss.NewStyle().
			Faint(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFC107"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e53935"))

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BC34A"))
)

// renderCategories prints the discovered category map.
func renderCategories(categories map[string][]string) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render("Proposed categories"))
	sb.WriteString("\n")

	names := make([]string, 0, len(categories))
	for cat := range categories {
		names = append(names, cat)
	}
	sort.Strings(names)

	for _, cat := range names {
		files := categories[cat]
		fmt.Fprintf(&sb, "  %s (%d)\n", categoryStyle.Render(cat), len(files))
		for _, f := range files {
			fmt.Fprintf(&sb, "    %s\n", f)
		}
	}
	return sb.String()
}

// renderPlan prints the final move plan.
func renderPlan(suggestions []organizer.Suggestion, reasoning string) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("Move plan (%d files)", len(suggestions))))
	sb.WriteString("\n")

	for _, s := range suggestions {
		name := "?"
		if s.File != nil {
			name = s.File.Name
		}
		fmt.Fprintf(&sb, "  %s -> %s", name, pathStyle.Render(s.SuggestedPath))
		if s.Confidence < 0.5 {
			fmt.Fprintf(&sb, " %s", warnStyle.Render(fmt.Sprintf("(confidence %.2f)", s.Confidence)))
		}
		sb.WriteString("\n")
		if s.Reason != "" {
			fmt.Fprintf(&sb, "     %s\n", reasonStyle.Render(s.Reason))
		}
	}

	if reasoning != "" {
		sb.WriteString("\n")
		sb.WriteString(reasonStyle.Render(reasoning))
		sb.WriteString("\n")
	}
	return sb.String()
}
