package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/and161185/lesson-planner/internal/draft"
	"github.com/and161185/lesson-planner/internal/editor"
	"github.com/and161185/lesson-planner/internal/resolve"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	metaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	notesStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).PaddingLeft(2)
	missingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	stepBox      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// header lists the plan-level fields that are set.
func header(d draft.Draft) string {
	title := d.Title
	if title == "" {
		title = "Untitled lesson"
	}
	var meta []string
	if d.Date != nil {
		meta = append(meta, d.Date.String())
	}
	for _, v := range []*string{d.Duration, d.Grouping, d.DeliveryMode} {
		if s := deref(v); s != "" {
			meta = append(meta, s)
		}
	}
	out := titleStyle.Render(title)
	if len(meta) > 0 {
		out += "\n" + metaStyle.Render(strings.Join(meta, " · "))
	}
	return out
}

// renderSummary is the plain listing printed by "show".
func renderSummary(d draft.Draft, dirty bool) string {
	var b strings.Builder
	b.WriteString(header(d) + "\n")
	state := "saved"
	switch {
	case d.RemoteID.IsNil():
		state = "never saved"
	case dirty:
		state = "unsaved changes"
	}
	fmt.Fprintf(&b, "%s\n", metaStyle.Render(state))
	for i, st := range d.Steps {
		title := st.Title
		if strings.TrimSpace(title) == "" {
			title = draft.DefaultStepTitle(i)
		}
		fmt.Fprintf(&b, "%2d. %s (%d resources)\n", i+1, title, len(st.ResourceIDs))
	}
	return b.String()
}

// renderPreview shows each step with its resolved resources.
func renderPreview(d draft.Draft, steps []editor.StepView) string {
	blocks := []string{header(d)}
	for _, st := range steps {
		lines := []string{titleStyle.Render(fmt.Sprintf("%d. %s", st.Position+1, st.Title))}
		if st.Notes != "" {
			lines = append(lines, notesStyle.Render(st.Notes))
		}
		for _, r := range st.Resources {
			switch r.State {
			case resolve.Resolved:
				line := "• " + r.Title
				if r.Type != "" {
					line += metaStyle.Render(" [" + r.Type + "]")
				}
				lines = append(lines, line)
			case resolve.Missing:
				lines = append(lines, missingStyle.Render("• "+r.Title))
			default:
				lines = append(lines, metaStyle.Render("• "+r.Title))
			}
		}
		blocks = append(blocks, stepBox.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}
