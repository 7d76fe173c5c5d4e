// Package export renders persisted lesson plans into downloadable documents.
package export

import (
	"fmt"
	"strings"

	"github.com/and161185/lesson-planner/internal/model"
)

// Style classifies a rendered line.
type Style int

const (
	StyleTitle Style = iota
	StyleField
	StyleStep
	StyleBody
)

// Line is one line of the flattened plan.
type Line struct {
	Style Style
	Text  string
}

// Flatten turns a plan into the ordered text lines shared by every format:
// title, plan fields, then each step with its notes and resource ids.
func Flatten(p model.Plan) []Line {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = "Untitled lesson"
	}
	lines := []Line{{StyleTitle, title}}
	field := func(label string, v *string) {
		if v != nil && *v != "" {
			lines = append(lines, Line{StyleField, label + ": " + *v})
		}
	}
	if p.Date != nil {
		d := p.Date.String()
		field("Date", &d)
	}
	field("Duration", p.Duration)
	field("Grouping", p.Grouping)
	field("Delivery", p.DeliveryMode)

	for i, st := range p.Steps {
		lines = append(lines, Line{StyleStep, fmt.Sprintf("%d. %s", i+1, st.Title)})
		if st.Notes != nil && *st.Notes != "" {
			lines = append(lines, Line{StyleBody, *st.Notes})
		}
		if len(st.ResourceIDs) > 0 {
			ids := make([]string, len(st.ResourceIDs))
			for j, id := range st.ResourceIDs {
				ids[j] = id.String()
			}
			lines = append(lines, Line{StyleBody, "Resources: " + strings.Join(ids, ", ")})
		}
	}
	return lines
}

// Render produces the document for format.
func Render(p model.Plan, format model.ExportFormat) (model.Document, error) {
	lines := Flatten(p)
	var (
		body []byte
		err  error
		ct   string
	)
	switch format {
	case model.FormatPDF:
		body, err = renderPDF(lines)
		ct = "application/pdf"
	case model.FormatDOCX:
		body, err = renderDOCX(lines)
		ct = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return model.Document{}, fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return model.Document{}, err
	}
	return model.Document{
		Filename:    filename(lines[0].Text, format),
		ContentType: ct,
		Body:        body,
	}, nil
}

// filename keeps letters, digits and dashes of the title.
func filename(title string, format model.ExportFormat) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteByte('-')
			}
		}
	}
	name := strings.TrimSuffix(b.String(), "-")
	if name == "" {
		name = "lesson-plan"
	}
	return name + "." + string(format)
}
