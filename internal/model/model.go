// Package model defines domain entities used by services, repositories and the editing client.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// User represents a teacher account stored on the server.
type User struct {
	ID        uuid.UUID // PK
	Email     string    // unique, lower-cased
	PwdHash   []byte    // Argon2id(password, SaltAuth)
	SaltAuth  []byte    // per-user auth salt
	CreatedAt time.Time
}

// dateLayout is the only accepted calendar date encoding.
const dateLayout = "2006-01-02"

// Date is a calendar date stored as YYYY-MM-DD so it never drifts across time zones.
type Date string

// ParseDate validates s and returns it as a Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return Date(s), nil
}

// DateOf formats the calendar day of t (in t's own location).
func DateOf(t time.Time) Date { return Date(t.Format(dateLayout)) }

func (d Date) String() string { return string(d) }

// Plan is a persisted lesson plan with its ordered steps.
type Plan struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Title        string
	Date         *Date
	Duration     *string
	Grouping     *string
	DeliveryMode *string
	LogoURL      *string
	Steps        []Step // ordered by Position
	UpdatedAt    time.Time
}

// Step is a persisted lesson step.
type Step struct {
	ID          uuid.UUID
	PlanID      uuid.UUID
	Position    int
	Title       string
	Notes       *string
	ResourceIDs []uuid.UUID
}

// PlanWrite is a client save intent: upsert by ID when set, insert otherwise.
type PlanWrite struct {
	ID           uuid.UUID // uuid.Nil => insert
	Title        string
	Date         *Date
	Duration     *string
	Grouping     *string
	DeliveryMode *string
	LogoURL      *string
	Steps        []StepWrite
}

// StepWrite is a single step inside a PlanWrite.
type StepWrite struct {
	ID          uuid.UUID // uuid.Nil => insert
	Position    int
	Title       string
	Notes       *string
	ResourceIDs []uuid.UUID
}

// SavedPlan reports server-assigned ids after a successful save.
// StepIDs[i] is the id of the step written at position i.
type SavedPlan struct {
	ID        uuid.UUID
	StepIDs   []uuid.UUID
	UpdatedAt time.Time
}

// Resource is a catalog entry a step can reference.
type Resource struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	Public       bool
	Title        string
	Description  string
	ThumbnailURL string
	Type         string
	Subject      string
	Stage        string
	Tags         []string
}

// VisibleTo reports whether userID may read the resource.
func (r Resource) VisibleTo(userID uuid.UUID) bool {
	return r.Public || r.OwnerID == userID
}

// Class groups students a plan can be linked to.
type Class struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	CreatedAt time.Time
}

// ExportFormat is a downstream document format.
type ExportFormat string

// Supported export formats.
const (
	FormatPDF  ExportFormat = "pdf"
	FormatDOCX ExportFormat = "docx"
)

// ParseExportFormat accepts "pdf" or "docx" (case-insensitive).
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPDF, FormatDOCX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Document is a rendered export.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}
