// Package api defines the JSON wire types of the lesson planner HTTP API.
package api

import "time"

// ErrorEnvelope is the body of every non-2xx response.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error codes carried in APIError.Code.
const (
	CodeValidation   = "validation"
	CodeUnauthorized = "unauthorized"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeRateLimited  = "rate_limited"
	CodeInternal     = "internal"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
}

// Plan is both the save body (PUT /api/plans) and the fetch response.
// An empty ID on save inserts a new plan.
type Plan struct {
	ID           string    `json:"id,omitempty"`
	Title        string    `json:"title"`
	Date         *string   `json:"date,omitempty"`
	Duration     *string   `json:"duration,omitempty"`
	Grouping     *string   `json:"grouping,omitempty"`
	DeliveryMode *string   `json:"delivery_mode,omitempty"`
	LogoURL      *string   `json:"logo_url,omitempty"`
	Steps        []Step    `json:"steps"`
	UpdatedAt    time.Time `json:"updated_at,omitzero"`
}

type Step struct {
	ID          string   `json:"id,omitempty"`
	Position    int      `json:"position"`
	Title       string   `json:"title"`
	Notes       *string  `json:"notes,omitempty"`
	ResourceIDs []string `json:"resource_ids"`
}

// SavePlanResponse lists the step ids in the order steps were sent.
type SavePlanResponse struct {
	ID        string    `json:"id"`
	StepIDs   []string  `json:"step_ids"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LookupRequest struct {
	IDs []string `json:"ids"`
}

type LookupResponse struct {
	Resources []Resource `json:"resources"`
}

type Resource struct {
	ID           string   `json:"id,omitempty"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	Type         string   `json:"type,omitempty"`
	Subject      string   `json:"subject,omitempty"`
	Stage        string   `json:"stage,omitempty"`
	Tags         []string `json:"tags"`
	Public       bool     `json:"public"`
}

type CreateClassRequest struct {
	Name string `json:"name"`
}

type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
