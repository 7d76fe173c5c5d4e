// Package client is the HTTP client of the lesson planner API used by the editing client.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/lesson-planner/internal/api"
	"github.com/and161185/lesson-planner/internal/convert"
	"github.com/and161185/lesson-planner/internal/errs"
	"github.com/and161185/lesson-planner/internal/model"
)

// Client talks to the server over HTTP with an optional bearer token.
type Client struct {
	base  string
	token string
	hc    *http.Client
}

// Option tunes Client.
type Option func(*Client)

// WithToken sets the bearer token sent on every request.
func WithToken(tok string) Option { return func(c *Client) { c.token = tok } }

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

// New constructs a Client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{base: strings.TrimRight(baseURL, "/"), hc: &http.Client{Timeout: 30 * time.Second}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// StatusError is a non-2xx response. Sentinels from errs are reachable via errors.Is.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return errs.ErrUnauthorized
	case http.StatusNotFound:
		return errs.ErrNotFound
	case http.StatusConflict:
		return errs.ErrAlreadyExists
	case http.StatusTooManyRequests:
		return errs.ErrRateLimited
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (*http.Response, []byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var env api.ErrorEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
			se.Code, se.Message = env.Error.Code, env.Error.Message
		}
		return nil, nil, se
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, nil, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp, raw, nil
}

// Register creates an account and returns its id.
func (c *Client) Register(ctx context.Context, email, password string) (string, error) {
	var out api.RegisterResponse
	if _, _, err := c.do(ctx, http.MethodPost, "/api/auth/register", api.Credentials{Email: email, Password: password}, &out); err != nil {
		return "", err
	}
	return out.UserID, nil
}

// Login returns an access token.
func (c *Client) Login(ctx context.Context, email, password string) (model.Tokens, error) {
	var out api.LoginResponse
	if _, _, err := c.do(ctx, http.MethodPost, "/api/auth/login", api.Credentials{Email: email, Password: password}, &out); err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: out.AccessToken, ExpiresAt: out.ExpiresAt}, nil
}

// SavePlan upserts the plan and returns server ids in step order.
func (c *Client) SavePlan(ctx context.Context, w model.PlanWrite) (model.SavedPlan, error) {
	var out api.SavePlanResponse
	if _, _, err := c.do(ctx, http.MethodPut, "/api/plans", convert.ToAPIPlanWrite(w), &out); err != nil {
		return model.SavedPlan{}, err
	}
	return convert.FromAPISaved(out)
}

// GetPlan fetches a persisted plan.
func (c *Client) GetPlan(ctx context.Context, planID uuid.UUID) (model.Plan, error) {
	var out api.Plan
	if _, _, err := c.do(ctx, http.MethodGet, "/api/plans/"+planID.String(), nil, &out); err != nil {
		return model.Plan{}, err
	}
	return convert.FromAPIPlan(out)
}

// GetResourcesByIDs returns the accessible subset of ids. An empty ids slice makes no request.
func (c *Client) GetResourcesByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out api.LookupResponse
	if _, _, err := c.do(ctx, http.MethodPost, "/api/resources/lookup", api.LookupRequest{IDs: convert.IDStrings(ids)}, &out); err != nil {
		return nil, err
	}
	rs := make([]model.Resource, 0, len(out.Resources))
	for _, r := range out.Resources {
		m, err := convert.FromAPIResource(r)
		if err != nil {
			return nil, err
		}
		rs = append(rs, m)
	}
	return rs, nil
}

// CreateResource adds a catalog entry.
func (c *Client) CreateResource(ctx context.Context, r model.Resource) (model.Resource, error) {
	var out api.Resource
	if _, _, err := c.do(ctx, http.MethodPost, "/api/resources", convert.ToAPIResource(r), &out); err != nil {
		return model.Resource{}, err
	}
	return convert.FromAPIResource(out)
}

// CreateClass adds a class and returns its id.
func (c *Client) CreateClass(ctx context.Context, name string) (uuid.UUID, error) {
	var out api.Class
	if _, _, err := c.do(ctx, http.MethodPost, "/api/classes", api.CreateClassRequest{Name: name}, &out); err != nil {
		return uuid.Nil, err
	}
	return uuid.FromString(out.ID)
}

// ExportPlan downloads the persisted plan rendered as format.
func (c *Client) ExportPlan(ctx context.Context, planID uuid.UUID, format model.ExportFormat) (model.Document, error) {
	path := "/api/plans/" + planID.String() + "/export?format=" + url.QueryEscape(string(format))
	resp, raw, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return model.Document{}, err
	}
	doc := model.Document{ContentType: resp.Header.Get("Content-Type"), Body: raw}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		doc.Filename = params["filename"]
	}
	if doc.Filename == "" {
		doc.Filename = "lesson-plan." + string(format)
	}
	return doc, nil
}

// LinkPlanToClass links a persisted plan to a class.
func (c *Client) LinkPlanToClass(ctx context.Context, planID, classID uuid.UUID) error {
	_, _, err := c.do(ctx, http.MethodPut, "/api/plans/"+planID.String()+"/classes/"+classID.String(), nil, nil)
	return err
}

// IsUnauthorized reports whether err is a 401 or the errs.ErrUnauthorized sentinel.
func IsUnauthorized(err error) bool { return errors.Is(err, errs.ErrUnauthorized) }
