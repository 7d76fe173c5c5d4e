// Package convert maps domain models to and from HTTP wire types.
package convert

import (
	"fmt"

	"github.com/and161185/lesson-planner/internal/api"
	model "github.com/and161185/lesson-planner/internal/model"
	u "github.com/gofrs/uuid/v5"
)

// --- helpers ---

// optionalID parses s, treating "" as uuid.Nil.
func optionalID(s string) (u.UUID, error) {
	if s == "" {
		return u.Nil, nil
	}
	id, err := u.FromString(s)
	if err != nil {
		return u.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

func idString(id u.UUID) string {
	if id == u.Nil {
		return ""
	}
	return id.String()
}

// ParseIDs parses every entry of ss; a malformed entry fails the whole slice.
func ParseIDs(ss []string) ([]u.UUID, error) {
	out := make([]u.UUID, 0, len(ss))
	for i, s := range ss {
		id, err := u.FromString(s)
		if err != nil {
			return nil, fmt.Errorf("ids[%d]: invalid id %q", i, s)
		}
		out = append(out, id)
	}
	return out, nil
}

// IDStrings formats ids.
func IDStrings(ids []u.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func dateString(d *model.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

// --- Plan save (client -> server) ---

// FromAPIPlanWrite converts a save body to the domain write intent.
// Date syntax is checked by the service layer.
func FromAPIPlanWrite(in api.Plan) (model.PlanWrite, error) {
	id, err := optionalID(in.ID)
	if err != nil {
		return model.PlanWrite{}, err
	}
	w := model.PlanWrite{
		ID:           id,
		Title:        in.Title,
		Duration:     in.Duration,
		Grouping:     in.Grouping,
		DeliveryMode: in.DeliveryMode,
		LogoURL:      in.LogoURL,
		Steps:        make([]model.StepWrite, 0, len(in.Steps)),
	}
	if in.Date != nil {
		d := model.Date(*in.Date)
		w.Date = &d
	}
	for i, st := range in.Steps {
		sid, err := optionalID(st.ID)
		if err != nil {
			return model.PlanWrite{}, fmt.Errorf("steps[%d]: %w", i, err)
		}
		res, err := ParseIDs(st.ResourceIDs)
		if err != nil {
			return model.PlanWrite{}, fmt.Errorf("steps[%d]: %w", i, err)
		}
		w.Steps = append(w.Steps, model.StepWrite{
			ID: sid, Position: st.Position, Title: st.Title, Notes: st.Notes, ResourceIDs: res,
		})
	}
	return w, nil
}

// ToAPIPlanWrite builds the save body sent by the client.
func ToAPIPlanWrite(w model.PlanWrite) api.Plan {
	out := api.Plan{
		ID:           idString(w.ID),
		Title:        w.Title,
		Date:         dateString(w.Date),
		Duration:     w.Duration,
		Grouping:     w.Grouping,
		DeliveryMode: w.DeliveryMode,
		LogoURL:      w.LogoURL,
		Steps:        make([]api.Step, 0, len(w.Steps)),
	}
	for _, st := range w.Steps {
		out.Steps = append(out.Steps, api.Step{
			ID: idString(st.ID), Position: st.Position, Title: st.Title, Notes: st.Notes,
			ResourceIDs: IDStrings(st.ResourceIDs),
		})
	}
	return out
}

// --- Saved plan (server -> client) ---

func ToAPISaved(s model.SavedPlan) api.SavePlanResponse {
	return api.SavePlanResponse{ID: s.ID.String(), StepIDs: IDStrings(s.StepIDs), UpdatedAt: s.UpdatedAt}
}

func FromAPISaved(in api.SavePlanResponse) (model.SavedPlan, error) {
	id, err := u.FromString(in.ID)
	if err != nil {
		return model.SavedPlan{}, fmt.Errorf("invalid plan id %q", in.ID)
	}
	steps, err := ParseIDs(in.StepIDs)
	if err != nil {
		return model.SavedPlan{}, fmt.Errorf("step_ids: %w", err)
	}
	return model.SavedPlan{ID: id, StepIDs: steps, UpdatedAt: in.UpdatedAt}, nil
}

// --- Plan (server -> client) ---

func ToAPIPlan(p model.Plan) api.Plan {
	out := api.Plan{
		ID:           p.ID.String(),
		Title:        p.Title,
		Date:         dateString(p.Date),
		Duration:     p.Duration,
		Grouping:     p.Grouping,
		DeliveryMode: p.DeliveryMode,
		LogoURL:      p.LogoURL,
		Steps:        make([]api.Step, 0, len(p.Steps)),
		UpdatedAt:    p.UpdatedAt,
	}
	for _, st := range p.Steps {
		out.Steps = append(out.Steps, api.Step{
			ID: st.ID.String(), Position: st.Position, Title: st.Title, Notes: st.Notes,
			ResourceIDs: IDStrings(st.ResourceIDs),
		})
	}
	return out
}

// FromAPIPlan converts a fetched plan. Steps keep the order they arrived in.
func FromAPIPlan(in api.Plan) (model.Plan, error) {
	id, err := u.FromString(in.ID)
	if err != nil {
		return model.Plan{}, fmt.Errorf("invalid plan id %q", in.ID)
	}
	p := model.Plan{
		ID:           id,
		Title:        in.Title,
		Duration:     in.Duration,
		Grouping:     in.Grouping,
		DeliveryMode: in.DeliveryMode,
		LogoURL:      in.LogoURL,
		UpdatedAt:    in.UpdatedAt,
	}
	if in.Date != nil {
		if d, err := model.ParseDate(*in.Date); err == nil {
			p.Date = &d
		}
	}
	for i, st := range in.Steps {
		sid, err := u.FromString(st.ID)
		if err != nil {
			return model.Plan{}, fmt.Errorf("steps[%d]: invalid id %q", i, st.ID)
		}
		res, err := ParseIDs(st.ResourceIDs)
		if err != nil {
			return model.Plan{}, fmt.Errorf("steps[%d]: %w", i, err)
		}
		p.Steps = append(p.Steps, model.Step{
			ID: sid, PlanID: id, Position: st.Position, Title: st.Title, Notes: st.Notes, ResourceIDs: res,
		})
	}
	return p, nil
}

// --- Resource ---

func ToAPIResource(r model.Resource) api.Resource {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return api.Resource{
		ID: idString(r.ID), Title: r.Title, Description: r.Description, ThumbnailURL: r.ThumbnailURL,
		Type: r.Type, Subject: r.Subject, Stage: r.Stage, Tags: tags, Public: r.Public,
	}
}

func FromAPIResource(in api.Resource) (model.Resource, error) {
	id, err := optionalID(in.ID)
	if err != nil {
		return model.Resource{}, err
	}
	return model.Resource{
		ID: id, Title: in.Title, Description: in.Description, ThumbnailURL: in.ThumbnailURL,
		Type: in.Type, Subject: in.Subject, Stage: in.Stage, Tags: in.Tags, Public: in.Public,
	}, nil
}

// --- Class ---

func ToAPIClass(c model.Class) api.Class {
	return api.Class{ID: c.ID.String(), Name: c.Name, CreatedAt: c.CreatedAt}
}
