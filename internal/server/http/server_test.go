package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/lesson-planner/internal/api"
	"github.com/and161185/lesson-planner/internal/errs"
	"github.com/and161185/lesson-planner/internal/model"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeAuth struct {
	userID   uuid.UUID
	loginErr error
	regErr   error
	lastIP   string
}

func (f *fakeAuth) Register(_ context.Context, email, _ string) (string, error) {
	if f.regErr != nil {
		return "", f.regErr
	}
	return f.userID.String(), nil
}

func (f *fakeAuth) LoginWithIP(_ context.Context, _, _, ip string) (model.Tokens, model.User, error) {
	f.lastIP = ip
	if f.loginErr != nil {
		return model.Tokens{}, model.User{}, f.loginErr
	}
	return model.Tokens{AccessToken: "good", ExpiresAt: time.Now().Add(time.Hour)}, model.User{ID: f.userID}, nil
}

func (f *fakeAuth) Authenticate(token string) (uuid.UUID, error) {
	if token != "good" {
		return uuid.Nil, errs.ErrUnauthorized
	}
	return f.userID, nil
}

type fakePlanSvc struct {
	gotUser  uuid.UUID
	gotWrite model.PlanWrite
	saveErr  error
	plan     *model.Plan
	doc      model.Document
	linkErr  error
	links    int
}

func (f *fakePlanSvc) Save(_ context.Context, userID uuid.UUID, w model.PlanWrite) (model.SavedPlan, error) {
	f.gotUser, f.gotWrite = userID, w
	if f.saveErr != nil {
		return model.SavedPlan{}, f.saveErr
	}
	out := model.SavedPlan{ID: uuid.Must(uuid.NewV4())}
	for range w.Steps {
		out.StepIDs = append(out.StepIDs, uuid.Must(uuid.NewV4()))
	}
	return out, nil
}

func (f *fakePlanSvc) Get(_ context.Context, _, planID uuid.UUID) (*model.Plan, error) {
	if f.plan == nil || f.plan.ID != planID {
		return nil, fmt.Errorf("plan %s: %w", planID, errs.ErrNotFound)
	}
	return f.plan, nil
}

func (f *fakePlanSvc) Export(_ context.Context, _, _ uuid.UUID, _ model.ExportFormat) (model.Document, error) {
	return f.doc, nil
}

func (f *fakePlanSvc) LinkToClass(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) error {
	f.links++
	return f.linkErr
}

type fakeResourceSvc struct{ rs []model.Resource }

func (f *fakeResourceSvc) Lookup(_ context.Context, _ uuid.UUID, ids []uuid.UUID) ([]model.Resource, error) {
	var out []model.Resource
	for _, id := range ids {
		for _, r := range f.rs {
			if r.ID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeResourceSvc) Create(_ context.Context, userID uuid.UUID, r model.Resource) (model.Resource, error) {
	if r.Title == "" {
		return model.Resource{}, errors.New("validation: empty title")
	}
	r.ID, r.OwnerID = uuid.Must(uuid.NewV4()), userID
	return r, nil
}

type fakeClassSvc struct{}

func (fakeClassSvc) Create(_ context.Context, userID uuid.UUID, name string) (model.Class, error) {
	return model.Class{ID: uuid.Must(uuid.NewV4()), UserID: userID, Name: name}, nil
}

type fixture struct {
	auth  *fakeAuth
	plans *fakePlanSvc
	res   *fakeResourceSvc
	h     http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		auth:  &fakeAuth{userID: uuid.Must(uuid.NewV4())},
		plans: &fakePlanSvc{},
		res:   &fakeResourceSvc{},
	}
	s := New(Deps{Auth: f.auth, Plans: f.plans, Resources: f.res, Classes: fakeClassSvc{}, Log: zaptest.NewLogger(t)})
	f.h = s.Router(nil)
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) api.APIError {
	t.Helper()
	var env api.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error
}

func TestHealth(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthcheck", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestProtectedRoutes_RequireBearer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/plans", "", api.Plan{})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, api.CodeUnauthorized, decodeErr(t, rec).Code)

	rec = f.do(t, http.MethodPut, "/api/plans", "forged", api.Plan{})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_StatusMapping(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	creds := api.Credentials{Email: "a@school.test", Password: "password1"}

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	var lr api.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lr))
	require.Equal(t, "good", lr.AccessToken)
	require.Equal(t, f.auth.userID.String(), lr.UserID)
	require.NotEmpty(t, f.auth.lastIP)

	f.auth.loginErr = errs.ErrUnauthorized
	require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/auth/login", "", creds).Code)

	f.auth.loginErr = errs.ErrRateLimited
	require.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodPost, "/api/auth/login", "", creds).Code)

	f.auth.loginErr = errors.New("db down")
	rec = f.do(t, http.MethodPost, "/api/auth/login", "", creds)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "db down")
}

func TestRegister_Conflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	creds := api.Credentials{Email: "a@school.test", Password: "password1"}

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/auth/register", "", creds).Code)
	f.auth.regErr = errs.ErrAlreadyExists
	require.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/auth/register", "", creds).Code)
	f.auth.regErr = errors.New("validation: malformed email")
	rec := f.do(t, http.MethodPost, "/api/auth/register", "", creds)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "malformed email", decodeErr(t, rec).Message)
}

func TestSavePlan_ReturnsStepIDsInOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	body := api.Plan{Title: "Rivers", Steps: []api.Step{{Position: 0, Title: "a"}, {Position: 1, Title: "b"}}}
	rec := f.do(t, http.MethodPut, "/api/plans", "good", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.SavePlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.StepIDs, 2)
	require.Equal(t, f.auth.userID, f.plans.gotUser)
	require.Equal(t, "b", f.plans.gotWrite.Steps[1].Title)
}

func TestSavePlan_ErrorMapping(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/plans", "good", api.Plan{ID: "not-a-uuid"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	f.plans.saveErr = fmt.Errorf("plan x: %w", errs.ErrNotFound)
	rec = f.do(t, http.MethodPut, "/api/plans", "good", api.Plan{})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, api.CodeNotFound, decodeErr(t, rec).Code)

	f.plans.saveErr = errors.New("validation: too many steps")
	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/plans", "good", api.Plan{}).Code)
}

func TestGetPlan(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	pid := uuid.Must(uuid.NewV4())
	f.plans.plan = &model.Plan{ID: pid, Title: "Maps", Steps: []model.Step{{ID: uuid.Must(uuid.NewV4()), Title: "x"}}}

	rec := f.do(t, http.MethodGet, "/api/plans/"+pid.String(), "good", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got api.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "Maps", got.Title)
	require.Len(t, got.Steps, 1)

	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/plans/"+uuid.Must(uuid.NewV4()).String(), "good", nil).Code)
	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/plans/zzz", "good", nil).Code)
}

func TestExportPlan(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.plans.doc = model.Document{Filename: "maps.pdf", ContentType: "application/pdf", Body: []byte("%PDF")}
	pid := uuid.Must(uuid.NewV4()).String()

	rec := f.do(t, http.MethodGet, "/api/plans/"+pid+"/export?format=pdf", "good", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), `filename="maps.pdf"`)
	require.Equal(t, "%PDF", rec.Body.String())

	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/plans/"+pid+"/export?format=odt", "good", nil).Code)
}

func TestLinkPlan(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	pid, cid := uuid.Must(uuid.NewV4()).String(), uuid.Must(uuid.NewV4()).String()

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodPut, "/api/plans/"+pid+"/classes/"+cid, "good", nil).Code)
	f.plans.linkErr = errs.ErrNotFound
	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodPut, "/api/plans/"+pid+"/classes/"+cid, "good", nil).Code)
	require.Equal(t, 2, f.plans.links)
}

func TestLookupResources(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	r := model.Resource{ID: uuid.Must(uuid.NewV4()), Title: "Atlas"}
	f.res.rs = []model.Resource{r}

	rec := f.do(t, http.MethodPost, "/api/resources/lookup", "good",
		api.LookupRequest{IDs: []string{uuid.Must(uuid.NewV4()).String(), r.ID.String()}})
	require.Equal(t, http.StatusOK, rec.Code)
	var out api.LookupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Resources, 1)
	require.Equal(t, "Atlas", out.Resources[0].Title)

	rec = f.do(t, http.MethodPost, "/api/resources/lookup", "good", api.LookupRequest{IDs: []string{"bogus"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateResourceAndClass(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/resources", "good", api.Resource{Title: "Globe"}).Code)
	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/resources", "good", api.Resource{}).Code)

	rec := f.do(t, http.MethodPost, "/api/classes", "good", api.CreateClassRequest{Name: "7B"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var cl api.Class
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cl))
	require.Equal(t, "7B", cl.Name)
}
