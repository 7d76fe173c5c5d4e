// Package httpserver exposes the lesson planner HTTP API handlers.
package httpserver

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/lesson-planner/internal/api"
	"github.com/and161185/lesson-planner/internal/convert"
	"github.com/and161185/lesson-planner/internal/model"
	"github.com/and161185/lesson-planner/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	auth      service.AuthService
	plans     service.PlanService
	resources service.ResourceService
	classes   service.ClassService
	log       *zap.Logger
}

// Deps lists the services the handlers delegate to.
type Deps struct {
	Auth      service.AuthService
	Plans     service.PlanService
	Resources service.ResourceService
	Classes   service.ClassService
	Log       *zap.Logger
}

// New constructs a Server with injected services.
func New(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{auth: d.Auth, plans: d.Plans, resources: d.Resources, classes: d.Classes, log: log}
}

// Router builds the gin engine with middleware and routes.
func (s *Server) Router(corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(Recover(s.log), RequestLogger(s.log), CORS(corsOrigins))

	r.GET("/healthcheck", s.Health)

	a := r.Group("/api")
	a.POST("/auth/register", s.Register)
	a.POST("/auth/login", s.Login)

	p := a.Group("", RequireAuth(s.auth))
	p.PUT("/plans", s.SavePlan)
	p.GET("/plans/:id", s.GetPlan)
	p.GET("/plans/:id/export", s.ExportPlan)
	p.PUT("/plans/:id/classes/:classId", s.LinkPlan)
	p.POST("/resources/lookup", s.LookupResources)
	p.POST("/resources", s.CreateResource)
	p.POST("/classes", s.CreateClass)
	return r
}

// Health answers liveness probes.
func (s *Server) Health(c *gin.Context) { c.String(http.StatusOK, "ok") }

// --- Auth ---

// Register creates a new teacher account.
func (s *Server) Register(c *gin.Context) {
	var req api.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed body")
		return
	}
	userID, err := s.auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(c, "register", err)
		return
	}
	c.JSON(http.StatusCreated, api.RegisterResponse{UserID: userID})
}

// Login authenticates a teacher and returns an access token.
func (s *Server) Login(c *gin.Context) {
	var req api.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed body")
		return
	}
	tok, u, err := s.auth.LoginWithIP(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		s.fail(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, api.LoginResponse{AccessToken: tok.AccessToken, ExpiresAt: tok.ExpiresAt, UserID: u.ID.String()})
}

// --- Plans ---

// SavePlan upserts a plan with its steps.
func (s *Server) SavePlan(c *gin.Context) {
	userID, _ := UserIDFromCtx(c.Request.Context())
	var req api.Plan
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed body")
		return
	}
	w, err := convert.FromAPIPlanWrite(req)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	saved, err := s.plans.Save(c.Request.Context(), userID, w)
	if err != nil {
		s.fail(c, "save plan", err)
		return
	}
	c.JSON(http.StatusOK, convert.ToAPISaved(saved))
}

// GetPlan returns a plan with ordered steps.
func (s *Server) GetPlan(c *gin.Context) {
	userID, _ := UserIDFromCtx(c.Request.Context())
	planID, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := s.plans.Get(c.Request.Context(), userID, planID)
	if err != nil {
		s.fail(c, "get plan", err)
		return
	}
	c.JSON(http.StatusOK, convert.ToAPIPlan(*p))
}

// ExportPlan renders the persisted plan as a downloadable document.
func (s *Server) ExportPlan(c *gin.Context) {
	userID, _ := UserIDFromCtx(c.Request.Context())
	planID, ok := pathID(c, "id")
	if !ok {
		return
	}
	format, err := model.ParseExportFormat(c.DefaultQuery("format", string(model.FormatPDF)))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	doc, err := s.plans.Export(c.Request.Context(), userID, planID, format)
	if err != nil {
		s.fail(c, "export plan", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

// LinkPlan links a plan to a class. Linking twice succeeds.
func (s *Server) LinkPlan(c *gin.Context) {
	userID, _ := UserIDFromCtx(c.Request.Context())
	planID, ok := pathID(c, "id")
	if !ok {
		return
	}
	classID, ok := pathID(c, "classId")
	if !ok {
		return
	}
	if err := s.plans.LinkToClass(c.Request.Context(), userID, planID, classID); err != nil {
		s.fail(c, "link plan", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Resources ---

// LookupResources returns the accessible subset of the requested ids.
func (s *Server) LookupResources(c *gin.Context) {
	userID, _ := UserIDFromCtx(c.Request.Context())
	var req api.LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed body")
		return
	}
	ids, err := convert.ParseIDs(req.IDs)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	rs, err := s.resources.Lookup(c.Request.Context(), userID, ids)
	if err != nil {
		s.fail(c, "lookup resources", err)
		return
	}
	out := api.LookupResponse{Resources: make([]api.Resource, 0, len(rs))}
	for _, r := range rs {
		out.Resources = append(out.Resources, convert.ToAPIResource(r))
	}
	c.JSON(http.StatusOK, out)
}

// CreateResource adds a catalog resource owned by the caller.
func (s *Server) CreateResource(c *gin.Context) {
	userID, _ := UserIDFromCtx(c.Request.Context())
	var req api.Resource
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed body")
		return
	}
	in, err := convert.FromAPIResource(req)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	r, err := s.resources.Create(c.Request.Context(), userID, in)
	if err != nil {
		s.fail(c, "create resource", err)
		return
	}
	c.JSON(http.StatusCreated, convert.ToAPIResource(r))
}

// --- Classes ---

// CreateClass adds a class owned by the caller.
func (s *Server) CreateClass(c *gin.Context) {
	userID, _ := UserIDFromCtx(c.Request.Context())
	var req api.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed body")
		return
	}
	cl, err := s.classes.Create(c.Request.Context(), userID, req.Name)
	if err != nil {
		s.fail(c, "create class", err)
		return
	}
	c.JSON(http.StatusCreated, convert.ToAPIClass(cl))
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param(name))
	if err != nil {
		badRequest(c, "bad "+name)
		return uuid.Nil, false
	}
	return id, true
}
