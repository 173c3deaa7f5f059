package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hostling/hostling/internal/controller"
	"github.com/hostling/hostling/internal/resource"
	"github.com/hostling/hostling/internal/store"
)

// Router provides embeddable HTTP handlers for the lifecycle engine.
// Endpoints:
//
//	POST {basePath}/start      body: resource.Spec JSON
//	POST {basePath}/stop       query: id=...
//	POST {basePath}/restart    body: resource.Spec JSON (kind/file_path/config fall back to the stored record)
//	GET  {basePath}/status     query: id=...
//	GET  {basePath}/resources  list all records joined with the registry
//	POST {basePath}/reconcile  trigger one reconciliation pass
//
// Authorization and input sanitization beyond id safety belong to the
// caller mounting these handlers.
type Router struct {
	ctrl     *controller.Controller
	rec      *controller.Reconciler
	basePath string
}

// NewRouter constructs a Router with a configurable basePath, e.g. "/api".
func NewRouter(ctrl *controller.Controller, rec *controller.Reconciler, basePath string) *Router {
	return &Router{ctrl: ctrl, rec: rec, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server or mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.POST("/restart", r.handleRestart)
	group.GET("/status", r.handleStatus)
	group.GET("/resources", r.handleList)
	group.POST("/reconcile", r.handleReconcile)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, ctrl *controller.Controller, rec *controller.Reconciler) (*http.Server, error) {
	r := NewRouter(ctrl, rec, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleStart(c *gin.Context) {
	spec, ok := r.bindSpec(c)
	if !ok {
		return
	}
	started, err := r.ctrl.Start(c.Request.Context(), spec)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if !started {
		writeJSON(c, http.StatusConflict, errorResp{Error: "already running"})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStop(c *gin.Context) {
	id := c.Query("id")
	if !resource.SafeID(id) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "id query param required: allowed [A-Za-z0-9._-]"})
		return
	}
	stopped, err := r.ctrl.Stop(c.Request.Context(), id)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if !stopped {
		writeJSON(c, http.StatusConflict, errorResp{Error: "not running"})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleRestart(c *gin.Context) {
	// Bound by hand instead of bindSpec: a bare restart request carries only
	// the id and must not be rejected before the stored-record fallback runs.
	var spec resource.Spec
	if err := c.ShouldBindJSON(&spec); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if !resource.SafeID(spec.ID) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "id required: allowed [A-Za-z0-9._-]"})
		return
	}
	if spec.Kind == "" || (spec.FilePath == "" && spec.Config == "") {
		rec, err := r.ctrl.Store().Get(c.Request.Context(), spec.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// fall through with the request spec as-is
		case err != nil:
			writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
			return
		default:
			stored := resource.SpecOf(rec)
			if spec.Kind == "" {
				spec.Kind = stored.Kind
			}
			if spec.FilePath == "" && spec.Config == "" {
				spec.FilePath, spec.Config = stored.FilePath, stored.Config
			}
		}
	}
	if err := spec.Validate(); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	started, err := r.ctrl.Restart(c.Request.Context(), spec)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if !started {
		writeJSON(c, http.StatusConflict, errorResp{Error: "restart did not start the resource"})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStatus(c *gin.Context) {
	id := c.Query("id")
	if !resource.SafeID(id) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "id query param required: allowed [A-Za-z0-9._-]"})
		return
	}
	st, err := r.ctrl.Status(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "unknown resource: " + id})
		return
	}
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) handleList(c *gin.Context) {
	sts, err := r.ctrl.List(c.Request.Context())
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, sts)
}

func (r *Router) handleReconcile(c *gin.Context) {
	// bounded so a stuck start cannot pin the request handler
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Minute)
	defer cancel()
	if err := r.rec.Sweep(ctx); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) bindSpec(c *gin.Context) (resource.Spec, bool) {
	var spec resource.Spec
	if err := c.ShouldBindJSON(&spec); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return spec, false
	}
	if err := spec.Validate(); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return spec, false
	}
	return spec, true
}
