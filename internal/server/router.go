package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/proctrack/internal/hub"
	"github.com/loykin/proctrack/internal/registry"
	"github.com/loykin/proctrack/internal/store"
)

// Router provides embeddable HTTP handlers for the process registry.
// Endpoints:
//
//	GET  {basePath}/ws                     live snapshot stream (websocket)
//	GET  {basePath}/processes              all records
//	POST {basePath}/processes              body: registry.CreateRequest
//	POST {basePath}/processes/:id/progress body: {"percentage": n}
//	POST {basePath}/processes/:id/complete body: {"end_time": "..."} (optional)
//	GET  {basePath}/health
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	svc      *registry.Service
	hub      *hub.Hub
	basePath string
	logger   *slog.Logger
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(svc *registry.Service, h *hub.Hub, basePath string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{svc: svc, hub: h, basePath: sanitizeBase(basePath), logger: logger}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/ws", r.handleSubscribe)
	group.GET("/processes", r.handleList)
	group.POST("/processes", r.handleCreate)
	group.POST("/processes/:id/progress", r.handleProgress)
	group.POST("/processes/:id/complete", r.handleComplete)
	group.GET("/health", r.handleHealth)
	return g
}

// NewServer returns an http.Server for addr. The caller runs ListenAndServe
// and Shutdown. WriteTimeout is left unset; websocket writes carry their own
// deadlines.
func NewServer(addr string, r *Router) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type progressReq struct {
	Percentage *float64 `json:"percentage"`
}

type completeReq struct {
	EndTime string `json:"end_time"`
}

func (r *Router) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handleList(c *gin.Context) {
	snaps, err := r.svc.List(c.Request.Context())
	if err != nil {
		r.writeError(c, err, http.StatusInternalServerError)
		return
	}
	if snaps == nil {
		snaps = []store.Snapshot{}
	}
	writeJSON(c, http.StatusOK, snaps)
}

func (r *Router) handleCreate(c *gin.Context) {
	var req registry.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := r.svc.Create(c.Request.Context(), req); err != nil {
		r.writeError(c, err, http.StatusConflict)
		return
	}
	writeJSON(c, http.StatusCreated, okResp{OK: true})
}

func (r *Router) handleProgress(c *gin.Context) {
	var req progressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Percentage == nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "percentage required"})
		return
	}
	if err := r.svc.Advance(c.Request.Context(), c.Param("id"), *req.Percentage); err != nil {
		r.writeError(c, err, http.StatusNotFound)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleComplete(c *gin.Context) {
	var req completeReq
	// an empty body, chunked or not, means "now"
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
			return
		}
	}
	if req.EndTime == "" {
		req.EndTime = r.svc.Now()
	}
	if err := r.svc.Complete(c.Request.Context(), c.Param("id"), req.EndTime); err != nil {
		r.writeError(c, err, http.StatusNotFound)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

// writeError maps registry and store errors to status codes. rejected is
// the status used for store.ErrWriteRejected, which differs per endpoint.
func (r *Router) writeError(c *gin.Context, err error, rejected int) {
	switch {
	case errors.Is(err, registry.ErrInvalidRequest):
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
	case errors.Is(err, store.ErrWriteRejected):
		writeJSON(c, rejected, errorResp{Error: err.Error()})
	case errors.Is(err, context.Canceled):
		c.Status(499)
	default:
		r.logger.Error("request failed", "path", c.FullPath(), "error", err)
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: "internal error"})
	}
}
