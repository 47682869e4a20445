package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/camherd/camherd/internal/metrics"
	"github.com/camherd/camherd/internal/supervisor"
	"github.com/camherd/camherd/web"
	"github.com/gin-gonic/gin"
)

// Router exposes the supervisor over HTTP:
//
//	GET  /            embedded player page
//	GET  /health      liveness snapshot (total vs active feeds)
//	GET  /api/feeds   full per-feed status
//	POST /api/feeds/:id/restart
//	GET  /hls/*filepath   generated playlists and segments
//	GET  /metrics     Prometheus metrics
//
// Handlers only take snapshot reads of the registry; an in-progress launch
// never blocks a request beyond the registry's pointer-swap lock hold.
type Router struct {
	sup     *supervisor.Supervisor
	baseDir string
}

func NewRouter(sup *supervisor.Supervisor, baseDir string) *Router {
	return &Router{sup: sup, baseDir: baseDir}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/", r.handleIndex)
	g.GET("/health", r.handleHealth)
	g.GET("/api/feeds", r.handleFeeds)
	g.POST("/api/feeds/:id/restart", r.handleRestart)
	g.GET("/hls/*filepath", r.handleHLS)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Call Shutdown on the returned server to stop it.
func NewServer(addr string, sup *supervisor.Supervisor, baseDir string) *http.Server {
	r := NewRouter(sup, baseDir)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

// healthResp keeps the original deployment's health endpoint shape.
type healthResp struct {
	Status        string `json:"status"`
	TotalStreams  int    `json:"total_streams"`
	ActiveStreams int    `json:"active_streams"`
}

func (r *Router) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", web.Index())
}

func (r *Router) handleHealth(c *gin.Context) {
	snap := r.sup.Snapshot()
	writeJSON(c, http.StatusOK, healthResp{
		Status:        "ok",
		TotalStreams:  snap.Total,
		ActiveStreams: snap.Active,
	})
}

func (r *Router) handleFeeds(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.sup.Snapshot().Feeds)
}

func (r *Router) handleRestart(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid feed id"})
		return
	}
	err = r.sup.Restart(c.Request.Context(), id)
	switch {
	case err == nil:
		writeJSON(c, http.StatusAccepted, gin.H{"restarting": id})
	case errors.Is(err, supervisor.ErrUnknownFeed):
		writeJSON(c, http.StatusNotFound, errorResp{Error: err.Error()})
	case errors.Is(err, supervisor.ErrTerminateTimeout):
		writeJSON(c, http.StatusConflict, errorResp{Error: err.Error()})
	default:
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
	}
}

// handleHLS serves playlists and segments from the output tree. Playlists
// must never be cached: they are rewritten every segment interval and a
// cached copy would freeze the player on a stale window.
func (r *Router) handleHLS(c *gin.Context) {
	rel := c.Param("filepath")
	full, ok := safeJoin(r.baseDir, rel)
	if !ok {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid path"})
		return
	}
	if strings.HasSuffix(full, ".m3u8") {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
	}
	c.File(full)
}

// safeJoin resolves rel under base, rejecting traversal outside it.
func safeJoin(base, rel string) (string, bool) {
	full := filepath.Join(base, filepath.Clean("/"+rel))
	cleanBase := filepath.Clean(base)
	if full != cleanBase && !strings.HasPrefix(full, cleanBase+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

// Shutdown drains srv within the given timeout.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
