package network

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/clinic"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/rules"
	"github.com/MRamiBalles/CyberClinic/server/internal/engine"
	"github.com/MRamiBalles/CyberClinic/server/internal/events"
	"github.com/MRamiBalles/CyberClinic/server/internal/infra/storage"
	"github.com/MRamiBalles/CyberClinic/server/internal/platform/logger"
	"github.com/MRamiBalles/CyberClinic/server/internal/platform/metrics"
)

// RunStore is the read side of the run ledger.
type RunStore interface {
	GetRun(ctx context.Context, runID string) (*engine.RunSummary, error)
	ListRuns(ctx context.Context, limit int) ([]engine.RunSummary, error)
	EventsByRun(ctx context.Context, runID string) ([]events.GameEvent, error)
}

// API exposes the session over REST.
type API struct {
	ctrl    Controller
	runs    RunStore
	hub     *Hub
	replay  *ReplayHandler
	metrics *metrics.Collector
	logger  *logger.Logger
}

// NewAPI wires the REST handlers. runs and hub may be nil.
func NewAPI(ctrl Controller, eventLog *events.EventLog, runs RunStore, hub *Hub, m *metrics.Collector, log *logger.Logger) *API {
	if log == nil {
		log = logger.Discard()
	}
	return &API{
		ctrl:    ctrl,
		runs:    runs,
		hub:     hub,
		replay:  NewReplayHandler(eventLog, log),
		metrics: m,
		logger:  log,
	}
}

// Router builds the gin engine with every route registered.
func (a *API) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(a.logger))

	router.GET("/healthz", a.HandleHealth)
	if a.metrics != nil {
		router.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	}
	if a.hub != nil {
		router.GET("/ws", func(c *gin.Context) { a.hub.ServeWs(c.Writer, c.Request) })
	}

	api := router.Group("/api")
	api.GET("/state", a.HandleState)
	api.POST("/commands", a.HandleCommand)
	api.GET("/upgrades", a.HandleQuotes)
	api.GET("/upgrades/:kind/quote", a.HandleQuote)
	api.GET("/runs", a.HandleListRuns)
	api.GET("/runs/:id", a.HandleGetRun)
	api.GET("/runs/:id/events", a.HandleRunEvents)
	a.replay.RegisterRoutes(api)

	return router
}

// HandleHealth reports liveness plus a few session facts.
// GET /healthz
func (a *API) HandleHealth(c *gin.Context) {
	clients := 0
	if a.hub != nil {
		clients = a.hub.ClientCount()
	}
	s := a.ctrl.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"phase":   s.Phase,
		"run_id":  a.ctrl.RunID(),
		"clients": clients,
	})
}

// HandleState returns the current snapshot.
// GET /api/state
func (a *API) HandleState(c *gin.Context) {
	c.JSON(http.StatusOK, SnapshotPayload{
		RunID:              a.ctrl.RunID(),
		DiagnosisTimeLimit: a.ctrl.DiagnosisTimeLimit(),
		State:              a.ctrl.Snapshot(),
	})
}

// HandleCommand applies one player command.
// POST /api/commands
func (a *API) HandleCommand(c *gin.Context) {
	var cmd Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	applied, err := Dispatch(a.ctrl, cmd)
	a.metrics.RecordCommand(string(cmd.Type), applied)
	if err != nil {
		jsonError(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result": CommandResult{Type: cmd.Type, Applied: applied},
		"state":  a.ctrl.Snapshot(),
	})
}

// HandleQuotes prices the next purchase of every upgrade.
// GET /api/upgrades
func (a *API) HandleQuotes(c *gin.Context) {
	quotes := make([]rules.Quote, 0, len(clinic.UpgradeKinds))
	for _, k := range clinic.UpgradeKinds {
		quotes = append(quotes, a.ctrl.QuoteUpgrade(k))
	}
	c.JSON(http.StatusOK, gin.H{"quotes": quotes})
}

// HandleQuote prices the next purchase of one upgrade.
// GET /api/upgrades/:kind/quote
func (a *API) HandleQuote(c *gin.Context) {
	kind, err := clinic.ParseUpgradeKind(c.Param("kind"))
	if err != nil {
		jsonError(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, a.ctrl.QuoteUpgrade(kind))
}

// HandleListRuns lists finished runs from the ledger.
// GET /api/runs?limit=N
func (a *API) HandleListRuns(c *gin.Context) {
	if a.runs == nil {
		jsonError(c, http.StatusServiceUnavailable, "run ledger disabled")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		jsonError(c, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	runs, err := a.runs.ListRuns(ctx, limit)
	if err != nil {
		a.logger.Errorf("Failed to list runs: %v", err)
		jsonError(c, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []engine.RunSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// HandleGetRun returns one finished run.
// GET /api/runs/:id
func (a *API) HandleGetRun(c *gin.Context) {
	if a.runs == nil {
		jsonError(c, http.StatusServiceUnavailable, "run ledger disabled")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	run, err := a.runs.GetRun(ctx, c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		jsonError(c, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		a.logger.Errorf("Failed to get run: %v", err)
		jsonError(c, http.StatusInternalServerError, "failed to get run")
		return
	}
	c.JSON(http.StatusOK, run)
}

// HandleRunEvents returns the persisted journal of one run.
// GET /api/runs/:id/events
func (a *API) HandleRunEvents(c *gin.Context) {
	if a.runs == nil {
		jsonError(c, http.StatusServiceUnavailable, "run ledger disabled")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	evs, err := a.runs.EventsByRun(ctx, c.Param("id"))
	if err != nil {
		a.logger.Errorf("Failed to load run events: %v", err)
		jsonError(c, http.StatusInternalServerError, "failed to load run events")
		return
	}
	out := make([]ReplayEvent, 0, len(evs))
	for _, e := range evs {
		out = append(out, toReplayEvent(e))
	}
	c.JSON(http.StatusOK, ReplayResponse{
		RunID:       c.Param("id"),
		TotalEvents: len(out),
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      out,
	})
}

// requestLogger logs one line per request through the server logger.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// jsonError sends an error response.
func jsonError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

var _ Controller = (*engine.Engine)(nil)
