package admin

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"logtrigger/internal/constants"
	"logtrigger/internal/logger"
	"logtrigger/internal/pipeline"
	"logtrigger/internal/reload"
	"logtrigger/internal/rules"
	"logtrigger/pkg/errors"
	"logtrigger/pkg/health"
)

type StatusSource interface {
	Progress() pipeline.Progress
	Stats() *pipeline.Stats
}

type Reloader interface {
	Reload(ctx context.Context, trigger string) (reload.Result, error)
	Last() (reload.Result, bool)
}

type CooldownView interface {
	LastFire(rule string) (time.Time, bool)
}

type BaseHandler struct {
	Logger logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

// Handler serves the admin API: health, counters and runtime rule edits.
type Handler struct {
	BaseHandler
	engine    *rules.Engine
	reloader  Reloader
	cooldowns CooldownView
	status    StatusSource
	health    *health.CheckerRegistry
	started   time.Time
}

func NewHandler(engine *rules.Engine, reloader Reloader, cooldowns CooldownView, status StatusSource, registry *health.CheckerRegistry, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{Logger: log},
		engine:      engine,
		reloader:    reloader,
		cooldowns:   cooldowns,
		status:      status,
		health:      registry,
		started:     time.Now(),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/stats", h.GetStats)

		r := v1.Group("/rules")
		{
			r.GET("", h.ListRules)
			r.POST("/reload", h.ReloadRules)
			r.GET("/:name", h.GetRule)
			r.PUT("/:name/enabled", h.SetRuleEnabled)
			r.PUT("/:name/steps/:index/enabled", h.SetStepEnabled)
		}
	}
}

// Health godoc
// @Summary      Service health
// @Description  Aggregated result of the registered health checks
// @Tags         health
// @Produce      json
// @Success      200  {object}  health.Health
// @Failure      503  {object}  health.Health
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	result := h.health.Check(c.Request.Context())
	status := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}

// StatsResponse is the body of GET /api/v1/stats.
type StatsResponse struct {
	Uptime     string                 `json:"uptime"`
	Pipeline   pipeline.Progress      `json:"pipeline"`
	Counters   pipeline.StatsSnapshot `json:"counters"`
	Rules      int                    `json:"rules"`
	Active     int                    `json:"active_rules"`
	Matches    uint64                 `json:"matches_total"`
	LastReload *reload.Result         `json:"last_reload,omitempty"`
}

// GetStats godoc
// @Summary      Pipeline counters
// @Description  Progress, counters and rule totals of the running pipeline
// @Tags         stats
// @Produce      json
// @Success      200  {object}  StatsResponse
// @Router       /api/v1/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	table := h.engine.Snapshot()
	resp := StatsResponse{
		Uptime:   time.Since(h.started).Round(time.Second).String(),
		Pipeline: h.status.Progress(),
		Counters: h.status.Stats().Snapshot(),
		Rules:    table.Len(),
		Active:   table.ActiveCount(),
		Matches:  h.engine.MatchCount(),
	}
	if last, ok := h.reloader.Last(); ok {
		resp.LastReload = &last
	}
	c.JSON(http.StatusOK, resp)
}

type RuleView struct {
	rules.Rule
	Steps     []rules.StepTemplate `json:"steps"`
	LastFired *time.Time           `json:"last_fired,omitempty"`
}

func (h *Handler) view(table *rules.Table, r rules.Rule) RuleView {
	v := RuleView{Rule: r, Steps: table.Mapping(r.Name)}
	if h.cooldowns != nil {
		if t, ok := h.cooldowns.LastFire(r.Name); ok {
			v.LastFired = &t
		}
	}
	return v
}

// ListRules godoc
// @Summary      List rules
// @Description  All rules of the active table in definition order, with their action steps
// @Tags         rules
// @Produce      json
// @Success      200  {array}   RuleView
// @Router       /api/v1/rules [get]
func (h *Handler) ListRules(c *gin.Context) {
	table := h.engine.Snapshot()
	all := table.Rules()
	out := make([]RuleView, 0, len(all))
	for _, r := range all {
		out = append(out, h.view(table, r))
	}
	c.JSON(http.StatusOK, out)
}

// GetRule godoc
// @Summary      Get a rule
// @Tags         rules
// @Produce      json
// @Param        name  path      string  true  "Rule name"
// @Success      200   {object}  RuleView
// @Failure      404   {object}  errors.ErrorResponse
// @Router       /api/v1/rules/{name} [get]
func (h *Handler) GetRule(c *gin.Context) {
	table := h.engine.Snapshot()
	r, ok := table.Rule(c.Param("name"))
	if !ok {
		h.HandleError(c, errors.ErrRuleNotFound.WithDetail("name", c.Param("name")))
		return
	}
	c.JSON(http.StatusOK, h.view(table, r))
}

// ReloadRules re-reads the rule definitions. Per-rule problems are returned
// in the result with status 200; only a failed load is an error.
//
// @Summary      Reload rules
// @Description  Re-read the rule definitions and swap the active table
// @Tags         rules
// @Produce      json
// @Success      200  {object}  reload.Result
// @Failure      422  {object}  errors.ErrorResponse
// @Router       /api/v1/rules/reload [post]
func (h *Handler) ReloadRules(c *gin.Context) {
	res, err := h.reloader.Reload(c.Request.Context(), constants.ReloadTriggerAdmin)
	if err != nil {
		h.HandleError(c, errors.Wrap(err, errors.ErrReloadFailed))
		return
	}
	c.JSON(http.StatusOK, res)
}

type enabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetRuleEnabled godoc
// @Summary      Enable or disable a rule
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        name     path      string          true  "Rule name"
// @Param        enabled  body      enabledRequest  true  "New state"
// @Success      200      {object}  RuleView
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      404      {object}  errors.ErrorResponse
// @Router       /api/v1/rules/{name}/enabled [put]
func (h *Handler) SetRuleEnabled(c *gin.Context) {
	var req enabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.Wrap(err, errors.ErrValidation))
		return
	}

	name := c.Param("name")
	if err := h.engine.SetRuleEnabled(name, *req.Enabled); err != nil {
		h.HandleError(c, mapRuleError(err, name))
		return
	}

	h.Logger.InfowCtx(c.Request.Context(), "Rule toggled", "rule", name, "enabled", *req.Enabled)
	h.GetRule(c)
}

// SetStepEnabled godoc
// @Summary      Enable or disable an action step
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        name     path      string          true  "Rule name"
// @Param        index    path      int             true  "Step index"
// @Param        enabled  body      enabledRequest  true  "New state"
// @Success      200      {object}  RuleView
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      404      {object}  errors.ErrorResponse
// @Router       /api/v1/rules/{name}/steps/{index}/enabled [put]
func (h *Handler) SetStepEnabled(c *gin.Context) {
	var req enabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.Wrap(err, errors.ErrValidation))
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		h.HandleError(c, errors.ErrValidation.WithDetail("index", c.Param("index")))
		return
	}

	name := c.Param("name")
	if err := h.engine.SetStepEnabled(name, index, *req.Enabled); err != nil {
		h.HandleError(c, mapRuleError(err, name))
		return
	}

	h.Logger.InfowCtx(c.Request.Context(), "Action step toggled", "rule", name, "step", index, "enabled", *req.Enabled)
	h.GetRule(c)
}

func mapRuleError(err error, name string) error {
	switch {
	case stderrors.Is(err, rules.ErrRuleNotFound):
		return errors.ErrRuleNotFound.WithDetail("name", name)
	case stderrors.Is(err, rules.ErrStepNotFound):
		return errors.ErrNotFound.WithCause(err)
	default:
		return errors.ErrInternal.WithCause(err)
	}
}
