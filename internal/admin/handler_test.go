package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "logtrigger/internal/admin/docs"
	"logtrigger/internal/config"
	"logtrigger/internal/logger"
	"logtrigger/internal/pipeline"
	"logtrigger/internal/reload"
	"logtrigger/internal/rules"
	"logtrigger/pkg/health"
)

type fakeStatus struct {
	stats *pipeline.Stats
}

func (f *fakeStatus) Progress() pipeline.Progress {
	return pipeline.Progress{State: "running", Workers: 4, Parallel: true, LastSequence: 12}
}

func (f *fakeStatus) Stats() *pipeline.Stats {
	return f.stats
}

type fakeReloader struct {
	engine *rules.Engine
	defs   []rules.Definition
	err    error
	calls  []string
	last   *reload.Result
}

func (f *fakeReloader) Reload(_ context.Context, trigger string) (reload.Result, error) {
	f.calls = append(f.calls, trigger)
	if f.err != nil {
		return reload.Result{}, f.err
	}
	_ = f.engine.Reload(f.defs)
	table := f.engine.Snapshot()
	res := reload.Result{Trigger: trigger, Rules: table.Len(), ActiveRules: table.ActiveCount(), At: time.Now()}
	f.last = &res
	return res, nil
}

func (f *fakeReloader) Last() (reload.Result, bool) {
	if f.last == nil {
		return reload.Result{}, false
	}
	return *f.last, true
}

type fixture struct {
	router   *gin.Engine
	engine   *rules.Engine
	reloader *fakeReloader
	registry *health.CheckerRegistry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NopLogger()
	engine := rules.NewEngine(log)
	defs := []rules.Definition{
		{
			Name: "tell", Pattern: "# tells you", Enabled: true, CooldownMs: 1000,
			Steps: []rules.StepTemplate{
				{Type: rules.ActionSms, Template: "tell from #", Enabled: true},
				{Type: rules.ActionKeystroke, Template: "f1", Enabled: true},
			},
		},
		{
			Name: "camp", Pattern: "You have been summoned", Enabled: true,
			Steps: []rules.StepTemplate{{Type: rules.ActionCommand, Template: "camp", Enabled: true}},
		},
	}
	require.NoError(t, engine.Reload(defs))

	gate := rules.NewCooldownGate()
	require.True(t, gate.ShouldFire("tell", time.Second))

	reloader := &fakeReloader{engine: engine, defs: defs}
	registry := health.NewCheckerRegistry()

	h := NewHandler(engine, reloader, gate, &fakeStatus{stats: pipeline.NewStats()}, registry, log)
	router := NewRouter(context.Background(), config.ServerConfig{}, h, log, "logtrigger-test")

	return &fixture{router: router, engine: engine, reloader: reloader, registry: registry}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		check  error
		status int
		want   health.Status
	}{
		{name: "healthy", status: http.StatusOK, want: health.StatusHealthy},
		{name: "degraded", check: health.Degraded(errors.New("stalled")), status: http.StatusOK, want: health.StatusDegraded},
		{name: "unhealthy", check: errors.New("stopped"), status: http.StatusServiceUnavailable, want: health.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.registry.Register(health.NewCheckFunc("pipeline", func(context.Context) error { return tt.check }))

			w := f.do(t, http.MethodGet, "/health", nil)
			assert.Equal(t, tt.status, w.Code)

			var got health.Health
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestListAndGetRules(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/rules", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list []RuleView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "tell", list[0].Name)
	assert.Len(t, list[0].Steps, 2)
	assert.NotNil(t, list[0].LastFired)
	assert.Nil(t, list[1].LastFired)

	w = f.do(t, http.MethodGet, "/api/v1/rules/camp", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var one RuleView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	assert.Equal(t, "You have been summoned", one.Pattern)

	w = f.do(t, http.MethodGet, "/api/v1/rules/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "RULE_NOT_FOUND")
}

func TestSetRuleEnabled(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{name: "disable", path: "/api/v1/rules/tell/enabled", body: map[string]bool{"enabled": false}, status: http.StatusOK},
		{name: "unknown rule", path: "/api/v1/rules/nope/enabled", body: map[string]bool{"enabled": false}, status: http.StatusNotFound},
		{name: "missing field", path: "/api/v1/rules/tell/enabled", body: map[string]string{}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w := f.do(t, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	f := newFixture(t)
	f.do(t, http.MethodPut, "/api/v1/rules/tell/enabled", map[string]bool{"enabled": false})
	r, ok := f.engine.Snapshot().Rule("tell")
	require.True(t, ok)
	assert.False(t, r.Enabled)
	assert.Empty(t, f.engine.Evaluate("Bob tells you hi"))
}

func TestSetStepEnabled(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "valid step", path: "/api/v1/rules/tell/steps/1/enabled", status: http.StatusOK},
		{name: "step out of range", path: "/api/v1/rules/tell/steps/5/enabled", status: http.StatusNotFound},
		{name: "non numeric index", path: "/api/v1/rules/tell/steps/x/enabled", status: http.StatusBadRequest},
		{name: "unknown rule", path: "/api/v1/rules/nope/steps/0/enabled", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w := f.do(t, http.MethodPut, tt.path, map[string]bool{"enabled": false})
			assert.Equal(t, tt.status, w.Code)
		})
	}

	f := newFixture(t)
	f.do(t, http.MethodPut, "/api/v1/rules/tell/steps/1/enabled", map[string]bool{"enabled": false})
	steps := f.engine.Snapshot().Mapping("tell")
	require.Len(t, steps, 2)
	assert.True(t, steps[0].Enabled)
	assert.False(t, steps[1].Enabled)
}

func TestReloadRules(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/rules/reload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res reload.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "admin", res.Trigger)
	assert.Equal(t, 2, res.Rules)
	assert.Equal(t, []string{"admin"}, f.reloader.calls)

	f.reloader.err = errors.New("read failed")
	w = f.do(t, http.MethodPost, "/api/v1/rules/reload", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "RELOAD_FAILED")
	assert.Equal(t, 2, f.engine.Snapshot().Len())
}

func TestGetStats(t *testing.T) {
	f := newFixture(t)
	f.engine.Evaluate("Bob tells you hi")
	f.do(t, http.MethodPost, "/api/v1/rules/reload", nil)

	w := f.do(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "running", got.Pipeline.State)
	assert.Equal(t, 2, got.Rules)
	assert.Equal(t, 2, got.Active)
	assert.Equal(t, uint64(1), got.Matches)
	require.NotNil(t, got.LastReload)
	assert.Equal(t, "admin", got.LastReload.Trigger)

	var raw struct {
		Counters map[string]uint64 `json:"counters"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Contains(t, raw.Counters, "firings_matched")
	assert.NotContains(t, raw.Counters, "rule_matches")
}

func TestRequestIDAndMetrics(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestSwaggerDocumentsEveryRoute(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		path        string
		contentType string
	}{
		{path: "/swagger/index.html", contentType: "text/html"},
		{path: "/swagger/doc.json", contentType: "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := f.do(t, http.MethodGet, tt.path, nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), tt.contentType)
		})
	}

	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(f.do(t, http.MethodGet, "/swagger/doc.json", nil).Body.Bytes(), &doc))

	param := regexp.MustCompile(`:(\w+)`)
	for _, route := range f.router.Routes() {
		if route.Path != "/health" && !strings.HasPrefix(route.Path, "/api/") {
			continue
		}
		path := param.ReplaceAllString(route.Path, "{$1}")
		_, ok := doc.Paths[path][strings.ToLower(route.Method)]
		assert.True(t, ok, "%s %s is not documented", route.Method, path)
	}
}

func TestRateLimitOnlyGuardsAPI(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.ServerConfig{RateLimit: config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}}
	h := NewHandler(f.engine, f.reloader, nil, &fakeStatus{stats: pipeline.NewStats()}, f.registry, logger.NopLogger())
	f.router = NewRouter(ctx, cfg, h, logger.NopLogger(), "logtrigger-test")

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/rules", nil).Code)
	limited := f.do(t, http.MethodGet, "/api/v1/rules", nil)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", nil).Code)
	}
}
