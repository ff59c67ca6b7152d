package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conceptual-Machines/magda-groove/internal/api/handlers"
	"github.com/Conceptual-Machines/magda-groove/internal/cache"
	"github.com/Conceptual-Machines/magda-groove/internal/config"
	"github.com/Conceptual-Machines/magda-groove/internal/database"
	"github.com/Conceptual-Machines/magda-groove/internal/groove"
	"github.com/Conceptual-Machines/magda-groove/internal/metrics"
	"github.com/Conceptual-Machines/magda-groove/internal/services"
)

const designYAML = `
name: api-demo
sections:
  - type: verse
    bars: 2
  - type: chorus
    bars: 2
    energy: 0.9
protection:
  - name: base
    roles:
      kick:
        must_hit: [1]
harmony:
  chords:
    - bar: 1
      chord: Am
    - bar: 3
      chord: F
`

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{Environment: "test", TicksPerQuarter: 480, FillWindowBars: 1, MaxBatchSeeds: 3}

	db, err := database.Connect("sqlite://" + filepath.Join(t.TempDir(), "api.sqlite3"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	tc := cache.NewWithOptions(&redis.Options{Addr: mr.Addr()}, time.Hour)
	t.Cleanup(func() { _ = tc.Close() })

	rec := metrics.NewRecorder(nil)
	svc := services.NewGrooveService(cfg.TimelineOptions(), cfg.MaxBatchSeeds,
		services.WithCache(tc),
		services.WithStore(database.NewRunStore(db)),
		services.WithMetrics(rec),
	)

	return SetupRouter(Dependencies{
		Config:  cfg,
		Groove:  svc,
		Metrics: rec,
		Checks: map[string]handlers.Check{
			"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
			"redis":    tc.Ping,
		},
	}, "test")
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := setupRouter(t)
	w := do(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status       string                       `json:"status"`
		Dependencies map[string]map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "ok", body.Dependencies["database"]["status"])
	assert.Equal(t, "ok", body.Dependencies["redis"]["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHealth_Degraded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := SetupRouter(Dependencies{
		Config: &config.Config{},
		Groove: services.NewGrooveService(config.Load().TimelineOptions(), 1),
		Checks: map[string]handlers.Check{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		},
	}, "test")

	w := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestGenerate_CachesAndStores(t *testing.T) {
	r := setupRouter(t)
	req := gin.H{"design_yaml": designYAML, "seed": 42}

	w := do(t, r, http.MethodPost, "/api/v1/groove/generate", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var first handlers.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.False(t, first.Cached)
	require.NotEmpty(t, first.RunID)
	require.Len(t, first.Track.Bars, 4)
	assert.Equal(t, uint64(42), first.Track.Seed)
	for _, bar := range first.Track.Bars {
		assert.True(t, groove.HasBeat(bar.Roles[groove.RoleKick], 1), "bar %d", bar.Bar)
	}

	w = do(t, r, http.MethodPost, "/api/v1/groove/generate", req)
	require.Equal(t, http.StatusOK, w.Code)
	var second handlers.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.True(t, second.Cached)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.RunID, second.RunID)

	w = do(t, r, http.MethodGet, "/api/v1/groove/runs/"+first.RunID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var run handlers.RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, uint64(42), run.Seed)
	assert.Equal(t, "api-demo", run.Song)
	assert.Equal(t, first.Fingerprint, run.Fingerprint)

	w = do(t, r, http.MethodGet, "/api/v1/groove/runs/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRuns(t *testing.T) {
	r := setupRouter(t)
	for _, seed := range []int{1, 2, 3} {
		w := do(t, r, http.MethodPost, "/api/v1/groove/generate", gin.H{"design_yaml": designYAML, "seed": seed})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := do(t, r, http.MethodGet, "/api/v1/groove/runs?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp handlers.RunsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 2)
	for _, run := range resp.Runs {
		assert.Equal(t, "api-demo", run.Song)
		assert.Equal(t, 4, run.Bars)
		assert.NotEmpty(t, run.Fingerprint)
	}
	assert.NotContains(t, w.Body.String(), `"track"`)

	w = do(t, r, http.MethodGet, "/api/v1/groove/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Runs, 3)

	w = do(t, r, http.MethodGet, "/api/v1/groove/runs?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerate_BadRequests(t *testing.T) {
	r := setupRouter(t)

	tests := []struct {
		name string
		body any
	}{
		{name: "missing seed", body: gin.H{"design_yaml": designYAML}},
		{name: "missing design", body: gin.H{"seed": 1}},
		{name: "invalid yaml", body: gin.H{"design_yaml": "name: [", "seed": 1}},
		{name: "invalid design", body: gin.H{"design": gin.H{"name": "x"}, "seed": 1}},
		{name: "bad meter", body: gin.H{"design": gin.H{
			"name":     "x",
			"meter":    []gin.H{{"bar": 3, "numerator": 4, "denominator": 4}},
			"sections": []gin.H{{"type": "verse", "bars": 4}},
		}, "seed": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/v1/groove/generate", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestGenerateBatch(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodPost, "/api/v1/groove/batch", gin.H{"design_yaml": designYAML, "seeds": []uint64{5, 1, 5}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp handlers.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 3)
	assert.Equal(t, uint64(5), resp.Results[0].Track.Seed)
	assert.Equal(t, uint64(1), resp.Results[1].Track.Seed)
	assert.Equal(t, resp.Results[0].Fingerprint, resp.Results[2].Fingerprint)

	w = do(t, r, http.MethodPost, "/api/v1/groove/batch", gin.H{"design_yaml": designYAML, "seeds": []uint64{1, 2, 3, 4}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBars(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodPost, "/api/v1/groove/bars", gin.H{"design_yaml": designYAML})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp handlers.BarsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Bars, 4)
	assert.Equal(t, 4*1920, resp.TotalTicks)
	assert.True(t, resp.Bars[1].IsFillWindow)
	assert.Equal(t, "chorus", resp.Bars[2].Section.Type)
}

func TestMetricsEndpoints(t *testing.T) {
	r := setupRouter(t)
	do(t, r, http.MethodGet, "/health", nil)

	w := do(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "groove_api_requests_total")

	w = do(t, r, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status handlers.MetricsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "test", status.Version)
	assert.Equal(t, 480, status.Generator.TicksPerQuarter)
	assert.Contains(t, status.Generator.Roles, "kick")
}
