package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Conceptual-Machines/magda-groove/internal/database"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/pipeline"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/timeline"
	"github.com/Conceptual-Machines/magda-groove/internal/logger"
	"github.com/Conceptual-Machines/magda-groove/internal/models"
	"github.com/Conceptual-Machines/magda-groove/internal/services"
	"github.com/Conceptual-Machines/magda-groove/internal/songfile"
)

const (
	generateTimeout  = 30 * time.Second
	defaultRunsLimit = 20
)

var errNoDesign = errors.New("design or design_yaml is required")

type GrooveHandler struct {
	svc *services.GrooveService
}

func NewGrooveHandler(svc *services.GrooveService) *GrooveHandler {
	return &GrooveHandler{svc: svc}
}

// DesignRequest carries a song design either as JSON or as a YAML document
type DesignRequest struct {
	Design     *songfile.Design `json:"design"`
	DesignYAML string           `json:"design_yaml"`
}

func (r DesignRequest) resolve() (*songfile.Design, error) {
	switch {
	case r.Design != nil:
		return r.Design, nil
	case r.DesignYAML != "":
		return songfile.Parse([]byte(r.DesignYAML))
	default:
		return nil, errNoDesign
	}
}

type GenerateRequest struct {
	DesignRequest
	Seed *uint64 `json:"seed" binding:"required"`
}

type BatchRequest struct {
	DesignRequest
	Seeds []uint64 `json:"seeds" binding:"required"`
}

type GenerateResponse struct {
	RunID       string          `json:"run_id,omitempty"`
	DesignHash  string          `json:"design_hash"`
	Cached      bool            `json:"cached"`
	Fingerprint string          `json:"fingerprint"`
	Track       *pipeline.Track `json:"track"`
}

type BatchResponse struct {
	Results []GenerateResponse `json:"results"`
}

type BarsResponse struct {
	Bars       []timeline.Bar `json:"bars"`
	TotalTicks int            `json:"total_ticks"`
}

// RunSummary describes a stored run without its track
type RunSummary struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Song        string    `json:"song"`
	DesignHash  string    `json:"design_hash"`
	Seed        uint64    `json:"seed"`
	Bars        int       `json:"bars"`
	Onsets      int       `json:"onsets"`
	Fingerprint string    `json:"fingerprint"`
	DurationMs  int64     `json:"duration_ms"`
}

type RunResponse struct {
	RunSummary
	Track *pipeline.Track `json:"track"`
}

type RunsResponse struct {
	Runs []RunSummary `json:"runs"`
}

func toSummary(run *models.GenerationRun) (RunSummary, error) {
	seed, err := run.SeedValue()
	if err != nil {
		return RunSummary{}, err
	}
	return RunSummary{
		ID:          run.ID,
		CreatedAt:   run.CreatedAt,
		Song:        run.Song,
		DesignHash:  run.DesignHash,
		Seed:        seed,
		Bars:        run.Bars,
		Onsets:      run.Onsets,
		Fingerprint: run.Fingerprint,
		DurationMs:  run.DurationMs,
	}, nil
}

// Generate produces one track for a design and seed
func (h *GrooveHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	design, err := req.resolve()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set("seed", *req.Seed)

	ctx, cancel := context.WithTimeout(c.Request.Context(), generateTimeout)
	defer cancel()

	res, err := h.svc.Generate(ctx, design, *req.Seed)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp, err := toResponse(res)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GenerateBatch produces one track per seed
func (h *GrooveHandler) GenerateBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	design, err := req.resolve()
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), generateTimeout)
	defer cancel()

	results, err := h.svc.GenerateBatch(ctx, design, req.Seeds)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := BatchResponse{Results: make([]GenerateResponse, 0, len(results))}
	for _, res := range results {
		r, err := toResponse(res)
		if err != nil {
			h.fail(c, err)
			return
		}
		resp.Results = append(resp.Results, r)
	}
	c.JSON(http.StatusOK, resp)
}

// Bars previews the bar sequence of a design without generating
func (h *GrooveHandler) Bars(c *gin.Context) {
	var req DesignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	design, err := req.resolve()
	if err != nil {
		h.fail(c, err)
		return
	}
	bars, err := h.svc.Bars(design)
	if err != nil {
		h.fail(c, err)
		return
	}
	total := 0
	if len(bars) > 0 {
		total = bars[len(bars)-1].EndTick
	}
	c.JSON(http.StatusOK, BarsResponse{Bars: bars, TotalTicks: total})
}

// GetRun returns a stored run with its track
func (h *GrooveHandler) GetRun(c *gin.Context) {
	run, track, err := h.svc.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	summary, err := toSummary(run)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, RunResponse{RunSummary: summary, Track: track})
}

// ListRuns returns the newest stored runs, at most ?limit of them
func (h *GrooveHandler) ListRuns(c *gin.Context) {
	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	runs, err := h.svc.Runs(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := RunsResponse{Runs: make([]RunSummary, 0, len(runs))}
	for i := range runs {
		summary, err := toSummary(&runs[i])
		if err != nil {
			h.fail(c, err)
			return
		}
		resp.Runs = append(resp.Runs, summary)
	}
	c.JSON(http.StatusOK, resp)
}

func toResponse(res *services.Result) (GenerateResponse, error) {
	fp, err := res.Track.Fingerprint()
	if err != nil {
		return GenerateResponse{}, err
	}
	return GenerateResponse{
		RunID:       res.RunID,
		DesignHash:  res.DesignHash,
		Cached:      res.Cached,
		Fingerprint: fp,
		Track:       res.Track,
	}, nil
}

func (h *GrooveHandler) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logger.Error("Groove request failed", err, logger.WithContext(c))
	}
	c.JSON(code, gin.H{
		"error":      err.Error(),
		"request_id": c.GetString("request_id"),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errNoDesign),
		errors.Is(err, songfile.ErrInvalidDesign),
		errors.Is(err, timeline.ErrInvalidTimeline),
		errors.Is(err, services.ErrNoSeeds),
		errors.Is(err, services.ErrTooManySeeds):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNoStore):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
