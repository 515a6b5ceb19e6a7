package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/darkwatch/internal/ledger"
	"github.com/nao1215/darkwatch/internal/model"
	"github.com/nao1215/darkwatch/internal/scan"
)

const (
	// DefaultMonitorInterval is used when a create request omits the interval.
	DefaultMonitorInterval = 5

	defaultListLimit = 100
	healthTimeout    = 2 * time.Second
)

// Scanner is the scan side of the API. *scan.Orchestrator satisfies it.
type Scanner interface {
	Scan(ctx context.Context, url string) (*scan.Result, error)
	Compare(ctx context.Context, url string) (*scan.Comparison, error)
	History(ctx context.Context, limit int) ([]*model.ScanDocument, error)
	HistoryEntry(ctx context.Context, id string) (*model.ScanDocument, error)
	Alerts(ctx context.Context, limit int) ([]*model.Alert, error)
	Acknowledge(ctx context.Context, id string) (*model.Alert, error)
}

// Monitors is the monitor side of the API. *monitor.Scheduler satisfies it.
type Monitors interface {
	Create(ctx context.Context, url string, minutes int) (*model.Monitor, error)
	Get(ctx context.Context, id string) (*model.Monitor, error)
	List(ctx context.Context, statuses ...model.MonitorStatus) ([]*model.Monitor, error)
	Pause(ctx context.Context, id string) (*model.Monitor, error)
	Resume(ctx context.Context, id string) (*model.Monitor, error)
	Remove(ctx context.Context, id string) (*model.Monitor, error)
	RemoveAll(ctx context.Context) (int, error)
	NextRun(id string) (time.Time, bool)
}

// Backend is the part of the store the API reads directly.
type Backend interface {
	Ping(ctx context.Context) error
	LatestScan(ctx context.Context, url string) (*model.ScanDocument, error)
}

// Handler serves the HTTP API.
type Handler struct {
	scanner         Scanner
	monitors        Monitors
	backend         Backend
	metrics         http.Handler
	logger          *slog.Logger
	version         string
	defaultInterval int
	engine          *gin.Engine
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMetrics serves m on GET /metrics.
func WithMetrics(m http.Handler) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithVersion sets the version reported by GET /health.
func WithVersion(v string) Option {
	return func(h *Handler) {
		h.version = v
	}
}

// WithDefaultInterval sets the interval used when a create request omits it.
func WithDefaultInterval(minutes int) Option {
	return func(h *Handler) {
		if minutes > 0 {
			h.defaultInterval = minutes
		}
	}
}

// NewHandler creates a Handler and registers its routes.
func NewHandler(scanner Scanner, monitors Monitors, backend Backend, opts ...Option) *Handler {
	h := &Handler{
		scanner:         scanner,
		monitors:        monitors,
		backend:         backend,
		logger:          slog.Default(),
		defaultInterval: DefaultMonitorInterval,
	}
	for _, opt := range opts {
		opt(h)
	}

	router := gin.New()
	router.Use(recoveryMiddleware(h.logger))
	router.Use(loggerMiddleware(h.logger))
	h.routes(router)
	h.engine = router
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.engine.ServeHTTP(w, r)
}

func (h *Handler) routes(r *gin.Engine) {
	r.GET("/health", h.health)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}

	r.POST("/scan", h.scan)
	r.GET("/compare", h.compare)

	r.GET("/history", h.history)
	r.GET("/history/:id", h.historyEntry)

	r.GET("/alerts", h.alerts)
	r.POST("/alerts/:id/acknowledge", h.acknowledge)

	monitors := r.Group("/monitors")
	monitors.GET("", h.listMonitors)
	monitors.POST("", h.createMonitor)
	monitors.DELETE("/all", h.removeAllMonitors)
	monitors.GET("/:id", h.getMonitor)
	monitors.DELETE("/:id", h.removeMonitor)
	monitors.POST("/:id/pause", h.pauseMonitor)
	monitors.POST("/:id/resume", h.resumeMonitor)
}

// health reports the API and store state.
func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	checks := gin.H{"store": "ok"}
	status := http.StatusOK
	overall := "ok"
	if err := h.backend.Ping(ctx); err != nil {
		h.logger.Warn("store health check failed", "error", err)
		checks["store"] = "unavailable"
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	c.JSON(status, gin.H{
		"status":  overall,
		"version": h.version,
		"checks":  checks,
	})
}

type scanRequest struct {
	URL string `json:"url" binding:"required"`
}

type scanResponse struct {
	ID string `json:"id"`
	scan.Summary
	Alerts        []*model.Alert `json:"alerts"`
	Reuse         []ledger.Reuse `json:"reuse"`
	PreviousScore *int           `json:"previousScore,omitempty"`
	ScoreDelta    int            `json:"scoreDelta"`
}

func (h *Handler) scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "request body must be JSON with a url field")
		return
	}
	res, err := h.scanner.Scan(c.Request.Context(), req.URL)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, scanResponse{
		ID:            res.Document.ID,
		Summary:       scan.Summarize(res.Document),
		Alerts:        res.Alerts,
		Reuse:         res.Reuse,
		PreviousScore: res.PreviousScore,
		ScoreDelta:    res.ScoreDelta,
	})
}

func (h *Handler) compare(c *gin.Context) {
	cmp, err := h.scanner.Compare(c.Request.Context(), c.Query("url"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, cmp)
}

type historyItem struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	ThreatScore int               `json:"threat_score"`
	RiskLevel   model.RiskLevel   `json:"risk_level"`
	Category    string            `json:"category"`
	Timestamp   time.Time         `json:"timestamp"`
	Status      model.FetchStatus `json:"url_status"`
}

func (h *Handler) history(c *gin.Context) {
	docs, err := h.scanner.History(c.Request.Context(), parseLimit(c, defaultListLimit))
	if err != nil {
		respondErr(c, err)
		return
	}
	items := make([]historyItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, historyItem{
			ID:          d.ID,
			URL:         d.URL,
			Title:       d.Title,
			ThreatScore: d.ThreatScore,
			RiskLevel:   d.RiskLevel,
			Category:    d.Category,
			Timestamp:   d.Timestamp,
			Status:      d.Status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": items})
}

type historyDetail struct {
	ID string `json:"id"`
	scan.Summary
}

func (h *Handler) historyEntry(c *gin.Context) {
	doc, err := h.scanner.HistoryEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, historyDetail{ID: doc.ID, Summary: scan.Summarize(doc)})
}

func (h *Handler) alerts(c *gin.Context) {
	alerts, err := h.scanner.Alerts(c.Request.Context(), parseLimit(c, defaultListLimit))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (h *Handler) acknowledge(c *gin.Context) {
	alert, err := h.scanner.Acknowledge(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert acknowledged", "alert": alert})
}

type createMonitorRequest struct {
	URL      string `json:"url" binding:"required"`
	Interval int    `json:"interval"`
}

type lastScanData struct {
	ThreatScore    int               `json:"threat_score"`
	Status         model.FetchStatus `json:"status"`
	RiskLevel      model.RiskLevel   `json:"risk_level"`
	Category       string            `json:"category"`
	EmailsCount    int               `json:"emails_count"`
	CryptoCount    int               `json:"crypto_count"`
	FilesCount     int               `json:"files_count"`
	ClamAVDetected bool              `json:"clamav_detected"`
}

type monitorResponse struct {
	*model.Monitor
	Paused       bool          `json:"paused"`
	NextCheck    *time.Time    `json:"next_check,omitempty"`
	LastScanData *lastScanData `json:"last_scan_data,omitempty"`
}

func (h *Handler) monitorView(ctx context.Context, m *model.Monitor) monitorResponse {
	resp := monitorResponse{
		Monitor: m,
		Paused:  m.Status == model.MonitorPaused,
	}
	if next, ok := h.monitors.NextRun(m.ID); ok {
		resp.NextCheck = &next
	}
	doc, err := h.backend.LatestScan(ctx, m.URL)
	if err != nil {
		h.logger.Warn("failed to load last scan for monitor", "monitor_id", m.ID, "error", err)
		return resp
	}
	if doc != nil {
		resp.LastScanData = &lastScanData{
			ThreatScore:    doc.ThreatScore,
			Status:         doc.Status,
			RiskLevel:      doc.RiskLevel,
			Category:       doc.Category,
			EmailsCount:    len(doc.Emails),
			CryptoCount:    len(doc.CryptoAddresses),
			FilesCount:     len(doc.FileAnalysis),
			ClamAVDetected: doc.ClamAVDetected,
		}
	}
	return resp
}

func (h *Handler) listMonitors(c *gin.Context) {
	ms, err := h.monitors.List(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	views := make([]monitorResponse, 0, len(ms))
	for _, m := range ms {
		views = append(views, h.monitorView(c.Request.Context(), m))
	}
	c.JSON(http.StatusOK, gin.H{"monitors": views})
}

func (h *Handler) createMonitor(c *gin.Context) {
	var req createMonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "request body must be JSON with a url field")
		return
	}
	if req.Interval == 0 {
		req.Interval = h.defaultInterval
	}
	m, err := h.monitors.Create(c.Request.Context(), req.URL, req.Interval)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"monitor_id": m.ID,
		"url":        m.URL,
		"interval":   m.Interval,
		"message":    "Monitor created",
	})
}

func (h *Handler) getMonitor(c *gin.Context) {
	m, err := h.monitors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, h.monitorView(c.Request.Context(), m))
}

func (h *Handler) removeMonitor(c *gin.Context) {
	if _, err := h.monitors.Remove(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Monitor deleted"})
}

func (h *Handler) removeAllMonitors(c *gin.Context) {
	n, err := h.monitors.RemoveAll(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All monitors deleted", "count": n})
}

func (h *Handler) pauseMonitor(c *gin.Context) {
	if _, err := h.monitors.Pause(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Monitor paused"})
}

func (h *Handler) resumeMonitor(c *gin.Context) {
	if _, err := h.monitors.Resume(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Monitor resumed"})
}
