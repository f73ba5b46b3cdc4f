package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fil0s/virtuoso-gem-finder/internal/alerting"
	"github.com/fil0s/virtuoso-gem-finder/internal/curve"
	"github.com/fil0s/virtuoso-gem-finder/internal/resilience"
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// ReportBuffer keeps the latest cycle reports in memory for the API.
type ReportBuffer struct {
	mu      sync.Mutex
	reports []models.CycleReport
	max     int
}

func NewReportBuffer(max int) *ReportBuffer {
	if max <= 0 {
		max = 50
	}
	return &ReportBuffer{max: max}
}

func (b *ReportBuffer) Add(r models.CycleReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reports = append(b.reports, r)
	if len(b.reports) > b.max {
		b.reports = b.reports[len(b.reports)-b.max:]
	}
}

func (b *ReportBuffer) Latest() (models.CycleReport, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.reports) == 0 {
		return models.CycleReport{}, false
	}
	return b.reports[len(b.reports)-1], true
}

func (b *ReportBuffer) History(n int) []models.CycleReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.reports) {
		n = len(b.reports)
	}
	out := make([]models.CycleReport, n)
	for i := 0; i < n; i++ {
		out[i] = b.reports[len(b.reports)-1-i]
	}
	return out
}

type Handler struct {
	wsHub   *Hub
	alerts  *alerting.Manager
	ledger  *resilience.CostLedger
	breaker *resilience.CircuitBreaker
	tracker *curve.Tracker
	reports *ReportBuffer
}

// SetupRouter wires the detector's read API: health, cycle reports,
// finalists, ledger/breaker state, recent alerts, the graduation
// watchlist, the websocket stream, and prometheus metrics.
func SetupRouter(
	wsHub *Hub,
	alerts *alerting.Manager,
	ledger *resilience.CostLedger,
	breaker *resilience.CircuitBreaker,
	tracker *curve.Tracker,
	reports *ReportBuffer,
	promRegistry *prometheus.Registry,
) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	h := &Handler{
		wsHub:   wsHub,
		alerts:  alerts,
		ledger:  ledger,
		breaker: breaker,
		tracker: tracker,
		reports: reports,
	}

	pub := r.Group("/api/v1")
	pub.Use(NewRateLimiter(60, 10).Middleware())
	{
		pub.GET("/health", h.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
		pub.GET("/cycles/latest", h.handleLatestCycle)
		pub.GET("/cycles", h.handleCycleHistory)
		pub.GET("/finalists", h.handleFinalists)
		pub.GET("/alerts", h.handleRecentAlerts)
		pub.GET("/ledger", h.handleLedger)
		pub.GET("/breaker", h.handleBreaker)
		pub.GET("/watchlist", h.handleWatchlist)
	}

	// Mutating endpoints sit behind bearer auth
	protected := r.Group("/api/v1")
	protected.Use(AuthMiddleware())
	{
		protected.POST("/webhooks", h.handleRegisterWebhook)
	}

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	return r
}

type registerWebhookRequest struct {
	Name          string            `json:"name" binding:"required"`
	URL           string            `json:"url" binding:"required,url"`
	MinConviction string            `json:"minConviction"`
	Headers       map[string]string `json:"headers"`
}

func (h *Handler) handleRegisterWebhook(c *gin.Context) {
	var req registerWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	minConviction := models.ConvictionLevel(req.MinConviction)
	if minConviction == "" {
		minConviction = models.ConvictionModerate
	}
	h.alerts.RegisterWebhook(req.Name, req.URL, minConviction, req.Headers)
	c.JSON(http.StatusCreated, gin.H{"status": "registered", "name": req.Name})
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"breaker": h.breaker.Snapshot().State,
	})
}

func (h *Handler) handleLatestCycle(c *gin.Context) {
	report, ok := h.reports.Latest()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycle has completed yet"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) handleCycleHistory(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("n", "10"))
	if err != nil || n < 1 || n > 50 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "n must be an integer in [1,50]"})
		return
	}
	c.JSON(http.StatusOK, h.reports.History(n))
}

func (h *Handler) handleFinalists(c *gin.Context) {
	report, ok := h.reports.Latest()
	if !ok {
		c.JSON(http.StatusOK, []models.Finalist{})
		return
	}
	c.JSON(http.StatusOK, report.Finalists)
}

func (h *Handler) handleRecentAlerts(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("n", "20"))
	if err != nil || n < 1 || n > 200 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "n must be an integer in [1,200]"})
		return
	}
	c.JSON(http.StatusOK, h.alerts.Recent(n))
}

func (h *Handler) handleLedger(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.Snapshot())
}

func (h *Handler) handleBreaker(c *gin.Context) {
	c.JSON(http.StatusOK, h.breaker.Snapshot())
}

func (h *Handler) handleWatchlist(c *gin.Context) {
	mints := h.tracker.Watchlist()
	out := make([]gin.H, 0, len(mints))
	for _, mint := range mints {
		out = append(out, gin.H{
			"mint":     mint,
			"forecast": h.tracker.Forecast(mint),
		})
	}
	c.JSON(http.StatusOK, out)
}
