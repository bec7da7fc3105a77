package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"runtime"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/23skdu/longbow-tensorsim/internal/logger"
	"github.com/23skdu/longbow-tensorsim/internal/metrics"
)

// Alert levels, mildest first.
const (
	LevelWarning  = "warning"
	LevelError    = "error"
	LevelCritical = "critical"
)

const (
	maxAlerts  = 100
	maxHistory = 1000
)

// DefaultErrorThreshold is the FP16 error above which a run raises a
// warning.
const DefaultErrorThreshold = 0.5

// HealthStatus is the /status payload.
type HealthStatus struct {
	Status      string          `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
	Uptime      time.Duration   `json:"uptime"`
	System      SystemInfo      `json:"system"`
	Simulation  SimulationInfo  `json:"simulation"`
	Performance PerformanceInfo `json:"performance"`
	Alerts      []Alert         `json:"alerts"`
}

type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Arch         string `json:"arch"`
	NumCPU       int    `json:"num_cpu"`
	MemoryUsedMB int    `json:"memory_used_mb"`
}

// SimulationInfo describes the runs seen so far. LastMaxAbsError is nil
// when the last run's error was NaN or Inf.
type SimulationInfo struct {
	Runs            int64     `json:"runs"`
	LastFill        string    `json:"last_fill"`
	LastSize        int       `json:"last_size"`
	LastMaxAbsError *float64  `json:"last_max_abs_error,omitempty"`
	NonFiniteCells  int       `json:"non_finite_cells"`
	LastRun         time.Time `json:"last_run"`
}

type PerformanceInfo struct {
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	P95LatencyMs float64 `json:"p95_latency_ms"`
	FlopsPerSec  float64 `json:"simulated_flops_per_sec"`
}

type Alert struct {
	Level      string     `json:"level"`
	Component  string     `json:"component"`
	Message    string     `json:"message"`
	Timestamp  time.Time  `json:"timestamp"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// RunSummary is what the monitor keeps from one simulation.
type RunSummary struct {
	Fill        string
	N           int
	Duration    time.Duration
	MaxAbsError float64
	Flops       int64
	NaNs        int
	Infs        int
}

// HealthMonitor tracks simulation runs and serves health, status and
// Prometheus endpoints.
type HealthMonitor struct {
	startTime time.Time
	threshold float64
	server    *http.Server
	log       *logger.Logger

	mu        sync.RWMutex
	stopped   bool
	alerts    []Alert
	history   []RunSummary
	runs      int64
	last      RunSummary
	lastRun   time.Time
	nonFinite int
}

// NewHealthMonitor returns a monitor that warns when a run's error exceeds
// threshold. A non-positive threshold uses DefaultErrorThreshold.
func NewHealthMonitor(threshold float64) *HealthMonitor {
	if threshold <= 0 {
		threshold = DefaultErrorThreshold
	}
	return &HealthMonitor{
		startTime: time.Now(),
		threshold: threshold,
		log:       logger.Log.With("monitoring"),
	}
}

// Handler exposes /health, /healthz, /status, /metrics and the alert admin
// endpoints.
func (hm *HealthMonitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", hm.handleHealth)
	mux.HandleFunc("/healthz", hm.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", hm.handleDetailedStatus)
	mux.HandleFunc("/admin/alerts", hm.handleAlerts)
	mux.HandleFunc("/admin/resolve-alert", hm.handleResolveAlert)
	mux.HandleFunc("/admin/clear-alerts", hm.handleClearAlerts)
	return mux
}

// Start serves Handler on addr until Stop. It returns http.ErrServerClosed
// once stopped, including when Stop ran first.
func (hm *HealthMonitor) Start(addr string) error {
	hm.mu.Lock()
	if hm.stopped {
		hm.mu.Unlock()
		return http.ErrServerClosed
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      hm.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	hm.server = srv
	hm.mu.Unlock()

	hm.log.Info("Health monitor starting", "addr", addr)
	return srv.ListenAndServe()
}

func (hm *HealthMonitor) Stop(ctx context.Context) error {
	hm.mu.Lock()
	hm.stopped = true
	srv := hm.server
	hm.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// RecordRun stores a finished simulation and raises alerts for
// non-finite output or excessive error.
func (hm *HealthMonitor) RecordRun(s RunSummary) {
	hm.mu.Lock()
	hm.last = s
	hm.lastRun = time.Now()
	hm.runs++
	hm.nonFinite += s.NaNs + s.Infs
	hm.history = append(hm.history, s)
	if len(hm.history) > maxHistory {
		hm.history = hm.history[1:]
	}
	hm.mu.Unlock()

	if s.NaNs+s.Infs > 0 {
		hm.AddAlert(LevelError, "numerics",
			fmt.Sprintf("%d NaN and %d Inf cells in %d×%d output", s.NaNs, s.Infs, s.N, s.N))
	}
	if s.MaxAbsError > hm.threshold {
		hm.AddAlert(LevelWarning, "numerics",
			fmt.Sprintf("max abs error %.3e above %.3e (%s fill)", s.MaxAbsError, hm.threshold, s.Fill))
	}
}

func (hm *HealthMonitor) AddAlert(level, component, message string) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.alerts = append(hm.alerts, Alert{
		Level:     level,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
	})
	if len(hm.alerts) > maxAlerts {
		hm.alerts = hm.alerts[1:]
	}
	metrics.RecordAlert(component, level)
	hm.log.Warn("Alert raised", "level", level, "component", component, "message", message)
}

// ResolveAlert marks the alert at index resolved. It reports false when
// index is out of range.
func (hm *HealthMonitor) ResolveAlert(index int) bool {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	if index < 0 || index >= len(hm.alerts) {
		return false
	}
	now := time.Now()
	hm.alerts[index].Resolved = true
	hm.alerts[index].ResolvedAt = &now
	return true
}

// Status computes the current health snapshot.
func (hm *HealthMonitor) Status() HealthStatus {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	status := "healthy"
	for _, a := range hm.alerts {
		if a.Resolved {
			continue
		}
		if a.Level == LevelCritical {
			status = "critical"
			break
		}
		if a.Level == LevelError {
			status = "degraded"
		}
	}

	alerts := make([]Alert, len(hm.alerts))
	copy(alerts, hm.alerts)

	var lastErr *float64
	if e := hm.last.MaxAbsError; !math.IsNaN(e) && !math.IsInf(e, 0) {
		lastErr = &e
	}

	return HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Uptime:    time.Since(hm.startTime),
		System:    systemInfo(),
		Simulation: SimulationInfo{
			Runs:            hm.runs,
			LastFill:        hm.last.Fill,
			LastSize:        hm.last.N,
			LastMaxAbsError: lastErr,
			NonFiniteCells:  hm.nonFinite,
			LastRun:         hm.lastRun,
		},
		Performance: performance(hm.history),
		Alerts:      alerts,
	}
}

func (hm *HealthMonitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := hm.Status()
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	hm.writeJSON(w, code, map[string]string{
		"status":    status.Status,
		"timestamp": status.Timestamp.Format(time.RFC3339),
	})
}

func (hm *HealthMonitor) handleDetailedStatus(w http.ResponseWriter, r *http.Request) {
	hm.writeJSON(w, http.StatusOK, hm.Status())
}

func (hm *HealthMonitor) handleAlerts(w http.ResponseWriter, r *http.Request) {
	hm.mu.RLock()
	alerts := make([]Alert, len(hm.alerts))
	copy(alerts, hm.alerts)
	hm.mu.RUnlock()

	hm.writeJSON(w, http.StatusOK, alerts)
}

func (hm *HealthMonitor) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		http.Error(w, "invalid alert index", http.StatusBadRequest)
		return
	}
	if !hm.ResolveAlert(index) {
		http.Error(w, fmt.Sprintf("no alert at index %d", index), http.StatusNotFound)
		return
	}
	hm.writeJSON(w, http.StatusOK, map[string]string{"message": "alert resolved"})
}

// writeJSON marshals v before writing headers; encoding failures become a 500.
func (hm *HealthMonitor) writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		hm.log.Error("Failed to encode response", "error", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(append(body, '\n'))
}

func (hm *HealthMonitor) handleClearAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	hm.mu.Lock()
	hm.alerts = hm.alerts[:0]
	hm.mu.Unlock()

	hm.writeJSON(w, http.StatusOK, map[string]string{"message": "alerts cleared"})
}

func systemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return SystemInfo{
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
		MemoryUsedMB: int(m.Alloc / 1024 / 1024),
	}
}

func performance(history []RunSummary) PerformanceInfo {
	if len(history) == 0 {
		return PerformanceInfo{}
	}
	var total time.Duration
	var flops int64
	latencies := make([]float64, len(history))
	for i, h := range history {
		total += h.Duration
		flops += h.Flops
		latencies[i] = float64(h.Duration.Nanoseconds()) / 1e6
	}
	slices.Sort(latencies)
	p95 := min(int(float64(len(latencies))*0.95), len(latencies)-1)

	info := PerformanceInfo{
		AvgLatencyMs: float64(total.Nanoseconds()) / float64(len(history)) / 1e6,
		P95LatencyMs: latencies[p95],
	}
	if total > 0 {
		info.FlopsPerSec = float64(flops) / total.Seconds()
	}
	return info
}
