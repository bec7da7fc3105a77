package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var totalRuns atomic.Int64

var (
	SimulationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mma_simulation_runs_total",
		Help: "Total number of MMA simulation runs by fill mode",
	}, []string{"fill"})

	SimulationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mma_simulation_duration_seconds",
		Help:    "Wall time of one MMA simulation run",
		Buckets: []float64{1e-6, 1e-5, 1e-4, 1e-3, 1e-2, 1e-1},
	})

	MaxAbsError = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mma_max_abs_error",
		Help:    "Maximum absolute error of the FP16 path against the FP32 reference",
		Buckets: []float64{0, 1e-6, 1e-5, 1e-4, 1e-3, 1e-2, 1e-1, 1},
	}, []string{"fill"})

	SimulatedFlopsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mma_simulated_flops_total",
		Help: "Total FLOPs accounted by the throughput model",
	})

	SimulatedOpsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mma_simulated_ops_total",
		Help: "Total tensor-core MMA ops accounted by the throughput model",
	})

	MatrixSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mma_matrix_size",
		Help:    "Edge length of simulated MMA operands",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
	})

	NumericalInstability = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "numerical_instability_total",
		Help: "Total number of NaN/Inf values detected",
	}, []string{"tensor", "type"})

	ValidationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_errors_total",
		Help: "Total number of validation errors",
	}, []string{"operation", "error_type"})

	GEMMTilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gemm_tiles_total",
		Help: "Total number of GEMM tiles executed through the MMA engine",
	})

	GEMMDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gemm_duration_seconds",
		Help:    "Wall time of a tiled GEMM",
		Buckets: prometheus.DefBuckets,
	})

	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "health_alerts_total",
		Help: "Total number of health alerts raised",
	}, []string{"component", "level"})

	ReductionTreeDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reduction_tree_depth",
		Help:    "Depth of built adder reduction trees",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8},
	})
)

// RecordSimulation accounts one finished MMA run.
func RecordSimulation(fill string, n int, duration time.Duration, maxAbsErr float64, ops int, flops int64) {
	totalRuns.Add(1)
	SimulationRunsTotal.WithLabelValues(fill).Inc()
	SimulationDuration.Observe(duration.Seconds())
	MaxAbsError.WithLabelValues(fill).Observe(maxAbsErr)
	SimulatedOpsTotal.Add(float64(ops))
	SimulatedFlopsTotal.Add(float64(flops))
	MatrixSize.Observe(float64(n))
}

func RecordNumericalInstability(name string, nanCount, infCount int) {
	if nanCount > 0 {
		NumericalInstability.WithLabelValues(name, "nan").Add(float64(nanCount))
	}
	if infCount > 0 {
		NumericalInstability.WithLabelValues(name, "inf").Add(float64(infCount))
	}
}

func RecordValidationError(operation, errorType string) {
	ValidationErrors.WithLabelValues(operation, errorType).Inc()
}

func RecordAlert(component, level string) {
	AlertsTotal.WithLabelValues(component, level).Inc()
}

func RecordGEMM(tiles int, duration time.Duration) {
	GEMMTilesTotal.Add(float64(tiles))
	GEMMDuration.Observe(duration.Seconds())
}

func RecordReductionTree(depth int) {
	ReductionTreeDepth.Observe(float64(depth))
}

// TotalRuns returns the number of simulations recorded by this process.
func TotalRuns() int64 {
	return totalRuns.Load()
}
