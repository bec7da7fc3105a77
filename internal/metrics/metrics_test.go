package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSimulation(t *testing.T) {
	runs := testutil.ToFloat64(SimulationRunsTotal.WithLabelValues("identity"))
	flops := testutil.ToFloat64(SimulatedFlopsTotal)
	ops := testutil.ToFloat64(SimulatedOpsTotal)
	total := TotalRuns()

	RecordSimulation("identity", 4, 20*time.Microsecond, 0, 10, 1280)

	if got := testutil.ToFloat64(SimulationRunsTotal.WithLabelValues("identity")); got != runs+1 {
		t.Errorf("runs counter = %v, want %v", got, runs+1)
	}
	if got := testutil.ToFloat64(SimulatedFlopsTotal); got != flops+1280 {
		t.Errorf("flops counter = %v, want %v", got, flops+1280)
	}
	if got := testutil.ToFloat64(SimulatedOpsTotal); got != ops+10 {
		t.Errorf("ops counter = %v, want %v", got, ops+10)
	}
	if TotalRuns() != total+1 {
		t.Errorf("expected TotalRuns to increment by 1, got %d -> %d", total, TotalRuns())
	}
}

func TestRecordNumericalInstability(t *testing.T) {
	nan := testutil.ToFloat64(NumericalInstability.WithLabelValues("D", "nan"))
	inf := testutil.ToFloat64(NumericalInstability.WithLabelValues("D", "inf"))

	RecordNumericalInstability("D", 5, 0)
	RecordNumericalInstability("D", 0, 3)
	RecordNumericalInstability("D", 0, 0)

	if got := testutil.ToFloat64(NumericalInstability.WithLabelValues("D", "nan")); got != nan+5 {
		t.Errorf("nan counter = %v, want %v", got, nan+5)
	}
	if got := testutil.ToFloat64(NumericalInstability.WithLabelValues("D", "inf")); got != inf+3 {
		t.Errorf("inf counter = %v, want %v", got, inf+3)
	}
}

func TestRecordValidationError(t *testing.T) {
	before := testutil.ToFloat64(ValidationErrors.WithLabelValues("evaluate", "shape_mismatch"))
	RecordValidationError("evaluate", "shape_mismatch")
	if got := testutil.ToFloat64(ValidationErrors.WithLabelValues("evaluate", "shape_mismatch")); got != before+1 {
		t.Errorf("validation counter = %v, want %v", got, before+1)
	}
}

func TestRecordAlert(t *testing.T) {
	before := testutil.ToFloat64(AlertsTotal.WithLabelValues("numerics", "warning"))
	RecordAlert("numerics", "warning")
	if got := testutil.ToFloat64(AlertsTotal.WithLabelValues("numerics", "warning")); got != before+1 {
		t.Errorf("alert counter = %v, want %v", got, before+1)
	}
}

func TestRecordGEMM(t *testing.T) {
	before := testutil.ToFloat64(GEMMTilesTotal)
	RecordGEMM(64, 2*time.Millisecond)
	if got := testutil.ToFloat64(GEMMTilesTotal); got != before+64 {
		t.Errorf("tiles counter = %v, want %v", got, before+64)
	}
}

func TestHistogramsCollect(t *testing.T) {
	RecordReductionTree(3)
	if n := testutil.CollectAndCount(ReductionTreeDepth); n != 1 {
		t.Errorf("expected 1 reduction tree metric, got %d", n)
	}
	if n := testutil.CollectAndCount(SimulationDuration); n != 1 {
		t.Errorf("expected 1 duration metric, got %d", n)
	}
}
