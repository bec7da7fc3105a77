package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-tensorsim/internal/arrowexport"
	"github.com/23skdu/longbow-tensorsim/internal/config"
	"github.com/23skdu/longbow-tensorsim/internal/gemm"
	"github.com/23skdu/longbow-tensorsim/internal/gpu"
	"github.com/23skdu/longbow-tensorsim/internal/logger"
	"github.com/23skdu/longbow-tensorsim/internal/matrix"
	"github.com/23skdu/longbow-tensorsim/internal/mma"
	"github.com/23skdu/longbow-tensorsim/internal/monitoring"
	"github.com/23skdu/longbow-tensorsim/internal/precision"
	"github.com/23skdu/longbow-tensorsim/internal/reduction"
	"github.com/23skdu/longbow-tensorsim/internal/transformer"
)

// Sink stream names.
const (
	streamResult = "result"
	streamStages = "stages"
)

type runner struct {
	cfg config.Config
	out io.Writer
	src matrix.Source
	// monitor is nil unless the metrics server is enabled.
	monitor *monitoring.HealthMonitor
	// sink collects Arrow records until flush.
	sink *arrowexport.Sink
	mem  memory.Allocator
}

func newRunner(cfg config.Config, out io.Writer) *runner {
	return &runner{
		cfg:  cfg,
		out:  out,
		src:  cfg.Source(),
		sink: arrowexport.NewSink(),
		mem:  memory.NewGoAllocator(),
	}
}

func (r *runner) run(ctx context.Context) error {
	steps := []struct {
		panel config.Panel
		fn    func(context.Context) error
	}{
		{config.PanelMMA, r.runMMA},
		{config.PanelTree, r.runTree},
		{config.PanelGEMM, r.runGEMM},
		{config.PanelGPU, r.runGPU},
		{config.PanelTransformer, r.runTransformer},
	}
	for _, s := range steps {
		if !r.cfg.Panel.Includes(s.panel) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "\n== %s ==\n", strings.ToUpper(s.panel.String()))
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.panel, err)
		}
	}
	return r.flush()
}

// flush writes the collected Arrow streams to their configured files and
// empties the sink. Streams without a path are dropped.
func (r *runner) flush() error {
	defer r.sink.Reset()
	paths := map[string]string{
		streamResult: r.cfg.ArrowOut,
		streamStages: r.cfg.ArrowStagesOut,
	}
	for _, name := range r.sink.Names() {
		path := paths[name]
		if path == "" {
			logger.Log.Debug("Arrow stream not written", "stream", name)
			continue
		}
		if err := r.sink.FlushFile(path, name, r.mem); err != nil {
			return err
		}
		logger.Log.Info("Wrote Arrow stream", "stream", name, "path", path, "rows", r.sink.Rows(name))
	}
	return nil
}

func (r *runner) runMMA(ctx context.Context) error {
	start := time.Now()
	res, err := mma.NewSimulator(r.src).Run(r.cfg.MMAParams())
	if err != nil {
		return err
	}
	if r.monitor != nil {
		nans, infs := res.Output.CountNonFinite()
		r.monitor.RecordRun(monitoring.RunSummary{
			Fill:        r.cfg.FillMode().String(),
			N:           res.Output.N(),
			Duration:    time.Since(start),
			MaxAbsError: res.MaxAbsoluteError,
			Flops:       res.Flops,
			NaNs:        nans,
			Infs:        infs,
		})
	}

	stages := res.Stages
	if res.Output.N() > 0 {
		row, col := r.cfg.Cell()
		in := mma.Inputs{A: res.InputA, B: res.InputB, C: res.Accumulator}
		if stages, err = mma.TraceCell(in, row, col); err != nil {
			return err
		}
	}
	if err := r.replay(ctx, stages); err != nil {
		return err
	}

	printMatrix(r.out, "A (FP16)", res.InputA)
	printMatrix(r.out, "B (FP16)", res.InputB)
	printMatrix(r.out, "C (FP32)", res.Accumulator)
	printMatrix(r.out, "D (FP32)", res.Output)

	tp := res.Throughput
	fmt.Fprintf(r.out, "Max error vs FP32 reference: %.3e\n", res.MaxAbsoluteError)
	fmt.Fprintf(r.out, "FLOPs/op %d · total %d · tensor cycles %d · scalar cycles %d · %.0f× speedup\n",
		tp.FlopsPerOp, tp.TotalFlops, tp.TensorCycles, tp.ScalarCycles, tp.Speedup)
	fmt.Fprintln(r.out, res.Warp.Status())

	r.collect(streamResult, arrowexport.ResultRecord(r.mem, res))
	if len(stages) > 0 {
		r.collect(streamStages, arrowexport.StagesRecord(r.mem, stages))
	}
	return nil
}

func (r *runner) collect(stream string, rec arrow.Record) {
	r.sink.Put(stream, rec)
	rec.Release()
}

// replay prints the pipeline one stage per tick.
func (r *runner) replay(ctx context.Context, snaps []mma.Snapshot) error {
	cur := mma.NewCursor(snaps)
	if r.cfg.StageDelay <= 0 {
		for snap, ok := cur.Advance(); ok; snap, ok = cur.Advance() {
			fmt.Fprintln(r.out, snap)
		}
		return nil
	}

	ticker := time.NewTicker(r.cfg.StageDelay)
	defer ticker.Stop()
	for !cur.Done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snap, _ := cur.Advance()
			fmt.Fprintln(r.out, snap)
		}
	}
	return nil
}

func (r *runner) runTree(context.Context) error {
	leaves := reduction.RandomLeaves(r.cfg.TreeInputs, r.cfg.TreeBits, r.src)
	tree, err := reduction.Build(leaves, r.cfg.TreeBits, reduction.RandomCarry(r.src))
	if err != nil {
		return err
	}
	for i, lvl := range tree.Levels {
		vals := make([]string, len(lvl))
		for j, n := range lvl {
			vals[j] = fmt.Sprintf("%d(%db)", n.Value, n.Bits)
		}
		fmt.Fprintf(r.out, "L%d: %s\n", i, strings.Join(vals, " "))
	}
	fmt.Fprintln(r.out, tree.Stats)
	if tree.Overflow {
		fmt.Fprintf(r.out, "accumulator overflowed %d bits, kept %d\n", reduction.AccumulatorBits, tree.Accumulator().Value)
	}
	edges := tree.Edges()
	fires := make([]string, len(edges))
	for i, e := range edges {
		fires[i] = e.From + "→" + e.To
	}
	fmt.Fprintf(r.out, "firing order: %s\n", strings.Join(fires, " "))
	for _, p := range reduction.DepthCurve(reduction.DefaultCurveInputs) {
		fmt.Fprintf(r.out, "N=%-4d tree %d vs serial %d\n", p.Inputs, p.TreeDepth, p.Sequential)
	}
	return nil
}

func (r *runner) runGEMM(ctx context.Context) error {
	size := r.cfg.GEMMSize
	raw, err := matrix.GenerateRaw(matrix.FillRandom, size, r.src)
	if err != nil {
		return err
	}
	b, err := matrix.Generate(matrix.FillRandom, size, r.src)
	if err != nil {
		return err
	}
	res, err := gemm.Multiply(raw.Cast16(), raw, b)
	if err != nil {
		return err
	}
	s := res.Schedule
	fmt.Fprintf(r.out, "%d×%d×%d GEMM = %d FLOPs in %d MMA ops (max tile error %.3e)\n",
		s.Size, s.Size, s.Size, s.TotalFlops, s.TotalTiles, res.MaxAbsoluteError)

	truncated := 0
	for _, v := range raw.Data() {
		if !precision.IsExact(v) {
			truncated++
		}
	}
	fmt.Fprintf(r.out, "FP16 cast changed %d of %d A cells\n", truncated, size*size)

	tiles := s.Tiles()
	for _, t := range tiles[:min(len(tiles), 4)] {
		fmt.Fprintf(r.out, "  MMA %d/%d %s %3.0f%%\n", t.Index, s.TotalTiles, t, 100*s.Progress(t))
	}

	a4 := gemm.RandomOperand(matrix.DefaultSize, r.src)
	b4 := gemm.RandomOperand(matrix.DefaultSize, r.src)
	dot, err := gemm.Explain(a4, b4, 0, 0)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, dot)
	for _, p := range gemm.ScaleCurve([]int{4, 8, 16, 32, 64, 128}) {
		fmt.Fprintf(r.out, "%d³: %d multipliers, %d FMAs\n", p.Dim, p.Multipliers, p.FMAs)
	}
	return ctx.Err()
}

func (r *runner) runGPU(context.Context) error {
	spec, err := gpu.LookupSpec(r.cfg.GPUModel())
	if err != nil {
		return err
	}
	die := gpu.BuildDie(spec, r.cfg.SMUtilization())
	fmt.Fprintln(r.out, die.Summary())
	fmt.Fprintf(r.out, "per SM: %.0f GFLOPS, %d warp slots shown\n", spec.SMGFLOPS(), gpu.WarpsPerSMShown)

	for _, c := range gpu.CompareModels() {
		fmt.Fprintf(r.out, "%-5s tensor %6.0f TF · FP32 CUDA %5.1f TF\n", c.Name, c.TensorTFLOPS, c.FP32TFLOPS)
	}
	for _, o := range gpu.Occupancy(gpu.DefaultOccupancyWarps) {
		fmt.Fprintf(r.out, "%2d warps: %3.0f%% throughput, %3.0f%% idle\n", o.Warps, o.ThroughputPct, o.IdlePct)
	}

	node, err := gpu.ParseNode(r.cfg.ProcessNode)
	if err != nil {
		return err
	}
	area, ok := gpu.AreaBreakdown(r.cfg.MMASize, node)
	if !ok {
		fmt.Fprintf(r.out, "no area data for %d×%d at %dnm, using default split\n", r.cfg.MMASize, r.cfg.MMASize, node)
	}
	fmt.Fprintln(r.out, area)
	for _, p := range gpu.RoutingCurve([]int{r.cfg.MMASize}) {
		fmt.Fprintln(r.out, p)
	}
	return nil
}

func (r *runner) runTransformer(context.Context) error {
	p, err := transformer.LookupPreset(r.cfg.Model)
	if err != nil {
		return err
	}
	est, err := transformer.EstimateTime(p, int64(r.cfg.SeqLen), r.cfg.GPUModel())
	if err != nil {
		return err
	}
	for _, c := range transformer.Components() {
		fmt.Fprintf(r.out, "%-14s %s\n", c, transformer.FormatSI(float64(est.Flops[c]), 1))
	}
	fmt.Fprintln(r.out, est)

	roof := transformer.H100Roofline
	for _, pt := range roof.Curve(transformer.DefaultIntensities) {
		fmt.Fprintf(r.out, "%6g FLOPs/B → %s GFLOPS\n", pt.Intensity, transformer.FormatSI(pt.Attainable, 1))
	}
	return nil
}

func printMatrix(w io.Writer, name string, m matrix.Matrix) {
	fmt.Fprintf(w, "%s\n", name)
	for _, row := range m.Rows() {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf("%7.2f", v)
		}
		fmt.Fprintln(w, strings.Join(cells, " "))
	}
}
