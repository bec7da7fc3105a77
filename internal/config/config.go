package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/23skdu/longbow-tensorsim/internal/gemm"
	"github.com/23skdu/longbow-tensorsim/internal/gpu"
	"github.com/23skdu/longbow-tensorsim/internal/matrix"
	"github.com/23skdu/longbow-tensorsim/internal/mma"
	"github.com/23skdu/longbow-tensorsim/internal/reduction"
	"github.com/23skdu/longbow-tensorsim/internal/transformer"
)

type Panel int

const (
	PanelAll Panel = iota
	PanelMMA
	PanelTree
	PanelGEMM
	PanelGPU
	PanelTransformer
)

var panelNames = map[Panel]string{
	PanelAll:         "all",
	PanelMMA:         "mma",
	PanelTree:        "tree",
	PanelGEMM:        "gemm",
	PanelGPU:         "gpu",
	PanelTransformer: "transformer",
}

func (p Panel) String() string {
	if s, ok := panelNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Panel(%d)", int(p))
}

func ParsePanel(s string) (Panel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range panelNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("invalid panel: %q", s)
}

// Includes reports whether running p should run other.
func (p Panel) Includes(other Panel) bool {
	return p == PanelAll || p == other
}

type Config struct {
	Panel Panel

	// MMA engine
	N                int
	Fill             string
	NumOps           int
	WarpUtil         int
	AccumulatorScale float64
	// Seed of 0 draws from the process-wide source.
	Seed       uint64
	StageDelay time.Duration
	// TraceCell is the output cell replayed through the stages, "row,col".
	TraceCell string

	TreeInputs int
	TreeBits   int

	GEMMSize int

	GPU         string
	SMUtil      int
	MMASize     int
	ProcessNode string

	Model  string
	SeqLen int

	LogLevel    string
	LogFormat   string
	MetricsAddr string
	// ArrowOut and ArrowStagesOut are IPC stream paths; empty skips the write.
	ArrowOut       string
	ArrowStagesOut string
	// Inspect names an Arrow stream to summarize instead of simulating.
	Inspect string
}

func (c *Config) Validate() error {
	if c.N < 0 {
		return fmt.Errorf("invalid n: %d (must be non-negative)", c.N)
	}
	if _, err := matrix.ParseFillMode(c.Fill); err != nil {
		return fmt.Errorf("invalid fill: %w", err)
	}
	if c.NumOps < 0 {
		return fmt.Errorf("invalid num_ops: %d (must be non-negative)", c.NumOps)
	}
	if c.WarpUtil < 0 || c.WarpUtil > 100 {
		return fmt.Errorf("invalid warp_util: %d (must be 0-100)", c.WarpUtil)
	}
	if c.StageDelay < 0 {
		return fmt.Errorf("invalid stage_delay: %s (must be non-negative)", c.StageDelay)
	}
	row, col, err := parseCell(c.TraceCell)
	if err != nil {
		return fmt.Errorf("invalid trace_cell: %w", err)
	}
	if c.N > 0 && (row >= c.N || col >= c.N) {
		return fmt.Errorf("invalid trace_cell: %q (must lie inside %dx%d)", c.TraceCell, c.N, c.N)
	}
	if c.TreeInputs <= 0 {
		return fmt.Errorf("invalid tree_inputs: %d (must be positive)", c.TreeInputs)
	}
	if c.TreeBits <= 0 || c.TreeBits > reduction.MaxLeafBits {
		return fmt.Errorf("invalid tree_bits: %d (must be 1-%d)", c.TreeBits, reduction.MaxLeafBits)
	}
	if c.GEMMSize <= 0 || c.GEMMSize%gemm.TileSize != 0 {
		return fmt.Errorf("invalid gemm_size: %d (must be a positive multiple of %d)", c.GEMMSize, gemm.TileSize)
	}
	if _, err := gpu.ParseModel(c.GPU); err != nil {
		return fmt.Errorf("invalid gpu: %w", err)
	}
	if c.SMUtil < 0 || c.SMUtil > 100 {
		return fmt.Errorf("invalid sm_util: %d (must be 0-100)", c.SMUtil)
	}
	if c.MMASize <= 0 {
		return fmt.Errorf("invalid mma_size: %d (must be positive)", c.MMASize)
	}
	if _, err := gpu.ParseNode(c.ProcessNode); err != nil {
		return err
	}
	if _, err := transformer.LookupPreset(c.Model); err != nil {
		return fmt.Errorf("invalid model: %w", err)
	}
	if c.SeqLen <= 0 {
		return fmt.Errorf("invalid seq_len: %d (must be positive)", c.SeqLen)
	}
	switch c.LogFormat {
	case "json", "console", "text":
	default:
		return fmt.Errorf("invalid log_format: %q (must be json or console)", c.LogFormat)
	}
	return nil
}

// FillMode parses Fill. Call after Validate.
func (c *Config) FillMode() matrix.FillMode {
	m, _ := matrix.ParseFillMode(c.Fill)
	return m
}

func (c *Config) MMAParams() mma.Params {
	return mma.Params{
		N:                c.N,
		Fill:             c.FillMode(),
		NumOps:           c.NumOps,
		WarpUtil:         c.WarpUtil,
		AccumulatorScale: c.AccumulatorScale,
	}
}

// Source returns a seeded source when Seed is set.
func (c *Config) Source() matrix.Source {
	if c.Seed == 0 {
		return matrix.DefaultSource
	}
	return matrix.NewSeededSource(c.Seed)
}

// Cell returns TraceCell as indices. Call after Validate.
func (c *Config) Cell() (row, col int) {
	row, col, _ = parseCell(c.TraceCell)
	return row, col
}

func parseCell(s string) (row, col int, err error) {
	r, cc, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("%q is not row,col", s)
	}
	if row, err = strconv.Atoi(strings.TrimSpace(r)); err != nil {
		return 0, 0, fmt.Errorf("%q: bad row: %w", s, err)
	}
	if col, err = strconv.Atoi(strings.TrimSpace(cc)); err != nil {
		return 0, 0, fmt.Errorf("%q: bad col: %w", s, err)
	}
	if row < 0 || col < 0 {
		return 0, 0, fmt.Errorf("%q: indices must be non-negative", s)
	}
	return row, col, nil
}

func (c *Config) GPUModel() gpu.Model {
	m, _ := gpu.ParseModel(c.GPU)
	return m
}

// SMUtilization is SMUtil as a fraction.
func (c *Config) SMUtilization() float64 {
	return float64(c.SMUtil) / 100
}

func (c *Config) MetricsEnabled() bool {
	return c.MetricsAddr != ""
}

func Default() Config {
	p := mma.DefaultParams()
	return Config{
		Panel:            PanelAll,
		N:                p.N,
		Fill:             p.Fill.String(),
		NumOps:           p.NumOps,
		WarpUtil:         p.WarpUtil,
		AccumulatorScale: p.AccumulatorScale,
		StageDelay:       350 * time.Millisecond,
		TraceCell:        "0,0",

		TreeInputs: 8,
		TreeBits:   16,
		GEMMSize:   16,

		GPU:         string(gpu.H100),
		SMUtil:      100,
		MMASize:     4,
		ProcessNode: "7nm",

		Model:  "gpt3",
		SeqLen: 2048,

		LogLevel:  "info",
		LogFormat: "console",
	}
}
