package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-tensorsim/internal/arrowexport"
	"github.com/23skdu/longbow-tensorsim/internal/config"
	"github.com/23skdu/longbow-tensorsim/internal/logger"
	"github.com/23skdu/longbow-tensorsim/internal/monitoring"
)

func parseFlags(args []string) (config.Config, error) {
	cfg := config.Default()
	fs := flag.NewFlagSet("tensorsim", flag.ContinueOnError)

	panel := fs.String("panel", cfg.Panel.String(), "Panel to run: all, mma, tree, gemm, gpu, transformer")
	fs.IntVar(&cfg.N, "n", cfg.N, "MMA matrix edge length")
	fs.StringVar(&cfg.Fill, "fill", cfg.Fill, "Fill mode for A and B: random, identity, ones, pattern")
	fs.IntVar(&cfg.NumOps, "ops", cfg.NumOps, "Number of MMA ops for the throughput model")
	fs.IntVar(&cfg.WarpUtil, "warp-util", cfg.WarpUtil, "Warp utilization percent")
	fs.Float64Var(&cfg.AccumulatorScale, "c-scale", cfg.AccumulatorScale, "Scale applied to the random accumulator C")
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed (0 = unseeded)")
	fs.DurationVar(&cfg.StageDelay, "stage-delay", cfg.StageDelay, "Delay between replayed pipeline stages (0 prints all at once)")
	fs.StringVar(&cfg.TraceCell, "cell", cfg.TraceCell, "Output cell traced through the pipeline stages, as row,col")
	fs.IntVar(&cfg.TreeInputs, "tree-n", cfg.TreeInputs, "Reduction tree inputs")
	fs.IntVar(&cfg.TreeBits, "tree-bits", cfg.TreeBits, "Reduction tree leaf width in bits")
	fs.IntVar(&cfg.GEMMSize, "gemm-size", cfg.GEMMSize, "GEMM edge length (multiple of 4)")
	fs.StringVar(&cfg.GPU, "gpu", cfg.GPU, "GPU model: v100, a100, h100")
	fs.IntVar(&cfg.SMUtil, "sm-util", cfg.SMUtil, "SM utilization percent")
	fs.IntVar(&cfg.MMASize, "mma-size", cfg.MMASize, "MMA edge length for the routing/area view")
	fs.StringVar(&cfg.ProcessNode, "node", cfg.ProcessNode, "Process node for the area view, e.g. 7nm")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Transformer preset: gpt2, gpt3, llama3, gpt4class")
	fs.IntVar(&cfg.SeqLen, "seq-len", cfg.SeqLen, "Transformer sequence length")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: console or json")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Address to serve Prometheus metrics (empty disables)")
	fs.StringVar(&cfg.ArrowOut, "arrow", cfg.ArrowOut, "Write the MMA result as an Arrow IPC stream to this file")
	fs.StringVar(&cfg.Inspect, "inspect", cfg.Inspect, "Summarize an Arrow IPC stream written by -arrow or -arrow-stages and exit")
	fs.StringVar(&cfg.ArrowStagesOut, "arrow-stages", cfg.ArrowStagesOut, "Write the traced stage snapshots as an Arrow IPC stream to this file")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	p, err := config.ParsePanel(*panel)
	if err != nil {
		return cfg, err
	}
	cfg.Panel = p
	return cfg, cfg.Validate()
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code. Deferred cleanup
// runs before main exits.
func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if cfg.Inspect != "" {
		return inspectStream(stdout, stderr, cfg.Inspect)
	}

	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	r := newRunner(cfg, stdout)
	if cfg.MetricsEnabled() {
		r.monitor = monitoring.NewHealthMonitor(0)
		go func() {
			if err := r.monitor.Start(cfg.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.Error("Metrics server error", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := r.monitor.Stop(ctx); err != nil {
				logger.Log.Warn("Metrics server shutdown", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := r.run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Log.Info("Interrupt received, shutting down")
			return 0
		}
		logger.Log.Error("Run failed", "error", err)
		return 1
	}
	logger.Log.Info("Run complete", "panel", cfg.Panel.String(), "elapsed", time.Since(start))

	if r.monitor != nil {
		logger.Log.Info("Serving metrics until interrupted", "addr", cfg.MetricsAddr)
		<-ctx.Done()
	}
	return 0
}

func inspectStream(w, errw io.Writer, path string) int {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(errw, "Error: %v\n", err)
		return 1
	}
	defer f.Close()

	recs, err := arrowexport.ReadStream(f, memory.NewGoAllocator())
	if err != nil {
		fmt.Fprintf(errw, "Error: %v\n", err)
		return 1
	}
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	summary, err := arrowexport.Summarize(recs)
	if err != nil {
		fmt.Fprintf(errw, "Error: %v\n", err)
		return 1
	}
	fmt.Fprint(w, summary)
	return 0
}
