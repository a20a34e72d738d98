package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/notargets/EMKernel/partitions"
	"github.com/notargets/EMKernel/solver"
	"github.com/notargets/EMKernel/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Solver computes the response at one frequency. *solver.Problem is the
// production implementation; it must be safe for concurrent calls.
type Solver interface {
	Solve(ctx context.Context, freq float64) (*solver.Solution, error)
}

// Observer is notified after each point completes. Calls are serialized.
type Observer interface {
	OnPoint(p Point, done, total int)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(p Point, done, total int)

func (f ObserverFunc) OnPoint(p Point, done, total int) { f(p, done, total) }

// Config controls the worker fan-out
type Config struct {
	Workers  int
	Strategy partitions.PartitionStrategy
}

func DefaultConfig() Config {
	return Config{Workers: 1, Strategy: partitions.DynamicQueue}
}

// Orchestrator runs a sweep over a solver. Runs must not overlap.
type Orchestrator struct {
	solver   Solver
	ports    int
	cfg      Config
	observer Observer
	logger   *zap.Logger

	mu   sync.Mutex
	done int
}

func NewOrchestrator(s Solver, ports int, cfg Config, obs Observer, logger *zap.Logger) (*Orchestrator, error) {
	if s == nil {
		return nil, fmt.Errorf("sweep: nil solver")
	}
	if ports < 1 {
		return nil, fmt.Errorf("sweep: at least one port is required, got %d", ports)
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("sweep: at least one worker is required, got %d", cfg.Workers)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{solver: s, ports: ports, cfg: cfg, observer: obs, logger: logger}, nil
}

// Run solves every frequency. A point whose solve fails with a SolveError
// is recorded and the sweep continues; any other error aborts the sweep.
// When ctx is cancelled no new points start, the points already running
// finish or are abandoned, and the partial grid is returned with
// Interrupted set and a nil error.
func (o *Orchestrator) Run(ctx context.Context, freqs []float64) (*Grid, error) {
	grid := newGrid(freqs, o.ports)
	if len(freqs) == 0 {
		return grid, nil
	}

	pb := &partitions.PartitionBuilder{
		NumItems:      len(freqs),
		NumPartitions: o.cfg.Workers,
		Strategy:      o.cfg.Strategy,
	}
	if o.cfg.Strategy == partitions.CostBalanced {
		pb.Cost = freqs
	}
	layout, err := pb.BuildPartitions()
	if err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}

	start := time.Now()
	o.done = 0
	o.logger.Info("sweep started",
		zap.Int("points", len(freqs)),
		zap.Int("workers", layout.NumPartitions),
		zap.String("strategy", layout.Strategy.String()))

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < layout.NumPartitions; w++ {
		it := layout.Iterator(w)
		g.Go(func() error {
			for k, ok := it.Next(); ok; k, ok = it.Next() {
				if gctx.Err() != nil {
					return nil
				}
				if err := o.solvePoint(gctx, &grid.Points[k], len(freqs)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for k := range grid.Points {
		if grid.Points[k].Status == Pending {
			grid.Points[k].Status = Skipped
		}
	}
	skipped := grid.Skipped()
	grid.Interrupted = len(skipped) > 0
	failed := grid.Failed()

	fields := []zap.Field{
		zap.Int("points", len(freqs)),
		zap.Int("failed", len(failed)),
		zap.Duration("elapsed", time.Since(start)),
	}
	switch {
	case grid.Interrupted:
		o.logger.Warn("sweep interrupted", append(fields, zap.Int("skipped", len(skipped)))...)
	case len(failed) > 0:
		o.logger.Warn("sweep finished with failed points", append(fields, zap.Float64s("failed_freqs", failed))...)
	default:
		o.logger.Info("sweep finished", fields...)
	}
	return grid, nil
}

func (o *Orchestrator) solvePoint(ctx context.Context, p *Point, total int) error {
	t0 := time.Now()
	sol, err := o.solver.Solve(ctx, p.Frequency)
	switch {
	case err == nil:
		if len(sol.S) != o.ports {
			return fmt.Errorf("sweep: f=%g Hz: %d-port result for %d ports", p.Frequency, len(sol.S), o.ports)
		}
		p.Status, p.S = Solved, sol.S
	case errors.Is(err, utils.ErrSolve):
		p.Status, p.Err = Failed, err
		o.logger.Warn("sweep point failed", zap.Float64("freq", p.Frequency), zap.Error(err))
	case ctx.Err() != nil:
		// abandoned, reported as skipped
		return nil
	default:
		return fmt.Errorf("sweep: f=%g Hz: %w", p.Frequency, err)
	}
	p.Duration = time.Since(t0)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.done++
	if o.observer != nil {
		o.observer.OnPoint(*p, o.done, total)
	}
	return nil
}
