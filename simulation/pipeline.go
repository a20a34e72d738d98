// Package simulation runs the complete flow: compile the design, mesh it,
// refine the mesh at a reference frequency and sweep the refined problem.
package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/notargets/EMKernel/geometry"
	"github.com/notargets/EMKernel/mesh"
	"github.com/notargets/EMKernel/refine"
	"github.com/notargets/EMKernel/solver"
	"github.com/notargets/EMKernel/sweep"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Config gathers the settings of every stage. A zero Refine.Frequency
// skips adaptive refinement and sweeps the coarse mesh.
type Config struct {
	Mesh      mesh.Options
	Refine    refine.Config
	Estimator refine.Estimator // nil selects the residual estimator
	Sweep     sweep.Spec
	Workers   sweep.Config
}

// Result of a complete run
type Result struct {
	RunID      uuid.UUID
	Model      *geometry.SolidModel
	Coarse     *mesh.Mesh
	Mesh       *mesh.Mesh // Mesh used by the sweep
	Ports      []solver.Port
	Refinement *refine.Result // nil when refinement is disabled
	Grid       *sweep.Grid
	Started    time.Time
	Finished   time.Time
}

// Pipeline executes runs with a fixed configuration
type Pipeline struct {
	cfg      Config
	observer Observer
	logger   *zap.Logger
}

func NewPipeline(cfg Config, obs Observer, logger *zap.Logger) (*Pipeline, error) {
	if cfg.Workers.Workers < 1 {
		return nil, fmt.Errorf("at least one sweep worker is required, got %d", cfg.Workers.Workers)
	}
	if obs == nil {
		obs = NopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, observer: obs, logger: logger}, nil
}

// Run compiles and meshes the design, refines and sweeps it. Geometry and
// initial mesh errors are fatal; refinement failures end the refinement
// with a warning; failed sweep points are recorded in the grid.
func (p *Pipeline) Run(ctx context.Context, design geometry.Design) (*Result, error) {
	res := &Result{RunID: uuid.New(), Started: time.Now()}
	logger := p.logger.With(zap.String("run", res.RunID.String()))

	freqs, err := p.cfg.Sweep.Frequencies()
	if err != nil {
		return nil, err
	}
	if rf := p.cfg.Refine.Frequency; rf > 0 && (rf < freqs[0] || rf > freqs[len(freqs)-1]) {
		logger.Warn("refinement frequency lies outside the sweep",
			zap.Float64("refine_freq", rf),
			zap.Float64("fmin", freqs[0]),
			zap.Float64("fmax", freqs[len(freqs)-1]))
	}

	res.Model, err = geometry.Compile(design)
	if err != nil {
		return nil, err
	}
	p.observer.OnModel(res.Model)
	logger.Info("model compiled", zap.Int("regions", len(res.Model.Regions)), zap.Int("ports", len(res.Model.Ports)))

	opts := p.cfg.Mesh
	if opts.Resolution > 0 && opts.Frequency == 0 {
		opts.Frequency = floats.Max(freqs)
	}
	res.Coarse, err = mesh.Generate(res.Model, opts)
	if err != nil {
		return nil, err
	}
	p.observer.OnMesh(CoarseMesh, res.Coarse)
	logger.Info("mesh generated", zap.Int("elements", res.Coarse.NumElements()), zap.Int("edges", len(res.Coarse.Edges)))

	var problem *solver.Problem
	res.Mesh = res.Coarse
	if p.cfg.Refine.Frequency > 0 {
		ctrl, err := refine.NewController(p.cfg.Refine, p.cfg.Estimator, refinementObserver{p.observer}, logger)
		if err != nil {
			return nil, err
		}
		res.Refinement, err = ctrl.Run(ctx, res.Coarse)
		if err != nil {
			return nil, fmt.Errorf("refinement: %w", err)
		}
		// Problem is nil when the first solve failed
		res.Mesh, res.Ports, problem = res.Refinement.Mesh, res.Refinement.Ports, res.Refinement.Problem
		p.observer.OnMesh(RefinedMesh, res.Mesh)
	}
	if problem == nil {
		if res.Ports, err = solver.BindPorts(res.Mesh); err != nil {
			return nil, err
		}
		if problem, err = solver.NewProblem(res.Mesh, res.Ports, p.cfg.Refine.Solver, logger); err != nil {
			return nil, err
		}
	}

	orch, err := sweep.NewOrchestrator(problem, len(res.Ports), p.cfg.Workers, sweepObserver{p.observer}, logger)
	if err != nil {
		return nil, err
	}
	res.Grid, err = orch.Run(ctx, freqs)
	if err != nil {
		return nil, err
	}
	res.Finished = time.Now()
	return res, nil
}
