// Package refine drives adaptive mesh refinement at a reference frequency.
package refine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"
	"time"

	"github.com/notargets/EMKernel/mesh"
	"github.com/notargets/EMKernel/solver"
	"github.com/notargets/EMKernel/utils"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// State of the refinement loop
type State uint8

const (
	Coarse State = iota
	Solved
	ErrorEstimated
	Refined
	Done
)

func (s State) String() string {
	return [...]string{"Coarse", "Solved", "ErrorEstimated", "Refined", "Done"}[s]
}

// Outcome is how the loop ended
type Outcome uint8

const (
	Converged Outcome = iota
	BudgetExhausted
	TerminatedEarly
)

func (o Outcome) String() string {
	return [...]string{"Converged", "BudgetExhausted", "TerminatedEarly"}[o]
}

// Config controls the refinement loop
type Config struct {
	Frequency     float64 // Reference frequency, Hz
	Tolerance     float64 // Relative global error to converge
	MaxIterations int     // Solves, including the coarse one
	GrowthRate    float64
	MarkFraction  float64 // Fraction of elements marked per pass, by error quantile
	DeltaS        float64 // Converge when max |ΔS| between passes falls below, 0 disables
	Solver        solver.Options
}

func DefaultConfig() Config {
	return Config{
		Tolerance:     0.02,
		MaxIterations: 8,
		GrowthRate:    2,
		MarkFraction:  0.3,
		Solver:        solver.DefaultOptions(),
	}
}

// Validate checks the ranges of every setting
func (c Config) Validate() error {
	switch {
	case !(c.Frequency > 0):
		return fmt.Errorf("reference frequency %g must be positive", c.Frequency)
	case !(c.Tolerance > 0):
		return fmt.Errorf("tolerance %g must be positive", c.Tolerance)
	case c.MaxIterations < 1:
		return fmt.Errorf("at least one iteration is required, got %d", c.MaxIterations)
	case !(c.GrowthRate >= 1):
		return fmt.Errorf("growth rate %g must be at least 1", c.GrowthRate)
	case !(c.MarkFraction > 0) || c.MarkFraction > 1:
		return fmt.Errorf("mark fraction %g must be in (0, 1]", c.MarkFraction)
	case c.DeltaS < 0:
		return fmt.Errorf("negative S-parameter tolerance %g", c.DeltaS)
	}
	return nil
}

// Iteration records one pass of the loop
type Iteration struct {
	Index       int
	State       State
	Elements    int
	Unknowns    int
	GlobalError float64
	DeltaS      float64 // NaN on the first pass
	Marked      int
	Accepted    bool
	Duration    time.Duration
}

// Observer is notified of every state transition
type Observer interface {
	OnTransition(from, to State, it Iteration)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(from, to State, it Iteration)

func (f ObserverFunc) OnTransition(from, to State, it Iteration) { f(from, to, it) }

// Result is the final refinement state. Mesh and Ports are those of the last
// accepted pass.
type Result struct {
	Mesh     *mesh.Mesh
	Ports    []solver.Port
	Problem  *solver.Problem
	Solution *solver.Solution
	Estimate Estimate
	Outcome  Outcome
	Warning  error // Why the loop terminated early
	History  []Iteration
	Trace    []State
}

// Controller runs the refinement state machine
type Controller struct {
	cfg       Config
	estimator Estimator
	observer  Observer
	logger    *zap.Logger
	state     State
	trace     []State
}

func NewController(cfg Config, est Estimator, obs Observer, logger *zap.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if est == nil {
		est = ResidualEstimator{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{cfg: cfg, estimator: est, observer: obs, logger: logger}, nil
}

func (c *Controller) transition(to State, it Iteration) {
	from := c.state
	c.state = to
	c.trace = append(c.trace, to)
	it.State = to
	if c.observer != nil {
		c.observer.OnTransition(from, to, it)
	}
}

type accepted struct {
	mesh     *mesh.Mesh
	ports    []solver.Port
	problem  *solver.Problem
	solution *solver.Solution
	estimate Estimate
}

// Run refines the coarse mesh until the global error falls below the
// tolerance or a budget is spent. A solve that fails after the first pass
// keeps the previous mesh and ends the loop with a warning.
func (c *Controller) Run(ctx context.Context, coarse *mesh.Mesh) (*Result, error) {
	c.state, c.trace = Coarse, []State{Coarse}
	res := &Result{Mesh: coarse}
	var prev *accepted
	current := coarse

	finish := func(o Outcome, warning error) (*Result, error) {
		res.Outcome, res.Warning = o, warning
		if prev != nil {
			res.Mesh, res.Ports, res.Problem = prev.mesh, prev.ports, prev.problem
			res.Solution, res.Estimate = prev.solution, prev.estimate
		}
		c.transition(Done, Iteration{Index: len(res.History)})
		res.Trace = c.trace
		fields := []zap.Field{
			zap.String("outcome", o.String()),
			zap.Int("iterations", len(res.History)),
			zap.Int("elements", res.Mesh.NumElements()),
		}
		if warning != nil {
			c.logger.Warn("refinement ended early", append(fields, zap.Error(warning))...)
		} else {
			c.logger.Info("refinement finished", fields...)
		}
		return res, nil
	}

	for iter := 0; ; iter++ {
		start := time.Now()
		it := Iteration{Index: iter, Elements: current.NumElements(), DeltaS: math.NaN()}

		ports, err := solver.BindPorts(current)
		if err != nil {
			if prev == nil {
				return nil, err
			}
			return finish(TerminatedEarly, err)
		}
		problem, err := solver.NewProblem(current, ports, c.cfg.Solver, c.logger)
		if err != nil {
			if prev == nil {
				return nil, err
			}
			return finish(TerminatedEarly, err)
		}
		it.Unknowns = problem.Unknowns()
		sol, err := problem.Solve(ctx, c.cfg.Frequency)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if prev == nil && !errors.Is(err, utils.ErrSolve) {
				return nil, err
			}
			return finish(TerminatedEarly, err)
		}
		c.transition(Solved, it)

		est, err := c.estimator.Estimate(current, sol)
		if err != nil {
			if prev == nil {
				return nil, fmt.Errorf("error estimation: %w", err)
			}
			return finish(TerminatedEarly, fmt.Errorf("error estimation: %w", err))
		}
		it.GlobalError = est.Global
		if prev != nil {
			it.DeltaS = maxDelta(prev.solution.S, sol.S)
		}
		it.Duration = time.Since(start)

		if prev != nil && est.Global > prev.estimate.Global {
			res.History = append(res.History, it)
			c.transition(ErrorEstimated, it)
			return finish(TerminatedEarly, fmt.Errorf("global error rose from %.4g to %.4g at pass %d",
				prev.estimate.Global, est.Global, iter))
		}
		it.Accepted = true
		prev = &accepted{mesh: current, ports: ports, problem: problem, solution: sol, estimate: est}
		c.logger.Info("refinement pass",
			zap.Int("pass", iter),
			zap.Int("elements", it.Elements),
			zap.Int("unknowns", it.Unknowns),
			zap.Float64("error", it.GlobalError),
			zap.Float64("delta_s", it.DeltaS))

		switch {
		case est.Global <= c.cfg.Tolerance:
			res.History = append(res.History, it)
			c.transition(ErrorEstimated, it)
			return finish(Converged, nil)
		case c.cfg.DeltaS > 0 && it.DeltaS <= c.cfg.DeltaS:
			res.History = append(res.History, it)
			c.transition(ErrorEstimated, it)
			return finish(Converged, nil)
		case iter+1 >= c.cfg.MaxIterations:
			res.History = append(res.History, it)
			c.transition(ErrorEstimated, it)
			return finish(BudgetExhausted, nil)
		}

		marked, n := Mark(est.Indicators, c.cfg.MarkFraction)
		it.Marked = n
		res.History = append(res.History, it)
		c.transition(ErrorEstimated, it)

		next, err := current.Refine(marked, c.cfg.GrowthRate)
		if err != nil {
			if errors.Is(err, utils.ErrMesh) {
				return finish(BudgetExhausted, nil)
			}
			return nil, err
		}
		current = next
		c.transition(Refined, Iteration{Index: iter, Elements: next.NumElements(), DeltaS: math.NaN()})
	}
}

// Mark flags the elements whose indicator reaches the (1 - fraction)
// quantile. At least one element is marked when any indicator is positive.
func Mark(indicators []float64, fraction float64) ([]bool, int) {
	marked := make([]bool, len(indicators))
	if len(indicators) == 0 {
		return marked, 0
	}
	sorted := append([]float64(nil), indicators...)
	sort.Float64s(sorted)
	threshold := stat.Quantile(1-fraction, stat.Empirical, sorted, nil)
	if threshold <= 0 {
		threshold = math.SmallestNonzeroFloat64
	}
	var n int
	for k, v := range indicators {
		if v >= threshold {
			marked[k] = true
			n++
		}
	}
	return marked, n
}

func maxDelta(a, b [][]complex128) float64 {
	var d float64
	for i := range a {
		for j := range a[i] {
			d = math.Max(d, cmplx.Abs(a[i][j]-b[i][j]))
		}
	}
	return d
}
