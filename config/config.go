// Package config loads the solver configuration record (YAML) and the
// design deck (HCL).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/notargets/EMKernel/mesh"
	"github.com/notargets/EMKernel/partitions"
	"github.com/notargets/EMKernel/refine"
	"github.com/notargets/EMKernel/simulation"
	"github.com/notargets/EMKernel/solver"
	"github.com/notargets/EMKernel/sweep"
	"gopkg.in/yaml.v3"
)

// Record is the configuration as written in the file
type Record struct {
	// Mesh
	Resolution     float64 `yaml:"resolution"`
	MeshFrequency  float64 `yaml:"mesh_frequency"` // Defaults to fmax
	MaxCellSize    float64 `yaml:"max_cell_size"`
	Grading        float64 `yaml:"grading"`
	SheetThreshold float64 `yaml:"sheet_threshold"`
	MaxElements    int     `yaml:"max_elements"`

	// Sweep
	FMin        float64   `yaml:"fmin"`
	FMax        float64   `yaml:"fmax"`
	FStep       float64   `yaml:"fstep"`
	NPoints     int       `yaml:"npoints"`
	Frequencies []float64 `yaml:"frequencies"`
	NWorkers    int       `yaml:"n_workers"`
	Partition   string    `yaml:"partition"`

	// Refinement, disabled when refine_frequency is 0
	RefineFrequency      float64 `yaml:"refine_frequency"`
	GrowthRate           float64 `yaml:"growth_rate"`
	MaxIterations        int     `yaml:"max_iterations"`
	ConvergenceTolerance float64 `yaml:"convergence_tolerance"`
	MarkFraction         float64 `yaml:"mark_fraction"`
	DeltaS               float64 `yaml:"delta_s"`
	Estimator            string  `yaml:"estimator"`
	ShowProgress         bool    `yaml:"show_progress"`

	// Linear solver
	Solver              string  `yaml:"solver"`
	OuterBoundary       string  `yaml:"outer_boundary"`
	SolverTolerance     float64 `yaml:"solver_tolerance"`
	SolverMaxIterations int     `yaml:"solver_max_iterations"`

	// Output
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
	Database string `yaml:"database"`
}

// DefaultRecord holds the values used for keys absent from a file
func DefaultRecord() Record {
	mo, rc, so := mesh.DefaultOptions(), refine.DefaultConfig(), solver.DefaultOptions()
	return Record{
		Resolution:           mo.Resolution,
		Grading:              mo.Grading,
		MaxElements:          mo.MaxElements,
		NWorkers:             1,
		Partition:            partitions.DynamicQueue.String(),
		GrowthRate:           rc.GrowthRate,
		MaxIterations:        rc.MaxIterations,
		ConvergenceTolerance: rc.Tolerance,
		MarkFraction:         rc.MarkFraction,
		Estimator:            "residual",
		Solver:               string(so.Method),
		OuterBoundary:        string(so.OuterBoundary),
		SolverTolerance:      so.Tolerance,
		SolverMaxIterations:  so.MaxIterations,
		LogLevel:             "info",
	}
}

// Config is the validated configuration with every stage's settings
// derived once. It is not modified after construction.
type Config struct {
	record    Record
	mesh      mesh.Options
	refine    refine.Config
	estimator refine.Estimator
	sweep     sweep.Spec
	workers   sweep.Config
	solver    solver.Options
	freqs     []float64
}

// New validates r and derives the stage settings
func New(r Record) (*Config, error) {
	c := &Config{record: r}
	var errs []error

	c.sweep = sweep.Spec{Start: r.FMin, Stop: r.FMax, Step: r.FStep, Points: r.NPoints, Explicit: r.Frequencies}
	freqs, err := c.sweep.Frequencies()
	if err != nil {
		errs = append(errs, err)
	}
	c.freqs = freqs

	c.mesh = mesh.Options{
		Resolution:     r.Resolution,
		Frequency:      r.MeshFrequency,
		MaxCellSize:    r.MaxCellSize,
		Grading:        r.Grading,
		SheetThreshold: r.SheetThreshold,
		MaxElements:    r.MaxElements,
	}
	if c.mesh.Frequency == 0 && len(freqs) > 0 {
		c.mesh.Frequency = freqs[len(freqs)-1]
	}

	c.solver = solver.Options{
		Method:        solver.Method(strings.ToLower(r.Solver)),
		OuterBoundary: solver.OuterBoundary(strings.ToLower(r.OuterBoundary)),
		Tolerance:     r.SolverTolerance,
		MaxIterations: r.SolverMaxIterations,
	}
	if err := c.solver.Validate(); err != nil {
		errs = append(errs, err)
	}

	c.refine = refine.Config{
		Frequency:     r.RefineFrequency,
		Tolerance:     r.ConvergenceTolerance,
		MaxIterations: r.MaxIterations,
		GrowthRate:    r.GrowthRate,
		MarkFraction:  r.MarkFraction,
		DeltaS:        r.DeltaS,
		Solver:        c.solver,
	}
	switch {
	case r.RefineFrequency < 0:
		errs = append(errs, fmt.Errorf("negative refine_frequency %g", r.RefineFrequency))
	case r.RefineFrequency > 0:
		if err := c.refine.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	switch strings.ToLower(r.Estimator) {
	case "", "residual":
		c.estimator = refine.ResidualEstimator{}
	case "gradient":
		c.estimator = refine.GradientEstimator{}
	default:
		errs = append(errs, fmt.Errorf("unknown estimator %q", r.Estimator))
	}

	st, err := partitions.ParseStrategy(strings.ToLower(r.Partition))
	if err != nil {
		errs = append(errs, err)
	}
	c.workers = sweep.Config{Workers: r.NWorkers, Strategy: st}
	if r.NWorkers < 1 {
		errs = append(errs, fmt.Errorf("n_workers %d must be at least 1", r.NWorkers))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// Parse decodes YAML onto the defaults. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	r := DefaultRecord()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return New(r)
}

// Load reads a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Record returns a copy of the configuration as loaded
func (c *Config) Record() Record {
	r := c.record
	r.Frequencies = append([]float64(nil), r.Frequencies...)
	return r
}

func (c *Config) Mesh() mesh.Options          { return c.mesh }
func (c *Config) Refine() refine.Config       { return c.refine }
func (c *Config) Estimator() refine.Estimator { return c.estimator }
func (c *Config) Sweep() sweep.Spec           { return c.sweep }
func (c *Config) Workers() sweep.Config       { return c.workers }
func (c *Config) Solver() solver.Options      { return c.solver }
func (c *Config) ShowProgress() bool          { return c.record.ShowProgress }

// Frequencies is the sweep list, ascending
func (c *Config) Frequencies() []float64 { return append([]float64(nil), c.freqs...) }

// Simulation assembles the pipeline configuration
func (c *Config) Simulation() simulation.Config {
	return simulation.Config{
		Mesh:      c.mesh,
		Refine:    c.refine,
		Estimator: c.estimator,
		Sweep:     c.sweep,
		Workers:   c.workers,
	}
}

// Marshal writes the record back as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c.record)
}
