package simulation

import (
	"github.com/notargets/EMKernel/geometry"
	"github.com/notargets/EMKernel/mesh"
	"github.com/notargets/EMKernel/refine"
	"github.com/notargets/EMKernel/sweep"
	"go.uber.org/zap"
)

// MeshStage tells which mesh OnMesh receives
type MeshStage uint8

const (
	CoarseMesh MeshStage = iota
	RefinedMesh
)

func (s MeshStage) String() string {
	return [...]string{"coarse", "refined"}[s]
}

// Observer receives progress from every stage of a run. The sweep calls
// OnSweepPoint from worker goroutines, one call at a time.
type Observer interface {
	OnModel(m *geometry.SolidModel)
	OnMesh(stage MeshStage, m *mesh.Mesh)
	OnRefinement(from, to refine.State, it refine.Iteration)
	OnSweepPoint(p sweep.Point, done, total int)
}

// NopObserver ignores everything. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) OnModel(*geometry.SolidModel)                              {}
func (NopObserver) OnMesh(MeshStage, *mesh.Mesh)                              {}
func (NopObserver) OnRefinement(refine.State, refine.State, refine.Iteration) {}
func (NopObserver) OnSweepPoint(sweep.Point, int, int)                        {}

type refinementObserver struct{ Observer }

func (o refinementObserver) OnTransition(from, to refine.State, it refine.Iteration) {
	o.OnRefinement(from, to, it)
}

type sweepObserver struct{ Observer }

func (o sweepObserver) OnPoint(p sweep.Point, done, total int) { o.OnSweepPoint(p, done, total) }

// ProgressLogger logs each refinement pass and sweep point
type ProgressLogger struct {
	NopObserver
	Logger *zap.Logger
}

func (pl ProgressLogger) OnMesh(stage MeshStage, m *mesh.Mesh) {
	st := m.Stats()
	pl.Logger.Info("mesh",
		zap.Stringer("stage", stage),
		zap.Int("elements", st.Elements),
		zap.Int("edges", st.Edges),
		zap.Float64("min_size", st.MinSize),
		zap.Float64("max_size", st.MaxSize))
}

func (pl ProgressLogger) OnRefinement(from, to refine.State, it refine.Iteration) {
	if to != refine.ErrorEstimated {
		return
	}
	pl.Logger.Info("refinement progress",
		zap.Int("pass", it.Index),
		zap.Int("elements", it.Elements),
		zap.Float64("error", it.GlobalError),
		zap.Int("marked", it.Marked))
}

func (pl ProgressLogger) OnSweepPoint(p sweep.Point, done, total int) {
	pl.Logger.Info("sweep progress",
		zap.Float64("freq", p.Frequency),
		zap.Stringer("status", p.Status),
		zap.Int("done", done),
		zap.Int("total", total))
}
