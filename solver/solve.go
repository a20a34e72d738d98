package solver

import (
	"context"
	"math"
	"math/cmplx"
	"time"

	"github.com/notargets/EMKernel/material"
	"github.com/notargets/EMKernel/utils"
	"go.uber.org/zap"
)

// Solution is the field and port response at one frequency
type Solution struct {
	Frequency float64
	S         [][]complex128 // S[i][j]: response at port i+1 to excitation at port j+1
	Fields    [][]complex128 // Edge coefficients per mesh edge, one row per excitation
	Modes     []ModeInfo
	Unknowns  int
	Method    Method
	Duration  time.Duration
}

// Solve assembles and solves the system at freq, once per port excitation.
// It is a pure function of the problem and the frequency.
func (p *Problem) Solve(ctx context.Context, freq float64) (*Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !(freq > 0) || math.IsInf(freq, 0) {
		return nil, utils.NewSolveError(freq, "frequency must be positive and finite")
	}
	start := time.Now()
	A, betas := p.assemble(freq)

	rhs := make([][]complex128, len(p.Ports))
	for j := range p.Ports {
		rhs[j] = p.excitation(j, betas[j])
	}

	var (
		x   [][]complex128
		err error
	)
	switch p.method {
	case Iterative:
		x, err = solveIterative(ctx, A, p.grad, rhs, p.opts)
	default:
		x, err = solveDirect(A, rhs)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &utils.SolveError{Frequency: freq, Msg: string(p.method) + " solve failed", Err: err}
	}
	for _, v := range x {
		if !finite(v) {
			return nil, utils.NewSolveError(freq, "non-finite solution")
		}
	}

	sol := &Solution{
		Frequency: freq,
		Unknowns:  len(p.edgeOf),
		Method:    p.method,
		Modes:     make([]ModeInfo, len(p.Ports)),
		Fields:    make([][]complex128, len(p.Ports)),
	}
	for i := range p.Modes {
		sol.Modes[i] = p.Modes[i].Info(freq)
	}
	for j := range x {
		sol.Fields[j] = make([]complex128, len(p.dof))
		for d, e := range p.edgeOf {
			sol.Fields[j][e] = x[j][d]
		}
	}
	sol.S = p.scattering(x, betas)
	sol.Duration = time.Since(start)
	p.logger.Debug("solved",
		zap.Float64("freq", freq),
		zap.Int("unknowns", sol.Unknowns),
		zap.String("method", string(p.method)),
		zap.Duration("elapsed", sol.Duration))
	return sol, nil
}

// assemble builds (1/μr)K - k0²εr M + Σ γ B
func (p *Problem) assemble(freq float64) (*csr, []complex128) {
	m := p.Mesh
	k0 := material.Wavenumber(freq)
	omega := material.AngularFrequency(freq)
	A := &csr{pattern: p.pat, val: make([]complex128, p.pat.nnz())}

	for k := range p.stiff {
		d := m.Material(k)
		eps := d.Permittivity(freq)
		inv := complex(1/d.MuR, 0)
		mk := -complex(k0*k0, 0) * eps
		for i := 0; i < 6; i++ {
			for j := 0; j < 6; j++ {
				if pos := p.scatter[k][i][j]; pos >= 0 {
					A.val[pos] += inv*complex(p.stiff[k][i][j], 0) + mk*complex(p.mass[k][i][j], 0)
				}
			}
		}
	}

	betas := make([]complex128, len(p.Modes))
	for i, pm := range p.Modes {
		betas[i] = pm.Beta(freq)
	}
	for t := range p.terms {
		term := &p.terms[t]
		d := m.Material(term.elem)
		var gamma complex128
		switch term.kind {
		case absorbingFace:
			gamma = complex(0, k0) * cmplx.Sqrt(d.Permittivity(freq)/complex(d.MuR, 0))
		case impedanceFace:
			gamma = complex(0, omega*material.Mu0) / term.conductor.SurfaceImpedance(freq)
		case portFace:
			gamma = complex(0, 1) * betas[term.port] / complex(d.MuR, 0)
		}
		gamma *= complex(term.sides, 0)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				if pos := p.tscatter[t][i][j]; pos >= 0 {
					A.val[pos] += gamma * complex(term.B[i][j], 0)
				}
			}
		}
	}
	return A, betas
}

// excitation is the right hand side for a unit incident mode at port j
func (p *Problem) excitation(j int, beta complex128) []complex128 {
	b := make([]complex128, len(p.edgeOf))
	for t := range p.terms {
		term := &p.terms[t]
		if term.kind != portFace || term.port != j {
			continue
		}
		scale := 2 * complex(0, 1) * beta / complex(p.Mesh.Material(term.elem).MuR, 0)
		for i, d := range term.dofs {
			if d >= 0 {
				b[d] += scale * complex(term.load[i], 0)
			}
		}
	}
	return b
}

// scattering projects each solution on every port mode:
// S_ij = (c_ij - δ_ij) sqrt(β_i/β_j) with c_ij = ∫E_j·e_i
func (p *Problem) scattering(x [][]complex128, betas []complex128) [][]complex128 {
	n := len(p.Ports)
	S := make([][]complex128, n)
	for i := range S {
		S[i] = make([]complex128, n)
	}
	for t := range p.terms {
		term := &p.terms[t]
		if term.kind != portFace {
			continue
		}
		i := term.port
		for j := 0; j < n; j++ {
			for l, d := range term.dofs {
				if d >= 0 {
					S[i][j] += x[j][d] * complex(term.load[l], 0)
				}
			}
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				S[i][j] -= 1
			}
			S[i][j] *= cmplx.Sqrt(betas[i] / betas[j])
		}
	}
	return S
}
