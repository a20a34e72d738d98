// Package material holds the immutable material records referenced by the
// solid model. Materials are tagged variants: a region is either filled by a
// Dielectric or bounded by a Conductor, and callers dispatch with a type
// switch.
package material

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Material is implemented by *Dielectric and *Conductor only.
type Material interface {
	MaterialName() string
	isMaterial()
}

// Djordjevic-Sarkar model corner frequencies, log10 of angular frequency
const (
	dsM1 = 4.0
	dsM2 = 12.0
)

// Dielectric is a volume filling material. With TanD > 0 and a reference
// frequency the permittivity follows a Djordjevic-Sarkar wideband model fitted
// to (EpsR, TanD) at RefFrequency.
type Dielectric struct {
	Name         string
	EpsR         float64 // Real relative permittivity at RefFrequency
	TanD         float64 // Loss tangent at RefFrequency
	RefFrequency float64 // Hz, zero for a frequency independent loss tangent
	Conductivity float64 // S/m, bulk conduction loss
	MuR          float64

	dispersive bool
	epsInf     float64
	dsScale    float64
}

// NewDielectric validates the record and computes the dispersion fit.
func NewDielectric(name string, epsR, tanD, refFrequency float64) (*Dielectric, error) {
	return (&Dielectric{Name: name, EpsR: epsR, TanD: tanD, RefFrequency: refFrequency}).init()
}

// NewConductiveDielectric is NewDielectric with bulk conductivity and
// permeability.
func NewConductiveDielectric(name string, epsR, tanD, refFrequency, conductivity, muR float64) (*Dielectric, error) {
	return (&Dielectric{Name: name, EpsR: epsR, TanD: tanD, RefFrequency: refFrequency,
		Conductivity: conductivity, MuR: muR}).init()
}

// Vacuum is the default filling of air regions.
var Vacuum = mustDielectric(NewDielectric("vacuum", 1, 0, 0))

func mustDielectric(d *Dielectric, err error) *Dielectric {
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Dielectric) init() (*Dielectric, error) {
	if d.MuR == 0 {
		d.MuR = 1
	}
	switch {
	case !(d.EpsR >= 1) || math.IsInf(d.EpsR, 0):
		return nil, fmt.Errorf("dielectric %q: relative permittivity %g must be finite and >= 1", d.Name, d.EpsR)
	case d.TanD < 0 || math.IsNaN(d.TanD):
		return nil, fmt.Errorf("dielectric %q: negative loss tangent %g", d.Name, d.TanD)
	case d.RefFrequency < 0:
		return nil, fmt.Errorf("dielectric %q: negative reference frequency %g", d.Name, d.RefFrequency)
	case d.Conductivity < 0:
		return nil, fmt.Errorf("dielectric %q: negative conductivity %g", d.Name, d.Conductivity)
	case d.MuR < 1:
		return nil, fmt.Errorf("dielectric %q: relative permeability %g must be >= 1", d.Name, d.MuR)
	}
	d.epsInf = d.EpsR
	if d.TanD > 0 && d.RefFrequency > 0 {
		l := dsLog(AngularFrequency(d.RefFrequency))
		d.dsScale = -d.EpsR * d.TanD / imag(l)
		d.epsInf = d.EpsR - d.dsScale*real(l)
		d.dispersive = true
	}
	return d, nil
}

func dsLog(omega float64) complex128 {
	w1 := math.Pow(10, dsM1)
	w2 := math.Pow(10, dsM2)
	return cmplx.Log(complex(w2, omega)/complex(w1, omega)) / math.Ln10
}

func (d *Dielectric) MaterialName() string { return d.Name }
func (*Dielectric) isMaterial()            {}

// Dispersive reports whether the permittivity varies with frequency.
func (d *Dielectric) Dispersive() bool { return d.dispersive }

// Lossless reports whether the material has neither dielectric nor
// conduction loss.
func (d *Dielectric) Lossless() bool { return d.TanD == 0 && d.Conductivity == 0 }

// Permittivity returns the complex relative permittivity at freq. Losses
// make the imaginary part negative.
func (d *Dielectric) Permittivity(freq float64) complex128 {
	var eps complex128
	switch {
	case d.dispersive:
		eps = complex(d.epsInf, 0) + complex(d.dsScale, 0)*dsLog(AngularFrequency(freq))
	default:
		eps = complex(d.EpsR, -d.EpsR*d.TanD)
	}
	if d.Conductivity > 0 && freq > 0 {
		eps -= complex(0, d.Conductivity/(AngularFrequency(freq)*Eps0))
	}
	return eps
}

func (d *Dielectric) String() string {
	return fmt.Sprintf("Dielectric(%s εr=%g tanδ=%g@%gHz σ=%g μr=%g)",
		d.Name, d.EpsR, d.TanD, d.RefFrequency, d.Conductivity, d.MuR)
}

// Conductor bounds the field region. An infinite conductivity makes it a
// perfect electric conductor.
type Conductor struct {
	Name         string
	Conductivity float64 // S/m
	Roughness    float64 // RMS surface roughness, m
	MuR          float64

	Resistivity float64 // 1/Conductivity, ohm m
}

// NewConductor validates the record and derives the resistivity.
func NewConductor(name string, conductivity, roughness float64) (*Conductor, error) {
	c := &Conductor{Name: name, Conductivity: conductivity, Roughness: roughness, MuR: 1}
	switch {
	case !(conductivity > 0):
		return nil, fmt.Errorf("conductor %q: conductivity %g must be positive", name, conductivity)
	case roughness < 0 || math.IsNaN(roughness):
		return nil, fmt.Errorf("conductor %q: negative roughness %g", name, roughness)
	}
	c.Resistivity = 1 / conductivity
	return c, nil
}

// PEC is the perfect electric conductor.
var PEC = &Conductor{Name: "pec", Conductivity: math.Inf(1), MuR: 1}

func (c *Conductor) MaterialName() string { return c.Name }
func (*Conductor) isMaterial()            {}

func (c *Conductor) IsPEC() bool { return math.IsInf(c.Conductivity, 1) }

// SkinDepth returns δ = sqrt(2/(ωμσ)) in meters.
func (c *Conductor) SkinDepth(freq float64) float64 {
	if c.IsPEC() {
		return 0
	}
	return math.Sqrt(2 / (AngularFrequency(freq) * Mu0 * c.MuR * c.Conductivity))
}

// RoughnessFactor is the Hammerstad-Jensen loss multiplier, between 1 and 2.
func (c *Conductor) RoughnessFactor(freq float64) float64 {
	if c.Roughness == 0 || c.IsPEC() {
		return 1
	}
	r := c.Roughness / c.SkinDepth(freq)
	return 1 + 2/math.Pi*math.Atan(1.4*r*r)
}

// SurfaceImpedance returns the Leontovich impedance Zs = (1+j)·sqrt(ωμ/2σ)
// scaled by the roughness factor. It is zero for a PEC.
func (c *Conductor) SurfaceImpedance(freq float64) complex128 {
	if c.IsPEC() {
		return 0
	}
	rs := math.Sqrt(AngularFrequency(freq)*Mu0*c.MuR/(2*c.Conductivity)) * c.RoughnessFactor(freq)
	return complex(rs, rs)
}

func (c *Conductor) String() string {
	if c.IsPEC() {
		return fmt.Sprintf("Conductor(%s PEC)", c.Name)
	}
	return fmt.Sprintf("Conductor(%s σ=%g roughness=%g)", c.Name, c.Conductivity, c.Roughness)
}

// Describe returns a one line description of any material.
func Describe(m Material) string {
	switch v := m.(type) {
	case *Dielectric:
		return v.String()
	case *Conductor:
		return v.String()
	case nil:
		return "none"
	}
	return m.MaterialName()
}
