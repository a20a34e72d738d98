package material

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDielectric_DjordjevicSarkarFit(t *testing.T) {
	fr4, err := NewDielectric("pcb", 4.5, 0.02, 10e9)
	require.NoError(t, err)
	require.True(t, fr4.Dispersive())

	// The fit reproduces the data at the reference frequency
	eps := fr4.Permittivity(10e9)
	assert.InDelta(t, 4.5, real(eps), 1e-9)
	assert.InDelta(t, 0.02, -imag(eps)/real(eps), 1e-9)

	// Real part decreases with frequency, loss tangent stays positive
	prev := math.Inf(1)
	for _, f := range []float64{1e8, 1e9, 5e9, 2e10} {
		e := fr4.Permittivity(f)
		assert.Less(t, real(e), prev, "f=%g", f)
		assert.Less(t, imag(e), 0.0, "f=%g", f)
		prev = real(e)
	}
}

func TestDielectric_Constant(t *testing.T) {
	d, err := NewDielectric("ptfe", 2.1, 0.001, 0)
	require.NoError(t, err)
	assert.False(t, d.Dispersive())
	eps1 := d.Permittivity(1e9)
	assert.InDelta(t, 2.1, real(eps1), 1e-15)
	assert.InDelta(t, -2.1*0.001, imag(eps1), 1e-15)
	assert.Equal(t, d.Permittivity(1e9), d.Permittivity(5e9))

	assert.True(t, Vacuum.Lossless())
	assert.Equal(t, complex(1, 0), Vacuum.Permittivity(3e9))
	assert.Equal(t, 1.0, Vacuum.MuR)

	lossy, err := NewConductiveDielectric("si", 11.9, 0, 0, 10, 1)
	require.NoError(t, err)
	eps := lossy.Permittivity(1e9)
	assert.InDelta(t, -10/(AngularFrequency(1e9)*Eps0), imag(eps), 1e-9)
}

func TestDielectric_Invalid(t *testing.T) {
	for _, tc := range []struct{ er, tand, fref float64 }{
		{0.5, 0, 0},
		{math.NaN(), 0, 0},
		{4, -0.1, 0},
		{4, 0.01, -1},
	} {
		_, err := NewDielectric("bad", tc.er, tc.tand, tc.fref)
		assert.Error(t, err, "%+v", tc)
	}
}

func TestConductor(t *testing.T) {
	cu, err := NewConductor("copper", 5.8e7, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1/5.8e7, cu.Resistivity, 1e-20)
	assert.False(t, cu.IsPEC())

	zs := cu.SurfaceImpedance(1e9)
	assert.InDelta(t, 8.25e-3, real(zs), 1e-5)
	assert.InDelta(t, real(zs), imag(zs), 1e-15)
	assert.InDelta(t, 2.09e-6, cu.SkinDepth(1e9), 1e-8)

	rough, err := NewConductor("rough", 5.8e7, 0.2e-6)
	require.NoError(t, err)
	k1, k2 := rough.RoughnessFactor(1e8), rough.RoughnessFactor(1e10)
	assert.Greater(t, k1, 1.0)
	assert.Greater(t, k2, k1)
	assert.Less(t, k2, 2.0)
	assert.InDelta(t, cmplx.Abs(zs)*rough.RoughnessFactor(1e9), cmplx.Abs(rough.SurfaceImpedance(1e9)), 1e-12)

	assert.True(t, PEC.IsPEC())
	assert.Equal(t, complex(0, 0), PEC.SurfaceImpedance(1e9))

	_, err = NewConductor("bad", 0, 0)
	assert.Error(t, err)
	_, err = NewConductor("bad", 1e7, -1)
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Contains(t, Describe(PEC), "PEC")
	assert.Contains(t, Describe(Vacuum), "vacuum")
	assert.Equal(t, "none", Describe(nil))
}
