package material

import "math"

// Physical constants in SI units
const (
	C0   = 299792458.0           // Speed of light in vacuum, m/s
	Mu0  = 4e-7 * math.Pi        // Vacuum permeability, H/m
	Eps0 = 1.0 / (Mu0 * C0 * C0) // Vacuum permittivity, F/m
	Eta0 = Mu0 * C0              // Free space impedance, ohm
)

// Wavenumber returns the free space wavenumber k0 at freq (Hz).
func Wavenumber(freq float64) float64 {
	return 2 * math.Pi * freq / C0
}

// AngularFrequency returns ω = 2πf.
func AngularFrequency(freq float64) float64 {
	return 2 * math.Pi * freq
}
