package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestBox(t *testing.T) {
	b := NewBox(r3.Vec{X: 2, Y: 0, Z: 1}, r3.Vec{X: 0, Y: 3, Z: 0})
	assert.Equal(t, r3.Vec{X: 0, Y: 0, Z: 0}, b.Min)
	assert.Equal(t, r3.Vec{X: 2, Y: 3, Z: 1}, b.Max)
	assert.InDelta(t, 6.0, b.Volume(), 1e-15)
	assert.True(t, b.Contains(r3.Vec{X: 2, Y: 3, Z: 1}, 0))
	assert.False(t, b.Contains(r3.Vec{X: 2.1, Y: 3, Z: 1}, 0))

	sheet := NewBox(r3.Vec{X: 0, Y: 0, Z: 1}, r3.Vec{X: 1, Y: 1, Z: 1})
	ax, flat := sheet.FlatAxis(1e-12)
	assert.True(t, flat)
	assert.Equal(t, Z, ax)
	assert.InDelta(t, 1.0, sheet.Area(), 1e-15)

	// Touching boxes do not overlap
	c := NewBox(r3.Vec{X: 2, Y: 0, Z: 0}, r3.Vec{X: 4, Y: 3, Z: 1})
	assert.False(t, b.Overlaps(c, 1e-12))
	assert.True(t, b.Overlaps(NewBox(r3.Vec{X: 1, Y: 1, Z: 0.5}, r3.Vec{X: 3, Y: 2, Z: 2}), 1e-12))

	u := b.Union(c)
	assert.True(t, u.ContainsBox(b, 0))
	assert.True(t, u.ContainsBox(c, 0))
	assert.InDelta(t, 4.0, u.Extent(X), 1e-15)
}
