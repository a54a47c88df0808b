package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewShapeAndSize(t *testing.T) {
	tt := New(2, 3, 4)
	assert.Equal(t, 24, tt.Size())
	assert.Equal(t, []int{2, 3, 4}, tt.Shape)
}

func TestAtSetRoundTrip(t *testing.T) {
	tt := New(2, 3)
	tt.Set(4.5, 1, 2)
	assert.Equal(t, 4.5, tt.At(1, 2))
	assert.Equal(t, 4.5, tt.Data[1*3+2])
}

func TestCloneIsDeep(t *testing.T) {
	a := NewWithData([]float64{1, 2, 3})
	b := a.Clone()
	b.Data[0] = 9
	assert.Equal(t, 1.0, a.Data[0])
}

func TestZero(t *testing.T) {
	a := NewWithData([]float64{1, 2, 3})
	a.Zero()
	assert.Equal(t, []float64{0, 0, 0}, a.Data)
}

func TestSameShape(t *testing.T) {
	assert.True(t, SameShape(New(2, 3), New(2, 3)))
	assert.False(t, SameShape(New(2, 3), New(3, 2)))
	assert.False(t, SameShape(New(2, 3), New(6)))
}
