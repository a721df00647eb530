package blockart

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapToGrid(t *testing.T) {
	assert.Equal(t, 96, SnapToGrid(100))
	assert.Equal(t, 16, SnapToGrid(16))
	assert.Equal(t, 16, SnapToGrid(5))
	assert.Equal(t, 16, SnapToGrid(0))
	assert.Equal(t, 16, SnapToGrid(31))
	assert.Equal(t, 32, SnapToGrid(32))
	assert.Equal(t, 128, SnapToGrid(143))
}

func TestNewGridSpecDerivesHeight(t *testing.T) {
	spec, err := NewGridSpec(image.Rect(0, 0, 400, 300), 100, 0)
	require.NoError(t, err)
	assert.Equal(t, GridSpec{Width: 96, Height: 64}, spec)

	spec, err = NewGridSpec(image.Rect(0, 0, 300, 100), 128, 0)
	require.NoError(t, err)
	assert.Equal(t, GridSpec{Width: 128, Height: 32}, spec)

	spec, err = NewGridSpec(image.Rect(0, 0, 1000, 10), 64, 0)
	require.NoError(t, err)
	assert.Equal(t, GridSpec{Width: 64, Height: 16}, spec)

	spec, err = NewGridSpec(image.Rect(0, 0, 1, 1), 16, 0)
	require.NoError(t, err)
	assert.Equal(t, GridSpec{Width: 16, Height: 16}, spec)
	assert.Equal(t, 256, spec.Cells())
	assert.Equal(t, "16x16", spec.String())
}

func TestNewGridSpecExplicitHeight(t *testing.T) {
	spec, err := NewGridSpec(image.Rect(0, 0, 10, 10), 40, 70)
	require.NoError(t, err)
	assert.Equal(t, GridSpec{Width: 32, Height: 64}, spec)
}

func TestNewGridSpecInvalid(t *testing.T) {
	_, err := NewGridSpec(image.Rect(0, 0, 10, 10), 0, 0)
	assert.ErrorIs(t, err, ErrInvalidGrid)

	_, err = NewGridSpec(image.Rect(0, 0, 10, 10), 16, -1)
	assert.ErrorIs(t, err, ErrInvalidGrid)

	_, err = NewGridSpec(image.Rectangle{}, 16, 0)
	assert.Error(t, err)
}
