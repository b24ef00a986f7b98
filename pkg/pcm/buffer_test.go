package pcm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelAccess(t *testing.T) {
	b := New([][]float64{{1, 2, 3}, {4, 5, 6}}, 44100)
	require.Equal(t, 2, b.NumChannels())
	require.Equal(t, 3, b.NumSamples())

	ch1, err := b.Channel(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, ch1)

	_, err = b.Channel(0)
	assert.ErrorIs(t, err, ErrBadChannelIndex)

	_, err = b.Channel(3)
	assert.ErrorIs(t, err, ErrBadChannelIndex)
}

func TestConcatMismatch(t *testing.T) {
	a := New([][]float64{{1, 2}}, 44100)
	b := New([][]float64{{1, 2}, {3, 4}}, 44100)
	_, err := a.Concat(b)
	assert.True(t, errors.Is(err, ErrChannelMismatch))
}

func TestConcat(t *testing.T) {
	a := New([][]float64{{1, 2}}, 44100)
	b := New([][]float64{{3, 4, 5}}, 44100)
	c, err := a.Concat(b)
	require.NoError(t, err)
	ch, _ := c.Channel(1)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, ch)
}

func TestAddZeroExtends(t *testing.T) {
	a := New([][]float64{{1, 1, 1}}, 44100)
	b := New([][]float64{{1, 1}}, 44100)
	c, err := a.Add(b)
	require.NoError(t, err)
	ch, _ := c.Channel(1)
	assert.Equal(t, []float64{2, 2, 1}, ch)
}

func TestAddRateMismatch(t *testing.T) {
	a := New([][]float64{{1}}, 44100)
	b := New([][]float64{{1}}, 48000)
	_, err := a.Add(b)
	assert.True(t, errors.Is(err, ErrRateMismatch))
}

func TestPeakNormalize(t *testing.T) {
	b := New([][]float64{{0.5, -2, 1}}, 44100)
	b.PeakNormalize()
	ch, _ := b.Channel(1)
	assert.InDelta(t, 0.25, ch[0], 1e-9)
	assert.InDelta(t, -1.0, ch[1], 1e-9)
	assert.InDelta(t, 0.5, ch[2], 1e-9)
}

func TestPeakNormalizeNoopWhenInRange(t *testing.T) {
	b := New([][]float64{{0.5, -0.9, 0.1}}, 44100)
	b.PeakNormalize()
	ch, _ := b.Channel(1)
	assert.Equal(t, []float64{0.5, -0.9, 0.1}, ch)
}
