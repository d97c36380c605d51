package ssr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPassthroughRendererRejectsOutOfRangeChannel(t *testing.T) {
	q := NewCommandQueue(8)
	r := NewPassthroughRenderer(q, NewWorkerPool(1), 8, 2)
	_, err := r.AddSource("voice", Source{Gain: 1, Active: true}, 2)
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = r.AddSource("voice", Source{Gain: 1, Active: true}, -1)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPassthroughRendererCopiesOnlyToItsChannel(t *testing.T) {
	const blockSize = 4
	q := NewCommandQueue(8)
	r := NewPassthroughRenderer(q, NewWorkerPool(1), blockSize, 2)

	src := Source{Gain: 1, Active: true}
	ps, err := r.AddSource("voice", src, 1)
	require.NoError(t, err)
	q.Activate()

	ps.Input = []float64{1, 2, 3, 4}
	r.Period()
	r.Period()

	require.Equal(t, make([]float64, blockSize), r.outputs[0].Buffer)
	require.InDeltaSlice(t, ps.Input, r.outputs[1].Buffer, 1e-9)
}

// TestPassthroughRendererSkipsDistanceModel confirms the passthrough gain
// pipeline ignores distance entirely (spec §4.8: only BRS and the generic
// FIR renderer skip the distance model; passthrough does too, since it has
// no spatial model at all): a source placed far from the listener still
// passes through at its raw gain.
func TestPassthroughRendererSkipsDistanceModel(t *testing.T) {
	const blockSize = 4
	q := NewCommandQueue(8)
	r := NewPassthroughRenderer(q, NewWorkerPool(1), blockSize, 1)

	src := Source{Gain: 2, Active: true, Model: ModelPoint, Pose: Pose{Position: NewPosition(100, 0, 0), Orientation: IdentityOrientation()}}
	ps, err := r.AddSource("voice", src, 0)
	require.NoError(t, err)
	q.Activate()

	ps.Input = []float64{1, 1, 1, 1}
	r.Period()
	r.Period()

	require.InDeltaSlice(t, []float64{2, 2, 2, 2}, r.outputs[0].Buffer, 1e-9)
}

func TestPassthroughRendererMutedSourceProducesSilence(t *testing.T) {
	const blockSize = 4
	q := NewCommandQueue(8)
	r := NewPassthroughRenderer(q, NewWorkerPool(1), blockSize, 1)

	src := Source{Gain: 1, Active: true, Mute: true}
	ps, err := r.AddSource("voice", src, 0)
	require.NoError(t, err)
	q.Activate()

	ps.Input = []float64{1, 1, 1, 1}
	r.Period()
	r.Period()

	require.Equal(t, make([]float64, blockSize), r.outputs[0].Buffer)
}

func TestPassthroughRendererRemSourceUnknown(t *testing.T) {
	q := NewCommandQueue(8)
	r := NewPassthroughRenderer(q, NewWorkerPool(1), 8, 1)
	require.ErrorIs(t, r.RemSource("ghost"), ErrUnknownSource)
}
