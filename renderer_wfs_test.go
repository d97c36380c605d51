package ssr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWFSRendererOutputCountMatchesLoudspeakers(t *testing.T) {
	const blockSize = 8
	loudspeakers := []Loudspeaker{
		{Pose: Pose{Orientation: IdentityOrientation()}, Weight: 1},
		{Pose: Pose{Position: NewPosition(1, 0, 0), Orientation: IdentityOrientation()}, Weight: 1},
	}
	q := NewCommandQueue(8)
	r := NewWFSRenderer(q, NewWorkerPool(1), blockSize, 1, 44100, loudspeakers, diracIR(blockSize), 100, 0)
	require.Len(t, r.outputs, 2)
}

func TestWFSRendererSubwooferDelayUsesReferenceDistance(t *testing.T) {
	const blockSize = 8
	loudspeakers := []Loudspeaker{
		{Model: OutputSubwoofer, Pose: Pose{Orientation: IdentityOrientation()}, Weight: 1},
	}
	q := NewCommandQueue(8)
	r := NewWFSRenderer(q, NewWorkerPool(1), blockSize, 1, 44100, loudspeakers, diracIR(blockSize), 1000, 0)

	src := Source{Gain: 1, Active: true, Model: ModelPoint,
		Pose: Pose{Position: NewPosition(3.43, 0, 0), Orientation: IdentityOrientation()}}
	ws, err := r.AddSource("voice", src)
	require.NoError(t, err)
	q.Activate()

	ws.Input = make([]float64, blockSize)
	r.Period()

	// distance to reference is 3.43m, speedOfSound 343 -> 0.01s -> 441
	// samples at 44100Hz.
	require.Equal(t, 441, ws.channels[0].delay.Get())
	// gain pipeline applies 1/r attenuation at r=3.43, reference dist 1,
	// decay 1; subwoofer weight for a point source is 1 before that scale.
	require.InDelta(t, 1.0/3.43, ws.channels[0].weight.Get(), 1e-9)
}

// TestWFSRendererNonFocusedPointSourceWeightIsCosineOnly exercises the
// default (point, non-focused) branch: the 1/sqrt(dist) drive-function
// scaling and the sqrt(dist) amplitude correction cancel exactly, leaving
// the loudspeaker-facing cosine as the only per-channel shape.
func TestWFSRendererNonFocusedPointSourceWeightIsCosineOnly(t *testing.T) {
	const blockSize = 8
	loudspeakers := []Loudspeaker{
		{Pose: Pose{Position: NewPosition(5, 0, 0), Orientation: IdentityOrientation()}, Weight: 1},
	}
	q := NewCommandQueue(8)
	r := NewWFSRenderer(q, NewWorkerPool(1), blockSize, 1, 34300, loudspeakers, diracIR(blockSize), 1000, 0)

	src := Source{Gain: 1, Active: true, Model: ModelPoint,
		Pose: Pose{Position: NewPosition(0, -1, 0), Orientation: IdentityOrientation()}}
	ws, err := r.AddSource("voice", src)
	require.NoError(t, err)
	q.Activate()

	ws.Input = make([]float64, blockSize)
	r.Period()

	require.Equal(t, 510, ws.channels[0].delay.Get())
	require.InDelta(t, 1.0/math.Sqrt(26), ws.channels[0].weight.Get(), 1e-9)
}

// TestWFSRendererFocusedSourceFlipsDelayAndWeightSign exercises the
// focused-source case: every non-subwoofer loudspeaker lies on the
// listener side of the source, so contributions are pre-delayed
// (negative delay) and polarity-flipped relative to the non-focused case.
func TestWFSRendererFocusedSourceFlipsDelayAndWeightSign(t *testing.T) {
	const blockSize = 8
	loudspeakers := []Loudspeaker{
		{Pose: Pose{Position: NewPosition(3, 3, 0), Orientation: IdentityOrientation()}, Weight: 1},
	}
	q := NewCommandQueue(8)
	r := NewWFSRenderer(q, NewWorkerPool(1), blockSize, 1, 34300, loudspeakers, diracIR(blockSize), 500, 400)

	src := Source{Gain: 1, Active: true, Model: ModelPoint,
		Pose: Pose{Position: NewPosition(0, 2, 0), Orientation: IdentityOrientation()}}
	ws, err := r.AddSource("voice", src)
	require.NoError(t, err)
	q.Activate()

	ws.Input = make([]float64, blockSize)
	r.Period()

	require.Equal(t, -316, ws.channels[0].delay.Get())
	require.InDelta(t, -0.5/math.Sqrt(10), ws.channels[0].weight.Get(), 1e-9)
}

func TestWFSRendererRemSourceUnknown(t *testing.T) {
	q := NewCommandQueue(8)
	r := NewWFSRenderer(q, NewWorkerPool(1), 8, 1, 44100, []Loudspeaker{{Pose: Pose{Orientation: IdentityOrientation()}}}, diracIR(8), 100, 0)
	require.ErrorIs(t, r.RemSource("ghost"), ErrUnknownSource)
}

func TestWFSRendererPeriodProducesFiniteOutput(t *testing.T) {
	const blockSize = 8
	loudspeakers := []Loudspeaker{
		{Pose: Pose{Position: NewPosition(1, 0, 0), Orientation: IdentityOrientation()}, Weight: 1},
		{Pose: Pose{Position: NewPosition(-1, 0, 0), Orientation: IdentityOrientation()}, Weight: 1},
	}
	q := NewCommandQueue(8)
	r := NewWFSRenderer(q, NewWorkerPool(1), blockSize, 1, 44100, loudspeakers, diracIR(blockSize), 100, 0)

	src := Source{Gain: 1, Active: true, Model: ModelPoint, Pose: Pose{Position: NewPosition(0, -2, 0), Orientation: IdentityOrientation()}}
	ws, err := r.AddSource("voice", src)
	require.NoError(t, err)
	q.Activate()

	ws.Input = make([]float64, blockSize)
	ws.Input[0] = 1
	r.Period()
	r.Period()

	for _, out := range r.outputs {
		for _, v := range out.Buffer {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	}
}
