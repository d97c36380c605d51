package ssr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAAPWeightInPhaseAtSourceAzimuthIsOne(t *testing.T) {
	w := aapWeight(AAPInPhase, 3, 1.2, 1.2)
	require.InDelta(t, 1.0, w, 1e-9)
}

func TestAAPWeightInPhaseIsZeroOppositeSource(t *testing.T) {
	w := aapWeight(AAPInPhase, 2, math.Pi, 0)
	require.InDelta(t, 0.0, w, 1e-9)
}

func TestAAPWeightMaxRESingularityFallsBackToOne(t *testing.T) {
	w := aapWeight(AAPMaxRE, 4, 0.7, 0.7)
	require.InDelta(t, 1.0, w, 1e-9)
}

func TestAAPWeightMaxREMatchesDirichletKernelFormula(t *testing.T) {
	alpha, theta, m := 0.9, 0.2, 3
	half := (alpha - theta) / 2
	n := float64(2*m + 1)
	want := math.Sin(n*half) / (n * math.Sin(half))
	got := aapWeight(AAPMaxRE, m, alpha, theta)
	require.InDelta(t, want, got, 1e-9)
}

func TestNewAAPRendererDefaultOrderFromLoudspeakerCount(t *testing.T) {
	q := NewCommandQueue(8)
	loudspeakers := make([]Loudspeaker, 5)
	for i := range loudspeakers {
		loudspeakers[i] = Loudspeaker{Pose: Pose{Orientation: IdentityOrientation()}}
	}
	r := NewAAPRenderer(q, NewWorkerPool(1), 8, loudspeakers, AAPInPhase, 0)
	require.Equal(t, 2, r.order)
}

func TestNewAAPRendererExplicitOrderOverridesDefault(t *testing.T) {
	q := NewCommandQueue(8)
	loudspeakers := []Loudspeaker{{Pose: Pose{Orientation: IdentityOrientation()}}, {Pose: Pose{Orientation: IdentityOrientation()}}}
	r := NewAAPRenderer(q, NewWorkerPool(1), 8, loudspeakers, AAPInPhase, 5)
	require.Equal(t, 5, r.order)
}

func TestAAPRendererOutputCountMatchesLoudspeakers(t *testing.T) {
	q := NewCommandQueue(8)
	loudspeakers := []Loudspeaker{{Pose: Pose{Orientation: IdentityOrientation()}}, {Pose: Pose{Orientation: IdentityOrientation()}}, {Pose: Pose{Orientation: IdentityOrientation()}}}
	r := NewAAPRenderer(q, NewWorkerPool(1), 8, loudspeakers, AAPInPhase, 1)
	require.Len(t, r.outputs, 3)
}

// TestAAPRendererWeightsSourceAlignedLoudspeakerHighest places a source at
// the same azimuth as one loudspeaker and the opposite azimuth of
// another: the aligned channel gets the full gain-pipeline weight, the
// opposite channel gets (approximately) none.
func TestAAPRendererWeightsSourceAlignedLoudspeakerHighest(t *testing.T) {
	const blockSize = 8
	loudspeakers := []Loudspeaker{
		{Pose: Pose{Position: NewPosition(1, 0, 0), Orientation: IdentityOrientation()}, Weight: 1},
		{Pose: Pose{Position: NewPosition(-1, 0, 0), Orientation: IdentityOrientation()}, Weight: 1},
	}
	q := NewCommandQueue(8)
	r := NewAAPRenderer(q, NewWorkerPool(1), blockSize, loudspeakers, AAPInPhase, 1)

	src := Source{Gain: 1, Active: true, Model: ModelPoint, Pose: Pose{Position: NewPosition(2, 0, 0), Orientation: IdentityOrientation()}}
	as, err := r.AddSource("voice", src)
	require.NoError(t, err)
	q.Activate()

	as.Input = make([]float64, blockSize)
	r.Period()

	require.InDelta(t, 0.5, as.channels[0].Get(), 1e-9)
	require.InDelta(t, 0.0, as.channels[1].Get(), 1e-9)
}

func TestAAPRendererRemSourceUnknown(t *testing.T) {
	q := NewCommandQueue(8)
	r := NewAAPRenderer(q, NewWorkerPool(1), 8, []Loudspeaker{{Pose: Pose{Orientation: IdentityOrientation()}}}, AAPInPhase, 1)
	require.ErrorIs(t, r.RemSource("ghost"), ErrUnknownSource)
}

func TestAAPRendererPeriodProducesFiniteOutput(t *testing.T) {
	const blockSize = 8
	loudspeakers := []Loudspeaker{
		{Pose: Pose{Position: NewPosition(1, 0, 0), Orientation: IdentityOrientation()}, Weight: 1},
		{Pose: Pose{Position: NewPosition(0, 1, 0), Orientation: IdentityOrientation()}, Weight: 1},
		{Pose: Pose{Position: NewPosition(-1, 0, 0), Orientation: IdentityOrientation()}, Weight: 1},
	}
	q := NewCommandQueue(8)
	r := NewAAPRenderer(q, NewWorkerPool(1), blockSize, loudspeakers, AAPMaxRE, 2)

	src := Source{Gain: 1, Active: true, Model: ModelPoint, Pose: Pose{Position: NewPosition(0.5, 0.5, 0), Orientation: IdentityOrientation()}}
	as, err := r.AddSource("voice", src)
	require.NoError(t, err)
	q.Activate()

	as.Input = make([]float64, blockSize)
	as.Input[0] = 1
	r.Period()
	r.Period()

	for _, out := range r.outputs {
		for _, v := range out.Buffer {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	}
}
