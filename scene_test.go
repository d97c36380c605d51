package ssr

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func newTestSceneState() (*CommandQueue, *SceneState) {
	q := NewCommandQueue(8)
	return q, NewSceneState(q)
}

func TestGainPipelineMutedIsZero(t *testing.T) {
	_, state := newTestSceneState()
	src := &Source{Gain: 1, Active: true, Mute: true}
	require.Equal(t, 0.0, state.GainPipeline(src, true))
}

func TestGainPipelineInactiveIsZero(t *testing.T) {
	_, state := newTestSceneState()
	src := &Source{Gain: 1, Active: false}
	require.Equal(t, 0.0, state.GainPipeline(src, true))
}

func TestGainPipelineNotProcessingIsZero(t *testing.T) {
	q, state := newTestSceneState()
	src := &Source{Gain: 1, Active: true}
	state.Processing.Set(false)
	q.ProcessCommands()
	require.Equal(t, 0.0, state.GainPipeline(src, true))
}

func TestGainPipelinePlaneSourceSkipsDistanceModel(t *testing.T) {
	_, state := newTestSceneState()
	src := &Source{
		Gain:   2,
		Active: true,
		Model:  ModelPlane,
		Pose:   Pose{Position: NewPosition(100, 0, 0)},
	}
	require.Equal(t, 2.0, state.GainPipeline(src, true))
}

func TestGainPipelineIsNonNegativeAndFinite(t *testing.T) {
	_, state := newTestSceneState()
	src := &Source{
		Gain:   1,
		Active: true,
		Model:  ModelPoint,
		Pose:   Pose{Position: NewPosition(10, 0, 0)},
	}
	w := state.GainPipeline(src, true)
	require.GreaterOrEqual(t, w, 0.0)
	require.False(t, isInfOrNaN(w))
}

func TestGainPipelineDistanceAttenuationDecreasesWithRange(t *testing.T) {
	_, state := newTestSceneState()
	near := &Source{Gain: 1, Active: true, Model: ModelPoint, Pose: Pose{Position: NewPosition(1, 0, 0)}}
	far := &Source{Gain: 1, Active: true, Model: ModelPoint, Pose: Pose{Position: NewPosition(10, 0, 0)}}
	require.Greater(t, state.GainPipeline(near, true), state.GainPipeline(far, true))
}

func TestGainPipelineClampsBelowHalfMeter(t *testing.T) {
	_, state := newTestSceneState()
	atOrigin := &Source{Gain: 1, Active: true, Model: ModelPoint, Pose: Pose{Position: NewPosition(0, 0, 0)}}
	atQuarterMeter := &Source{Gain: 1, Active: true, Model: ModelPoint, Pose: Pose{Position: NewPosition(0.25, 0, 0)}}
	require.Equal(t, state.GainPipeline(atOrigin, true), state.GainPipeline(atQuarterMeter, true))
}

func TestReferencePointAppliesOffset(t *testing.T) {
	q, state := newTestSceneState()
	state.ReferenceOffset.Set(r3.Vec{X: 5})
	q.ProcessCommands()
	require.Equal(t, NewPosition(5, 0, 0), state.ReferencePoint())
}

func isInfOrNaN(v float64) bool {
	return v != v || v > 1e300 || v < -1e300
}
