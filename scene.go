package ssr

import (
	"fmt"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"
)

// SourceModel tags a source's radiation model (spec §3).
type SourceModel int

const (
	ModelPoint SourceModel = iota
	ModelPlane
	ModelSubwoofer
)

// OutputModel tags a loudspeaker's role (spec §6: "normal" or "subwoofer").
type OutputModel int

const (
	OutputNormal OutputModel = iota
	OutputSubwoofer
)

// Pose is a position + orientation pair, used for both sources, outputs,
// and the listener reference (spec §3, §4.9).
type Pose struct {
	Position    Position
	Orientation Orientation
}

// Source is a virtual sound source (spec §3). Renderers embed Source in
// their own per-renderer Source type, adding renderer-specific fields
// (HRTF index, convolver input, delay line, ...).
type Source struct {
	ID      string
	Pose    Pose
	Gain    float64
	Mute    bool
	Active  bool
	Model   SourceModel
	Input   []float64 // current period's input block, set by the host and read by the input-list walk

	// Weight is the common gain-pipeline output (spec §4.8): 0 when
	// muted/inactive/not-processing, otherwise gain * master_volume *
	// master_volume_correction, further scaled by the distance model for
	// point sources. Assigned exactly once per period.
	Weight BlockParameter[float64]
}

// AsSource returns src itself. Every renderer's own source type embeds
// *Source, so this promotes automatically and lets the scripting control
// surface address any renderer's sources through one generic adapter
// (scripting.go) without a type switch per back-end.
func (src *Source) AsSource() *Source { return src }

// Output is one physical output: a loudspeaker or headphone channel
// (spec §3).
type Output struct {
	Pose   Pose
	Model  OutputModel
	Delay  float64 // seconds, non-negative
	Weight float64 // linear amplitude weight, from the loudspeaker setup file
	Buffer []float64
}

// Loudspeaker is the setup-file representation of an Output before it is
// bound to a renderer (spec §3, §6).
type Loudspeaker struct {
	Pose   Pose
	Model  OutputModel
	Delay  float64
	Weight float64
}

// autoIDCounter allocates `.ssr:<n>` ids for sources created without an
// explicit id (spec §4.8, §9), grounded on coprocessor_manager.go's
// ticket counter (nextTicket).
type autoIDCounter struct{ n atomic.Uint64 }

func (c *autoIDCounter) next() string {
	return fmt.Sprintf(".ssr:%d", c.n.Add(1))
}

// SceneState holds the renderer-wide, command-queue-written state common
// to every back-end (spec §4.8): listener reference pose, master volume,
// and the processing flag gating all per-source weight computation.
type SceneState struct {
	Reference              *SharedData[Pose]
	ReferenceOffset        *SharedData[r3.Vec]
	MasterVolume           *SharedData[float64]
	MasterVolumeCorrection *SharedData[float64] // linear factor, 1.0 unless set through SharedData
	Processing             *SharedData[bool]
	DecayExponent          *SharedData[float64]
	AmplitudeReferenceDist *SharedData[float64]
}

// NewSceneState returns scene state with spec-reasonable defaults, written
// and read through queue.
func NewSceneState(queue *CommandQueue) *SceneState {
	return &SceneState{
		Reference:              NewSharedData(queue, Pose{Orientation: IdentityOrientation()}),
		ReferenceOffset:        NewSharedData(queue, r3.Vec{}),
		MasterVolume:           NewSharedData(queue, 1.0),
		MasterVolumeCorrection: NewSharedData(queue, 1.0),
		Processing:             NewSharedData(queue, true),
		DecayExponent:          NewSharedData(queue, 1.0),
		AmplitudeReferenceDist: NewSharedData(queue, 1.0),
	}
}

// ReferencePoint returns the reference position with the per-period
// offset applied (spec §4.8: "distance from source to reference+offset").
func (s *SceneState) ReferencePoint() r3.Vec {
	ref := s.Reference.Get()
	return r3.Add(ref.Position, s.ReferenceOffset.Get())
}

// GainPipeline computes a source's weighting factor for the current
// period (spec §4.8's common gain pipeline, shared by every renderer
// except where noted otherwise — BRS and the generic FIR renderer skip
// the distance-decay step, per spec: "For non-BRS, non-generic renderers
// ... point sources multiply by ...").
func (s *SceneState) GainPipeline(src *Source, applyDistanceModel bool) float64 {
	if !s.Processing.Get() || src.Mute || !src.Active {
		return 0
	}
	weight := src.Gain * s.MasterVolume.Get() * s.MasterVolumeCorrection.Get()
	if !applyDistanceModel || src.Model == ModelPlane {
		return weight
	}
	r := Length(r3.Sub(src.Pose.Position, s.ReferencePoint()))
	decay := s.DecayExponent.Get()
	refDist := s.AmplitudeReferenceDist.Get()
	attenuation := math.Pow(maxFloat(r, 0.5), -decay) * math.Pow(refDist, decay)
	return weight * attenuation
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
