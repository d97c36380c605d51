package ssr

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// speedOfSound is c in m/s, used by the WFS delay/weight formulas (spec
// §4.8).
const speedOfSound = 343.0

// wfsChannelState is one (source, output) pair's delay and weight,
// recomputed every period from loudspeaker and source geometry (spec §3
// SourceChannel, §4.8 WFS).
type wfsChannelState struct {
	delay  BlockParameter[int]
	weight BlockParameter[float64]
}

// wfsSource is one source in the wave field synthesis renderer: a shared
// pre-equalisation FIR, a non-causal delay line, and one wfsChannelState
// per loudspeaker (spec §4.8 "Wave Field Synthesis").
type wfsSource struct {
	*Source
	preEQ       *Convolver
	preEQStage  *outputStage
	delayLine      *NonCausalDelayLine
	channels       []wfsChannelState
	readScratch    []float64
	readScratchOld []float64
	scene          *SceneState
}

func (s *wfsSource) Process() {
	s.Weight.BeginPeriod()
	s.Weight.Set(s.scene.GainPipeline(s.Source, true))
	s.preEQ.AddBlock(s.Input)
}

type wfsGeometryStage struct {
	s          *wfsSource
	renderer   *WFSRenderer
}

func forwardAxis(o Orientation) r3.Vec { return o.Rotate(r3.Vec{Y: 1}) }

func (g *wfsGeometryStage) Process() {
	s := g.s
	r := g.renderer

	preEQOut := s.preEQ.Convolve(s.preEQStage, 1.0)
	s.delayLine.Advance()
	s.delayLine.WriteBlock(preEQOut)

	refPoint := r.base.Scene.ReferencePoint()
	srcToRef := r3.Sub(refPoint, s.Pose.Position)

	focused := true
	for _, ls := range r.loudspeakers {
		if ls.Model == OutputSubwoofer {
			continue
		}
		if r3.Dot(r3.Sub(ls.Pose.Position, s.Pose.Position), srcToRef) >= 0 {
			focused = false
			break
		}
	}

	for o, ls := range r.loudspeakers {
		var delaySec, weight float64

		switch {
		case ls.Model == OutputSubwoofer:
			delaySec = Length(srcToRef) / speedOfSound
			if s.Model == ModelPlane {
				weight = s.Gain
			} else {
				weight = 1
			}

		case s.Model == ModelPlane:
			normal := forwardAxis(s.Pose.Orientation)
			perp := r3.Dot(r3.Sub(ls.Pose.Position, s.Pose.Position), normal)
			delaySec = math.Abs(perp) / speedOfSound
			weight = cosBetween(normal, forwardAxis(ls.Pose.Orientation))
			if weight < 0 {
				weight = 0
			}

		default: // point
			toLS := r3.Sub(ls.Pose.Position, s.Pose.Position)
			dist := Length(toLS)
			var cosAngle float64
			if dist > 0 {
				cosAngle = r3.Dot(r3.Scale(1/dist, toLS), forwardAxis(ls.Pose.Orientation))
			}
			weight = cosAngle / math.Sqrt(maxFloat(dist, 1e-6))
			delaySec = dist / speedOfSound

			flip := 1.0
			if focused {
				flip = -1
			}
			delaySec *= flip
			weight *= flip
			if weight < 0 && !focused {
				weight = 0
			}
			weight *= math.Sqrt(maxFloat(dist, 0.5))
		}

		weight *= ls.Weight
		delaySamples := int(math.Round(delaySec * r.sampleRate))
		if delaySamples < -s.delayLine.InitialDelay() {
			weight = 0
		}

		ch := &s.channels[o]
		ch.delay.BeginPeriod()
		ch.delay.Set(delaySamples)
		ch.weight.BeginPeriod()
		ch.weight.Set(weight * s.Weight.Get())
	}
}

func cosBetween(a, b r3.Vec) float64 {
	na, nb := Length(a), Length(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return r3.Dot(a, b) / (na * nb)
}

// WFSRenderer drives a loudspeaker array via pre-equalised, delayed,
// weighted contributions from each source (spec §4.8).
type WFSRenderer struct {
	base          *RendererBase[*wfsSource]
	loudspeakers  []Loudspeaker
	outputs       []*Output
	combiner      *Combiner
	preEQFilter   *PartitionedFilter
	numPartitions int
	blockSize     int
	sampleRate    float64
	maxDelay      int
	initialDelay  int
	geomSlots     map[string]*itemSlot
}

// NewWFSRenderer returns a WFS renderer for the given loudspeaker array,
// pre-equalisation impulse response (shared by every source), max_delay
// and initial_delay in samples (spec §4.8).
func NewWFSRenderer(queue *CommandQueue, pool *WorkerPool, blockSize, numPartitions int, sampleRate float64, loudspeakers []Loudspeaker, preEQ []float64, maxDelay, initialDelay int) *WFSRenderer {
	planConv := NewConvolver(blockSize, numPartitions)
	outputs := make([]*Output, len(loudspeakers))
	for i, ls := range loudspeakers {
		outputs[i] = &Output{Pose: ls.Pose, Model: ls.Model, Delay: ls.Delay, Weight: ls.Weight, Buffer: make([]float64, blockSize)}
	}
	return &WFSRenderer{
		base:          NewRendererBase[*wfsSource](queue, pool, blockSize),
		loudspeakers:  loudspeakers,
		outputs:       outputs,
		combiner:      NewCombiner(blockSize),
		preEQFilter:   planConv.PrepareFilter(preEQ),
		numPartitions: numPartitions,
		blockSize:     blockSize,
		sampleRate:    sampleRate,
		maxDelay:      maxDelay,
		initialDelay:  initialDelay,
		geomSlots:     make(map[string]*itemSlot),
	}
}

// AddSource adds a new WFS source.
func (r *WFSRenderer) AddSource(id string, src Source) (*wfsSource, error) {
	return r.base.AddSource(id, func(resolvedID string) *wfsSource {
		src.ID = resolvedID
		conv := NewConvolver(r.blockSize, r.numPartitions)
		stage := conv.NewOutputStage()
		stage.SetStaticFilter(r.preEQFilter)
		ws := &wfsSource{
			Source:      &src,
			preEQ:       conv,
			preEQStage:  stage,
			delayLine:      NewNonCausalDelayLine(r.blockSize, r.maxDelay, r.initialDelay),
			channels:       make([]wfsChannelState, len(r.loudspeakers)),
			readScratch:    make([]float64, r.blockSize),
			readScratchOld: make([]float64, r.blockSize),
			scene:          r.base.Scene,
		}
		slot := r.base.MIMO.AddIntermediate(&wfsGeometryStage{s: ws, renderer: r})
		r.geomSlots[resolvedID] = slot
		return ws
	})
}

// NumOutputs reports the number of loudspeaker output channels.
func (r *WFSRenderer) NumOutputs() int { return len(r.outputs) }

// OutputBuffer returns the most recently rendered block for output channel
// ch, valid until the next Period call.
func (r *WFSRenderer) OutputBuffer(ch int) []float64 { return r.outputs[ch].Buffer }

// RemSource removes the source with the given id.
func (r *WFSRenderer) RemSource(id string) error {
	if slot, ok := r.geomSlots[id]; ok {
		r.base.MIMO.RemoveIntermediate(slot, nil)
		delete(r.geomSlots, id)
	}
	return r.base.RemSource(id, nil)
}

// Period runs one audio period.
func (r *WFSRenderer) Period() {
	r.base.MIMO.Period()
	ids := r.base.SourceIDs()
	for o, out := range r.outputs {
		o := o
		specs := make([]InputSpec, 0, len(ids))
		for _, id := range ids {
			s, ok := r.base.GetSource(id)
			if !ok {
				continue
			}
			ch := &s.channels[o]
			specs = append(specs, InputSpec{
				Classify: func() Selection {
					sameWeight := ch.weight.Get() == ch.weight.Old()
					sameDelay := ch.delay.Get() == ch.delay.Old()
					switch {
					case ch.weight.Get() == 0 && ch.weight.Old() == 0:
						return SelectNothing
					case sameWeight && sameDelay:
						return SelectConstant
					default:
						return SelectChange
					}
				},
				Value: func() []float64 {
					s.delayLine.ReadBlockWeighted(s.readScratch, ch.delay.Get(), ch.weight.Get())
					return s.readScratch
				},
				FadeOutValue: func() []float64 {
					s.delayLine.ReadBlockWeighted(s.readScratchOld, ch.delay.Old(), ch.weight.Old())
					return s.readScratchOld
				},
			})
		}
		r.combiner.CrossfadeCopy(out.Buffer, specs)
	}
}
