package ssr

import "math"

// AAPWeighting selects the ambisonics decoding weight formula (spec §4.8
// "Ambisonics Amplitude Panning").
type AAPWeighting int

const (
	AAPInPhase AAPWeighting = iota
	AAPMaxRE
)

// aapSource is one source in the AAP renderer: a per-output weight,
// recomputed every period from the source's and each loudspeaker's
// azimuth.
type aapSource struct {
	*Source
	channels []BlockParameter[float64]
	scratch  []float64
	scene    *SceneState
}

func (s *aapSource) Process() {
	s.Weight.BeginPeriod()
	s.Weight.Set(s.scene.GainPipeline(s.Source, true))
}

type aapPanStage struct {
	s        *aapSource
	renderer *AAPRenderer
}

func (p *aapPanStage) Process() {
	s := p.s
	r := p.renderer
	ref := r.base.Scene.ReferencePoint()
	theta := azimuthOf(s.Pose.Position, ref)

	for o, ls := range r.loudspeakers {
		alpha := azimuthOf(ls.Pose.Position, ref)
		w := aapWeight(r.weighting, r.order, alpha, theta) * s.Weight.Get()
		s.channels[o].BeginPeriod()
		s.channels[o].Set(w)
	}
}

// aapWeight evaluates the in-phase or max-rE decoding weight (spec §4.8).
// Near the singularity at alpha == theta the max-rE form's 0/0 is defined
// as 1 (spec: "near the singularity the max-rE form falls back to 1").
func aapWeight(weighting AAPWeighting, m int, alpha, theta float64) float64 {
	half := (alpha - theta) / 2
	if weighting == AAPInPhase {
		return math.Pow(math.Cos(half), float64(2*m))
	}
	const singularityEps = 1e-9
	if math.Abs(math.Sin(half)) < singularityEps {
		return 1
	}
	n := float64(2*m + 1)
	return math.Sin(n*half) / (n * math.Sin(half))
}

// AAPRenderer decodes each source to a loudspeaker array via ambisonics
// amplitude panning (spec §4.8 "Ambisonics Amplitude Panning").
type AAPRenderer struct {
	base         *RendererBase[*aapSource]
	loudspeakers []Loudspeaker
	outputs      []*Output
	combiner     *Combiner
	weighting    AAPWeighting
	order        int
	panSlots     map[string]*itemSlot
}

// NewAAPRenderer returns an AAP renderer over loudspeakers, decoding at
// ambisonics order m (if m <= 0, defaults to (L-1)/2 for L loudspeakers,
// per spec §4.8) using the given weighting scheme.
func NewAAPRenderer(queue *CommandQueue, pool *WorkerPool, blockSize int, loudspeakers []Loudspeaker, weighting AAPWeighting, m int) *AAPRenderer {
	if m <= 0 {
		m = (len(loudspeakers) - 1) / 2
		if m < 0 {
			m = 0
		}
	}
	r := &AAPRenderer{
		base:         NewRendererBase[*aapSource](queue, pool, blockSize),
		loudspeakers: loudspeakers,
		combiner:     NewCombiner(blockSize),
		weighting:    weighting,
		order:        m,
		panSlots:     make(map[string]*itemSlot),
	}
	r.outputs = make([]*Output, len(loudspeakers))
	for i, ls := range loudspeakers {
		r.outputs[i] = &Output{Pose: ls.Pose, Model: ls.Model, Delay: ls.Delay, Weight: ls.Weight, Buffer: make([]float64, blockSize)}
	}
	return r
}

// AddSource adds a new AAP source.
func (r *AAPRenderer) AddSource(id string, src Source) (*aapSource, error) {
	return r.base.AddSource(id, func(resolvedID string) *aapSource {
		src.ID = resolvedID
		as := &aapSource{
			Source:   &src,
			channels: make([]BlockParameter[float64], len(r.loudspeakers)),
			scratch:  make([]float64, r.base.BlockSize),
			scene:    r.base.Scene,
		}
		slot := r.base.MIMO.AddIntermediate(&aapPanStage{s: as, renderer: r})
		r.panSlots[resolvedID] = slot
		return as
	})
}

// NumOutputs reports the number of loudspeaker output channels.
func (r *AAPRenderer) NumOutputs() int { return len(r.outputs) }

// OutputBuffer returns the most recently rendered block for output channel
// ch, valid until the next Period call.
func (r *AAPRenderer) OutputBuffer(ch int) []float64 { return r.outputs[ch].Buffer }

// RemSource removes the source with the given id.
func (r *AAPRenderer) RemSource(id string) error {
	if slot, ok := r.panSlots[id]; ok {
		r.base.MIMO.RemoveIntermediate(slot, nil)
		delete(r.panSlots, id)
	}
	return r.base.RemSource(id, nil)
}

// Period runs one audio period.
func (r *AAPRenderer) Period() {
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
					switch {
					case ch.Get() == 0 && ch.Old() == 0:
						return SelectNothing
					case ch.Get() == ch.Old():
						return SelectConstant
					default:
						return SelectChange
					}
				},
				Value: func() []float64 { return scaleInto(s.scratch, s.Input, ch.Get()) },
				ChangeAt: func() []float64 {
					old, cur := ch.Old(), ch.Get()
					n := len(s.Input)
					for i, v := range s.Input {
						t := float64(i) / float64(n)
						s.scratch[i] = v * (old + (cur-old)*t)
					}
					return s.scratch
				},
			})
		}
		r.combiner.Interpolate(out.Buffer, specs)
	}
}
