package ssr

// passthroughSource is one source in the passthrough renderer: its input
// is copied to the single output channel chosen at AddSource, weighted only
// by the common gain pipeline. Supplements the distilled renderer set with
// a trivial back-end for monitoring and test scenes (original_source/'s
// bypass/debug renderer), not one of §4.8's spatialisation models.
type passthroughSource struct {
	*Source
	channel int // fixed output index this source feeds
	scratch []float64
	scene   *SceneState
}

func (s *passthroughSource) Process() {
	s.Weight.BeginPeriod()
	s.Weight.Set(s.scene.GainPipeline(s.Source, false))
}

// PassthroughRenderer copies each source's input, scaled by its gain
// pipeline weight, directly to one fixed output channel: no spatialisation,
// convolution, or delay.
type PassthroughRenderer struct {
	base     *RendererBase[*passthroughSource]
	outputs  []*Output
	combiner *Combiner
}

// NewPassthroughRenderer returns a renderer with numOutputs plain output
// channels.
func NewPassthroughRenderer(queue *CommandQueue, pool *WorkerPool, blockSize, numOutputs int) *PassthroughRenderer {
	outputs := make([]*Output, numOutputs)
	for i := range outputs {
		outputs[i] = &Output{Buffer: make([]float64, blockSize)}
	}
	return &PassthroughRenderer{
		base:     NewRendererBase[*passthroughSource](queue, pool, blockSize),
		outputs:  outputs,
		combiner: NewCombiner(blockSize),
	}
}

// AddSource adds a source feeding output channel `channel` directly.
func (r *PassthroughRenderer) AddSource(id string, src Source, channel int) (*passthroughSource, error) {
	if channel < 0 || channel >= len(r.outputs) {
		return nil, newConfigError("passthrough channel", ErrInvalidConfig)
	}
	return r.base.AddSource(id, func(resolvedID string) *passthroughSource {
		src.ID = resolvedID
		return &passthroughSource{
			Source:  &src,
			channel: channel,
			scratch: make([]float64, r.base.BlockSize),
			scene:   r.base.Scene,
		}
	})
}

// NumOutputs reports the number of output channels.
func (r *PassthroughRenderer) NumOutputs() int { return len(r.outputs) }

// OutputBuffer returns the most recently rendered block for output channel
// ch, valid until the next Period call.
func (r *PassthroughRenderer) OutputBuffer(ch int) []float64 { return r.outputs[ch].Buffer }

// RemSource removes the source with the given id.
func (r *PassthroughRenderer) RemSource(id string) error { return r.base.RemSource(id, nil) }

// Period runs one audio period.
func (r *PassthroughRenderer) Period() {
	r.base.MIMO.Period()
	ids := r.base.SourceIDs()
	for o, out := range r.outputs {
		o := o
		specs := make([]InputSpec, 0, len(ids))
		for _, id := range ids {
			s, ok := r.base.GetSource(id)
			if !ok || s.channel != o {
				continue
			}
			specs = append(specs, InputSpec{
				Classify: func() Selection {
					switch {
					case s.Weight.Get() == 0 && s.Weight.Old() == 0:
						return SelectNothing
					case s.Weight.Get() == s.Weight.Old():
						return SelectConstant
					default:
						return SelectChange
					}
				},
				Value: func() []float64 { return scaleInto(s.scratch, s.Input, s.Weight.Get()) },
			})
		}
		r.combiner.CrossfadeCopy(out.Buffer, specs)
	}
}
