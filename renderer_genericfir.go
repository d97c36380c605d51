package ssr

// genericFIRSource is one source in the generic FIR renderer: a single
// convolver input feeding O static output stages, one per renderer output,
// all loaded from one O-channel impulse-response file (spec §4.8 "Generic
// FIR").
type genericFIRSource struct {
	*Source
	conv    *Convolver
	outputs []*outputStage
	raw     [][]float64 // unscaled convolution result per output, this period
	// scaled/scaledOld are per-output scratch buffers the combine step
	// writes weight-scaled contributions into, sized once at construction
	// so InputSpec.Value/FadeOutValue never allocate.
	scaled    [][]float64
	scaledOld [][]float64
	scene     *SceneState
}

func (s *genericFIRSource) Process() {
	s.Weight.BeginPeriod()
	s.Weight.Set(s.scene.GainPipeline(s.Source, false))
	s.conv.AddBlock(s.Input)
}

type genericFIRConvolveStage struct{ s *genericFIRSource }

func (c *genericFIRConvolveStage) Process() {
	for o, stage := range c.s.outputs {
		c.s.raw[o] = c.s.conv.Convolve(stage, 1.0)
	}
}

func scaleInto(dst, src []float64, w float64) []float64 {
	for i, v := range src {
		dst[i] = v * w
	}
	return dst
}

// GenericFIRRenderer convolves each source against one FIR per output,
// loaded from a single O-channel impulse response file (spec §4.8).
type GenericFIRRenderer struct {
	base          *RendererBase[*genericFIRSource]
	outputs       []*Output
	combiner      *Combiner
	numPartitions int
	blockSize     int
	filter        [][]float64 // per-output channel of the O-channel IR file
	convolveSlots map[string]*itemSlot
}

// NewGenericFIRRenderer returns a renderer with O outputs, one FIR per
// output taken from irChannels (exactly O channels, spec §4.8).
func NewGenericFIRRenderer(queue *CommandQueue, pool *WorkerPool, blockSize, numPartitions int, irChannels [][]float64) (*GenericFIRRenderer, error) {
	if len(irChannels) == 0 {
		return nil, newConfigError("generic_fir channel count", ErrInvalidConfig)
	}
	outputs := make([]*Output, len(irChannels))
	for i := range outputs {
		outputs[i] = &Output{Buffer: make([]float64, blockSize)}
	}
	return &GenericFIRRenderer{
		base:          NewRendererBase[*genericFIRSource](queue, pool, blockSize),
		outputs:       outputs,
		combiner:      NewCombiner(blockSize),
		numPartitions: numPartitions,
		blockSize:     blockSize,
		filter:        irChannels,
		convolveSlots: make(map[string]*itemSlot),
	}, nil
}

// AddSource adds a source. The source's own channel count must match the
// renderer's O outputs; that's guaranteed here since every source shares
// the one filter set loaded at construction.
func (r *GenericFIRRenderer) AddSource(id string, src Source) (*genericFIRSource, error) {
	return r.base.AddSource(id, func(resolvedID string) *genericFIRSource {
		src.ID = resolvedID
		conv := NewConvolver(r.blockSize, r.numPartitions)
		o := len(r.outputs)
		gs := &genericFIRSource{
			Source:    &src,
			conv:      conv,
			outputs:   make([]*outputStage, o),
			raw:       make([][]float64, o),
			scaled:    make([][]float64, o),
			scaledOld: make([][]float64, o),
			scene:     r.base.Scene,
		}
		for i := 0; i < o; i++ {
			gs.outputs[i] = conv.NewOutputStage()
			gs.outputs[i].SetStaticFilter(conv.PrepareFilter(r.filter[i]))
			gs.scaled[i] = make([]float64, r.blockSize)
			gs.scaledOld[i] = make([]float64, r.blockSize)
		}
		slot := r.base.MIMO.AddIntermediate(&genericFIRConvolveStage{s: gs})
		r.convolveSlots[resolvedID] = slot
		return gs
	})
}

// NumOutputs reports the number of output channels.
func (r *GenericFIRRenderer) NumOutputs() int { return len(r.outputs) }

// OutputBuffer returns the most recently rendered block for output channel
// ch, valid until the next Period call.
func (r *GenericFIRRenderer) OutputBuffer(ch int) []float64 { return r.outputs[ch].Buffer }

// RemSource removes the source with the given id.
func (r *GenericFIRRenderer) RemSource(id string) error {
	if slot, ok := r.convolveSlots[id]; ok {
		r.base.MIMO.RemoveIntermediate(slot, nil)
		delete(r.convolveSlots, id)
	}
	return r.base.RemSource(id, nil)
}

// Period runs one audio period.
func (r *GenericFIRRenderer) Period() {
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
				Value:        func() []float64 { return scaleInto(s.scaled[o], s.raw[o], s.Weight.Get()) },
				FadeOutValue: func() []float64 { return scaleInto(s.scaledOld[o], s.raw[o], s.Weight.Old()) },
			})
		}
		r.combiner.CrossfadeCopy(out.Buffer, specs)
	}
}
