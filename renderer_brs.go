package ssr

// brsSource is one source in the binaural room synthesis renderer: its own
// 2*A BRIR set, convolved against the listener's rotation only (spec §4.8
// "Binaural Room Synthesis": "Filter selection depends solely on listener
// rotation (source position is ignored: BRIRs are measured at a specific
// listener position)").
type brsSource struct {
	*Source
	conv    *Convolver
	left    *outputStage
	right   *outputStage
	hrtfIdx BlockParameter[int]
	brirSet *HRTFSet
	scene   *SceneState

	// mode, fadeOut and result mirror binauralSource's crossfade state
	// (spec §4.6): fadeOut is the pre-swap convolution against the old
	// weight, result is the post-swap convolution the output combiner's
	// Update hook fills in against the new filter and weight.
	mode    Selection
	fadeOut struct{ left, right []float64 }
	result  struct{ left, right []float64 }
}

// Process feeds this period's input block, reselects the BRIR for the
// current listener rotation, and drives the filter's staggered partition
// update (spec §4.5, §4.8), mirroring binauralSource.Process without the
// near-field blend (BRS ignores source position entirely).
func (s *brsSource) Process() {
	s.conv.AddBlock(s.Input)

	s.Weight.BeginPeriod()
	s.Weight.Set(s.scene.GainPipeline(s.Source, false))

	listener := s.scene.Reference.Get()
	azimuth, _, _ := listener.Orientation.Inverse().ZXY()
	idx := wrapIndex(azimuth*float64(s.brirSet.A)/360+0.5, s.brirSet.A)

	s.hrtfIdx.BeginPeriod()
	s.hrtfIdx.Set(idx)
	hrtfChanged := s.hrtfIdx.Changed(eqInt)

	queuesEmpty := s.left.QueuesEmpty()
	oldW, newW := s.Weight.Old(), s.Weight.Get()

	switch {
	case oldW == 0 && newW == 0:
		s.mode = SelectNothing
	case oldW == 0:
		s.mode = SelectFadeIn
	case newW == 0:
		s.mode = SelectFadeOut
	case queuesEmpty && !hrtfChanged && oldW == newW:
		s.mode = SelectConstant
	default:
		s.mode = SelectChange
	}

	if s.mode != SelectNothing && s.mode != SelectFadeIn {
		s.fadeOut.left = s.conv.Convolve(s.left, oldW)
		s.fadeOut.right = s.conv.Convolve(s.right, oldW)
		if s.mode == SelectConstant {
			s.result.left, s.result.right = s.fadeOut.left, s.fadeOut.right
		}
	}

	if !queuesEmpty {
		s.left.RotateQueues()
		s.right.RotateQueues()
	}

	if hrtfChanged {
		s.left.SetFilter(s.brirSet.Left[idx])
		s.right.SetFilter(s.brirSet.Right[idx])
	}
}

func (s *brsSource) updateLeft()  { s.result.left = s.conv.Convolve(s.left, s.Weight.Get()) }
func (s *brsSource) updateRight() { s.result.right = s.conv.Convolve(s.right, s.Weight.Get()) }

// BRSRenderer is the binaural room synthesis back-end (spec §4.8).
type BRSRenderer struct {
	base          *RendererBase[*brsSource]
	left, right   *Output
	combiner      *Combiner
	numPartitions int
	blockSize     int
}

// NewBRSRenderer returns a BRS renderer with blockSize-sample periods and
// numPartitions partitions per source convolver; each source supplies its
// own BRIR set via AddSource.
func NewBRSRenderer(queue *CommandQueue, pool *WorkerPool, blockSize, numPartitions int) *BRSRenderer {
	return &BRSRenderer{
		base:          NewRendererBase[*brsSource](queue, pool, blockSize),
		left:          &Output{Buffer: make([]float64, blockSize)},
		right:         &Output{Buffer: make([]float64, blockSize)},
		combiner:      NewCombiner(blockSize),
		numPartitions: numPartitions,
		blockSize:     blockSize,
	}
}

// AddSource adds a source with its own BRIR channel set (2*A deinterleaved
// impulse responses).
func (r *BRSRenderer) AddSource(id string, src Source, brirChannels [][]float64) (*brsSource, error) {
	conv := NewConvolver(r.blockSize, r.numPartitions)
	set, err := NewHRTFSetParallel(r.base.MIMO, r.blockSize, brirChannels)
	if err != nil {
		return nil, err
	}
	return r.base.AddSource(id, func(resolvedID string) *brsSource {
		src.ID = resolvedID
		bs := &brsSource{
			Source:  &src,
			conv:    conv,
			left:    conv.NewOutputStage(),
			right:   conv.NewOutputStage(),
			brirSet: set,
			scene:   r.base.Scene,
		}
		bs.left.SetStaticFilter(set.Left[0])
		bs.right.SetStaticFilter(set.Right[0])
		return bs
	})
}

// NumOutputs always reports 2: left and right.
func (r *BRSRenderer) NumOutputs() int { return 2 }

// OutputBuffer returns channel 0 (left) or 1 (right)'s most recently
// rendered block, valid until the next Period call.
func (r *BRSRenderer) OutputBuffer(ch int) []float64 {
	if ch == 0 {
		return r.left.Buffer
	}
	return r.right.Buffer
}

// RemSource removes the source with the given id.
func (r *BRSRenderer) RemSource(id string) error {
	return r.base.RemSource(id, nil)
}

// Period runs one audio period.
func (r *BRSRenderer) Period() {
	r.base.MIMO.Period()
	r.combine(r.left.Buffer,
		func(s *brsSource) []float64 { return s.fadeOut.left },
		func(s *brsSource) { s.updateLeft() },
		func(s *brsSource) []float64 { return s.result.left })
	r.combine(r.right.Buffer,
		func(s *brsSource) []float64 { return s.fadeOut.right },
		func(s *brsSource) { s.updateRight() },
		func(s *brsSource) []float64 { return s.result.right })
}

func (r *BRSRenderer) combine(out []float64, fadeOut func(*brsSource) []float64, update func(*brsSource), value func(*brsSource) []float64) {
	ids := r.base.SourceIDs()
	specs := make([]InputSpec, 0, len(ids))
	for _, id := range ids {
		s, ok := r.base.GetSource(id)
		if !ok {
			continue
		}
		specs = append(specs, InputSpec{
			Classify:     func() Selection { return s.mode },
			FadeOutValue: func() []float64 { return fadeOut(s) },
			Update:       func() { update(s) },
			Value:        func() []float64 { return value(s) },
		})
	}
	r.combiner.CrossfadeCopy(out, specs)
}
