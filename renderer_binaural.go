package ssr

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// HRTFSet is a head-related transfer function set: A azimuth angles, each
// with a partitioned left and right filter, loaded from a 2*A-channel
// impulse response file (spec §4.8 "Binaural", §6).
type HRTFSet struct {
	A     int
	Left  []*PartitionedFilter
	Right []*PartitionedFilter
}

func validateHRTFChannels(channels [][]float64) (int, error) {
	if len(channels) == 0 || len(channels)%2 != 0 {
		return 0, newConfigError("hrir_file", ErrInvalidConfig)
	}
	return len(channels) / 2, nil
}

// NewHRTFSet transforms an interleaved-L/R multichannel impulse response
// (channel 2k = left for azimuth k, 2k+1 = right) into a full HRTF set
// using conv's FFT plan and block size.
func NewHRTFSet(conv *Convolver, channels [][]float64) (*HRTFSet, error) {
	a, err := validateHRTFChannels(channels)
	if err != nil {
		return nil, err
	}
	set := &HRTFSet{A: a, Left: make([]*PartitionedFilter, a), Right: make([]*PartitionedFilter, a)}
	for k := 0; k < a; k++ {
		set.Left[k] = conv.PrepareFilter(channels[2*k])
		set.Right[k] = conv.PrepareFilter(channels[2*k+1])
	}
	return set, nil
}

// NewHRTFSetParallel prepares the same set as NewHRTFSet, one azimuth per
// task run through mimo.Prepare. Each task builds its own FFT plan rather
// than sharing one across goroutines; the engine's concurrency contract
// is unspecified, and this runs once at load time, off the realtime path.
func NewHRTFSetParallel(mimo *MIMOProcessor, blockSize int, channels [][]float64) (*HRTFSet, error) {
	a, err := validateHRTFChannels(channels)
	if err != nil {
		return nil, err
	}
	set := &HRTFSet{A: a, Left: make([]*PartitionedFilter, a), Right: make([]*PartitionedFilter, a)}
	tasks := make([]func() error, a)
	for k := 0; k < a; k++ {
		k := k
		tasks[k] = func() error {
			plan := newFFTPlan(2 * blockSize)
			set.Left[k] = PrepareFilter(plan, channels[2*k], blockSize)
			set.Right[k] = PrepareFilter(plan, channels[2*k+1], blockSize)
			return nil
		}
	}
	if err := mimo.Prepare(tasks...); err != nil {
		return nil, err
	}
	return set, nil
}

// neutralDiracFilter is a filter whose impulse response is a unit impulse
// at sample 0 (pure passthrough), used to blend towards when a source
// sits inside the near-field exclusion radius (spec §4.8: "an
// interpolation factor 1 - 2*distance blends the selected HRTF with a
// neutral dirac filter").
func neutralDiracFilter(conv *Convolver) *PartitionedFilter {
	ir := make([]float64, conv.blockSize)
	ir[0] = 1
	return conv.PrepareFilter(ir)
}

// wrapIndex wraps a float index into [0, n).
func wrapIndex(idx float64, n int) int {
	m := math.Mod(idx, float64(n))
	if m < 0 {
		m += float64(n)
	}
	return int(m)
}

func eqInt(a, b int) bool         { return a == b }
func eqFloat64(a, b float64) bool { return a == b }

// binauralSource is one source in the binaural renderer: a dual-channel
// convolver input, the per-period HRTF index selection, and the
// crossfade state needed to blend between the old and new filter/weight
// across a period (spec §4.6, §4.8).
type binauralSource struct {
	*Source
	conv         *Convolver
	left         *outputStage
	right        *outputStage
	hrtfIdx      BlockParameter[int]
	interpFactor BlockParameter[float64]
	hrtfSet      *HRTFSet
	dirac        *PartitionedFilter
	scene        *SceneState

	// mode is this period's crossfade classification (spec §4.6),
	// computed once in Process and consumed by the renderer's output
	// combine. leftFadeOut/rightFadeOut hold the pre-filter-swap
	// convolution against the old weight; leftResult/rightResult hold
	// the post-swap convolution against the new weight, filled by
	// updateLeft/updateRight when the combiner crosses into the
	// fade-in half of a change (or a plain fade-in).
	mode                      Selection
	leftFadeOut, rightFadeOut []float64
	leftResult, rightResult   []float64
}

// Process feeds this period's input block, recomputes the source's HRTF
// index and near-field blend factor against the current listener pose,
// and drives the filter's staggered partition update (spec §4.5, §4.8).
// Mirrors binauralrenderer.h's Source::_process: the pre-swap (old
// weight) convolution, queue rotation and filter install all happen here
// during the input walk; only the post-swap (new weight) convolution is
// deferred to the output combine's crossfade.
func (s *binauralSource) Process() {
	s.conv.AddBlock(s.Input)

	s.Weight.BeginPeriod()
	s.Weight.Set(s.scene.GainPipeline(s.Source, true))

	listener := s.scene.Reference.Get()
	invListenerRot := listener.Orientation.Inverse()
	toSource := r3.Sub(s.Pose.Position, s.scene.ReferencePoint())
	dist := Length(toSource)

	// Relative angle between source and listener, listener rotation
	// inverted (spec §4.8): rotate the source direction into the
	// listener's frame, plus 180 deg for plane waves.
	rel := invListenerRot.Rotate(toSource)
	azimuth := toDeg(math.Atan2(-rel.X, rel.Y))
	if s.Model == ModelPlane {
		azimuth += 180
	}
	idx := wrapIndex(azimuth*float64(s.hrtfSet.A)/360+0.5, s.hrtfSet.A)

	interp := 0.0
	if dist < 0.5 {
		interp = 1 - 2*dist
	}

	s.hrtfIdx.BeginPeriod()
	s.hrtfIdx.Set(idx)
	s.interpFactor.BeginPeriod()
	s.interpFactor.Set(interp)
	hrtfChanged := s.hrtfIdx.Changed(eqInt) || s.interpFactor.Changed(eqFloat64)

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

	// The fade-out (and, for a steady Constant period, the only)
	// contribution always convolves against the pre-swap filter and the
	// old weight, matching the filter and weight in effect for the
	// first part of this period.
	if s.mode != SelectNothing && s.mode != SelectFadeIn {
		s.leftFadeOut = s.conv.Convolve(s.left, oldW)
		s.rightFadeOut = s.conv.Convolve(s.right, oldW)
		if s.mode == SelectConstant {
			s.leftResult, s.rightResult = s.leftFadeOut, s.rightFadeOut
		}
	}

	if !queuesEmpty {
		s.left.RotateQueues()
		s.right.RotateQueues()
	}

	if hrtfChanged {
		leftFilter := s.hrtfSet.Left[idx]
		rightFilter := s.hrtfSet.Right[idx]
		if interp != 0 {
			leftFilter = blendFilters(s.dirac, leftFilter, interp)
			rightFilter = blendFilters(s.dirac, rightFilter, interp)
		}
		s.left.SetFilter(leftFilter)
		s.right.SetFilter(rightFilter)
	}
}

// updateLeft and updateRight recompute this period's post-swap
// convolution against the now-installed new filter and the new weight;
// called by the output combiner's Update hook between the fade-out and
// fade-in halves of a crossfade (spec §4.6).
func (s *binauralSource) updateLeft()  { s.leftResult = s.conv.Convolve(s.left, s.Weight.Get()) }
func (s *binauralSource) updateRight() { s.rightResult = s.conv.Convolve(s.right, s.Weight.Get()) }

// blendFilters linearly blends two prepared filters partition-by-partition
// (spec §4.8's near-field dirac blend), producing a new filter without
// re-running the forward transform.
func blendFilters(a, b *PartitionedFilter, t float64) *PartitionedFilter {
	n := a.NumPartitions()
	out := &PartitionedFilter{blockSize: a.blockSize, partitions: make([]*partition, n)}
	for i := 0; i < n; i++ {
		pa, pb := a.Partition(i), b.Partition(i)
		if pa.zero && pb.zero {
			out.partitions[i] = &partition{zero: true}
			continue
		}
		fftSize := 2 * a.blockSize
		freq := make([]complex128, fftSize)
		for k := range freq {
			var va, vb complex128
			if !pa.zero {
				va = pa.freq[k]
			}
			if !pb.zero {
				vb = pb.freq[k]
			}
			freq[k] = complex(t, 0)*va + complex(1-t, 0)*vb
		}
		out.partitions[i] = &partition{freq: freq}
	}
	return out
}

// BinauralRenderer renders sources via HRTF convolution to a stereo pair
// (spec §4.8 "Binaural").
type BinauralRenderer struct {
	base     *RendererBase[*binauralSource]
	conv     *Convolver
	hrtfSet  *HRTFSet
	dirac    *PartitionedFilter
	left     *Output
	right    *Output
	combiner *Combiner
}

// NewBinauralRenderer returns a binaural renderer with blockSize-sample
// periods, numPartitions partitions per convolver, using hrtfChannels
// (2*A deinterleaved impulse responses, e.g. from LoadImpulseResponseFile).
func NewBinauralRenderer(queue *CommandQueue, pool *WorkerPool, blockSize, numPartitions int, hrtfChannels [][]float64) (*BinauralRenderer, error) {
	conv := NewConvolver(blockSize, numPartitions)
	base := NewRendererBase[*binauralSource](queue, pool, blockSize)
	set, err := NewHRTFSetParallel(base.MIMO, blockSize, hrtfChannels)
	if err != nil {
		return nil, err
	}
	r := &BinauralRenderer{
		base:     base,
		conv:     conv,
		hrtfSet:  set,
		dirac:    neutralDiracFilter(conv),
		left:     &Output{Buffer: make([]float64, blockSize)},
		right:    &Output{Buffer: make([]float64, blockSize)},
		combiner: NewCombiner(blockSize),
	}
	return r, nil
}

// AddSource adds a new binaural source. If id is empty, an id is
// auto-generated.
func (r *BinauralRenderer) AddSource(id string, src Source) (*binauralSource, error) {
	return r.base.AddSource(id, func(resolvedID string) *binauralSource {
		src.ID = resolvedID
		bs := &binauralSource{
			Source:  &src,
			conv:    r.conv,
			left:    r.conv.NewOutputStage(),
			right:   r.conv.NewOutputStage(),
			hrtfSet: r.hrtfSet,
			dirac:   r.dirac,
			scene:   r.base.Scene,
		}
		bs.left.SetStaticFilter(r.hrtfSet.Left[0])
		bs.right.SetStaticFilter(r.hrtfSet.Right[0])
		return bs
	})
}

// NumOutputs always reports 2: left and right.
func (r *BinauralRenderer) NumOutputs() int { return 2 }

// OutputBuffer returns channel 0 (left) or 1 (right)'s most recently
// rendered block, valid until the next Period call.
func (r *BinauralRenderer) OutputBuffer(ch int) []float64 {
	if ch == 0 {
		return r.left.Buffer
	}
	return r.right.Buffer
}

// RemSource removes the source with the given id.
func (r *BinauralRenderer) RemSource(id string) error {
	return r.base.RemSource(id, nil)
}

// Period runs one audio period: feed inputs, convolve, combine into the
// left/right output buffers.
func (r *BinauralRenderer) Period() {
	r.base.MIMO.Period()
	r.combineOutput(r.left.Buffer,
		func(s *binauralSource) []float64 { return s.leftFadeOut },
		func(s *binauralSource) { s.updateLeft() },
		func(s *binauralSource) []float64 { return s.leftResult })
	r.combineOutput(r.right.Buffer,
		func(s *binauralSource) []float64 { return s.rightFadeOut },
		func(s *binauralSource) { s.updateRight() },
		func(s *binauralSource) []float64 { return s.rightResult })
}

// combineOutput crossfades every source's contribution to one channel
// buffer, using each source's own mode computed in Process (spec §4.6,
// §4.8). fadeOut, update and value read/write whichever of
// leftResult/rightResult this call is for.
func (r *BinauralRenderer) combineOutput(out []float64, fadeOut func(*binauralSource) []float64, update func(*binauralSource), value func(*binauralSource) []float64) {
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
