package ssr

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// fftPlan wraps an algofft engine for one fixed transform size, the same
// thin adapter shape as the fftEngine helper in the partitioned-convolution
// reference this file is grounded on (other_examples/CWBudde-algo-dsp):
// construct once per partition size, reuse across periods.
type fftPlan struct {
	size int
	engine *algofft.FFT[complex128]
}

func newFFTPlan(size int) *fftPlan {
	engine, err := algofft.New[complex128](size)
	if err != nil {
		panic(fmt.Sprintf("ssr: fft plan size %d: %v", size, err))
	}
	return &fftPlan{size: size, engine: engine}
}

func (p *fftPlan) forward(dst, src []complex128) { p.engine.Forward(dst, src) }
func (p *fftPlan) inverse(dst, src []complex128) { p.engine.Inverse(dst, src) }

// packReal copies real samples into the real component of complex slots,
// leaving the imaginary component zero.
func packReal(dst []complex128, src []float64) {
	for i, v := range src {
		dst[i] = complex(v, 0)
	}
}

// unpackReal copies the real component of each complex slot into dst.
func unpackReal(dst []float64, src []complex128) {
	for i, c := range src {
		dst[i] = real(c)
	}
}

func allZero(xs []float64) bool {
	for _, v := range xs {
		if v != 0 {
			return false
		}
	}
	return true
}

// partition is one frequency-domain block of a uniformly partitioned
// overlap-save convolution (spec §4.5, C5): the FFT of a 2*blockSize window,
// half of it always zero-padded. zero short-circuits the multiply-accumulate
// in Convolve when the block it came from was silent.
type partition struct {
	freq []complex128 // length fftSize = 2*blockSize
	zero bool
}

// PartitionedFilter is the frequency-domain representation of a static
// impulse response, split into fixed-size blocks and transformed once at
// preparation time (spec §4.5: "prepare_filter splits the impulse response
// into block_size chunks, zero-pads each, and transforms it").
type PartitionedFilter struct {
	blockSize  int
	partitions []*partition
}

// PrepareFilter splits ir into blocks of blockSize samples, zero-pads each
// into the first half of a 2*blockSize window (second half stays zero) and
// transforms it, producing one partition per block. A chunk of all zeros
// (including the single empty chunk of an empty ir) is marked zero and
// never transformed.
func PrepareFilter(plan *fftPlan, ir []float64, blockSize int) *PartitionedFilter {
	numPartitions := (len(ir) + blockSize - 1) / blockSize
	if numPartitions == 0 {
		numPartitions = 1
	}
	fftSize := 2 * blockSize
	f := &PartitionedFilter{blockSize: blockSize, partitions: make([]*partition, numPartitions)}
	for i := 0; i < numPartitions; i++ {
		start := i * blockSize
		end := start + blockSize
		if end > len(ir) {
			end = len(ir)
		}
		chunk := ir[start:end]
		if len(chunk) == 0 || allZero(chunk) {
			f.partitions[i] = &partition{zero: true}
			continue
		}
		window := make([]float64, fftSize)
		copy(window, chunk)
		buf := make([]complex128, fftSize)
		packReal(buf, window)
		freq := make([]complex128, fftSize)
		plan.forward(freq, buf)
		f.partitions[i] = &partition{freq: freq}
	}
	return f
}

// NumPartitions reports the number of partitions the filter was split into.
func (f *PartitionedFilter) NumPartitions() int { return len(f.partitions) }

// Partition returns partition i, or a permanently-zero placeholder if i is
// beyond the filter's length (shorter filters assigned to a longer
// convolver just contribute nothing from their missing tail partitions).
func (f *PartitionedFilter) Partition(i int) *partition {
	if i < 0 || i >= len(f.partitions) {
		return &partition{zero: true}
	}
	return f.partitions[i]
}

// inputStage stores the last numPartitions+1 transformed windows of the
// input signal as a ring (spec §4.5 "Input"), so the output stage can pair
// filter partition i with the input window from i periods ago without
// re-transforming anything per period beyond the newest window.
type inputStage struct {
	plan      *fftPlan
	blockSize int
	ring      []*partition // length numPartitions+1
	base      int          // ring index holding the current (0-period-old) window
	prevBlock []float64    // raw samples from the previous AddBlock call
}

func newInputStage(plan *fftPlan, blockSize, numPartitions int) *inputStage {
	ring := make([]*partition, numPartitions+1)
	for i := range ring {
		ring[i] = &partition{zero: true}
	}
	return &inputStage{
		plan:      plan,
		blockSize: blockSize,
		ring:      ring,
		prevBlock: make([]float64, blockSize),
	}
}

// AddBlock transforms the window [previous block, newBlock] and makes it
// the ring's current (0-periods-old) entry, evicting the oldest. Call
// exactly once per audio period, before any Convolve using this stage.
func (s *inputStage) AddBlock(newBlock []float64) {
	debugAssert(len(newBlock) == s.blockSize, "inputStage.AddBlock: block length mismatch")

	s.base = (s.base - 1 + len(s.ring)) % len(s.ring)
	slot := s.ring[s.base]

	if allZero(s.prevBlock) && allZero(newBlock) {
		slot.zero = true
		slot.freq = nil
	} else {
		fftSize := 2 * s.blockSize
		window := make([]float64, fftSize)
		copy(window[:s.blockSize], s.prevBlock)
		copy(window[s.blockSize:], newBlock)
		buf := make([]complex128, fftSize)
		packReal(buf, window)
		if slot.freq == nil {
			slot.freq = make([]complex128, fftSize)
		}
		s.plan.forward(slot.freq, buf)
		slot.zero = false
	}

	copy(s.prevBlock, newBlock)
}

// at returns the transformed window i periods old (0 = the window just
// added by the most recent AddBlock).
func (s *inputStage) at(i int) *partition {
	return s.ring[(s.base+i)%len(s.ring)]
}

// pendingUpdate is one scheduled filter-partition swap on a dynamic output
// stage, counted down once per RotateQueues call.
type pendingUpdate struct {
	index       int
	partition   *partition
	periodsLeft int
}

// outputStage accumulates partition products in the frequency domain and
// performs a single inverse transform per period (spec §4.5 "Output"). A
// dynamic output stage (one per live source/channel pair, typically) may
// have its filter replaced at runtime; replacement is staggered across
// numPartitions periods via RotateQueues so that at most one partition's
// worth of extra CPU work happens in any given period (spec §4.5: "Filter
// updates are staggered across partitions to spread the one-time cost of
// swapping a long filter").
type outputStage struct {
	plan       *fftPlan
	blockSize  int
	partitions []*partition
	pending    []pendingUpdate
	accum      []complex128
	ifftBuf    []complex128
	timeBuf    []float64
	zeroTail   []float64
}

func newOutputStage(plan *fftPlan, blockSize, numPartitions int) *outputStage {
	fftSize := 2 * blockSize
	partitions := make([]*partition, numPartitions)
	for i := range partitions {
		partitions[i] = &partition{zero: true}
	}
	return &outputStage{
		plan:       plan,
		blockSize:  blockSize,
		partitions: partitions,
		accum:      make([]complex128, fftSize),
		ifftBuf:    make([]complex128, fftSize),
		timeBuf:    make([]float64, fftSize),
		zeroTail:   make([]float64, blockSize),
	}
}

// SetStaticFilter installs filter's partitions directly, with no staggered
// update (spec §4.5: static filters — WFS/VBAP-style loudspeaker filters,
// not subject to runtime crossfades — update in one period).
func (o *outputStage) SetStaticFilter(filter *PartitionedFilter) {
	o.pending = nil
	for i := range o.partitions {
		o.partitions[i] = filter.Partition(i)
	}
}

// SetFilter schedules filter's partitions for staggered installation:
// partition 0 takes effect immediately, partition i takes effect after i
// further RotateQueues calls, replacing whatever update to that same slot
// may already be pending.
func (o *outputStage) SetFilter(filter *PartitionedFilter) {
	o.partitions[0] = filter.Partition(0)
	// Any update already pending for partitions 1..n is fully superseded.
	next := make([]pendingUpdate, 0, len(o.partitions)-1)
	for i := 1; i < len(o.partitions); i++ {
		next = append(next, pendingUpdate{index: i, partition: filter.Partition(i), periodsLeft: i})
	}
	o.pending = next
}

// RotateQueues advances every pending staggered update by one period,
// installing any whose countdown has reached zero. Call once per period,
// after Convolve.
func (o *outputStage) RotateQueues() {
	if len(o.pending) == 0 {
		return
	}
	kept := o.pending[:0]
	for _, p := range o.pending {
		p.periodsLeft--
		if p.periodsLeft <= 0 {
			o.partitions[p.index] = p.partition
			continue
		}
		kept = append(kept, p)
	}
	o.pending = kept
}

// QueuesEmpty reports whether every scheduled filter-partition update has
// been installed.
func (o *outputStage) QueuesEmpty() bool { return len(o.pending) == 0 }

// Convolve accumulates filterPartition[i] * input.at(i) across every
// partition, inverse-transforms once, and returns the blockSize samples of
// valid linear-convolution output (the upper half of the overlap-save
// window), scaled by weight. If every contributing partition on either
// side was zero, it returns a shared all-zero block without transforming
// (spec §4.5: "an all-silent partition pair contributes nothing and costs
// nothing beyond the zero check").
func (o *outputStage) Convolve(input *inputStage, weight float64) []float64 {
	clear(o.accum)
	any := false
	n := len(o.partitions)
	for i := 0; i < n; i++ {
		fp := o.partitions[i]
		if fp == nil || fp.zero {
			continue
		}
		ip := input.at(i)
		if ip.zero {
			continue
		}
		for b, fv := range fp.freq {
			o.accum[b] += fv * ip.freq[b]
		}
		any = true
	}
	if !any {
		return o.zeroTail
	}
	o.plan.inverse(o.ifftBuf, o.accum)
	unpackReal(o.timeBuf, o.ifftBuf)
	out := make([]float64, o.blockSize)
	for i := range out {
		out[i] = o.timeBuf[o.blockSize+i] * weight
	}
	return out
}

// Convolver pairs one inputStage with one or more outputStages sharing it,
// matching spec §4.5's split between the (per-source) input transform and
// the (per-source-channel) output accumulation: many loudspeaker feeds can
// reuse a single source's transformed input windows.
type Convolver struct {
	plan          *fftPlan
	blockSize     int
	numPartitions int
	input         *inputStage
}

// NewConvolver returns a convolver transforming blockSize-sample windows
// against filters of up to numPartitions*blockSize samples.
func NewConvolver(blockSize, numPartitions int) *Convolver {
	if numPartitions < 1 {
		numPartitions = 1
	}
	plan := newFFTPlan(2 * blockSize)
	return &Convolver{
		plan:          plan,
		blockSize:     blockSize,
		numPartitions: numPartitions,
		input:         newInputStage(plan, blockSize, numPartitions),
	}
}

// AddBlock feeds one new block of input samples (spec §4.5: call once per
// period, before any NewOutputStage's Convolve for this period).
func (c *Convolver) AddBlock(block []float64) { c.input.AddBlock(block) }

// NewOutputStage returns a new output stage sharing this convolver's input.
func (c *Convolver) NewOutputStage() *outputStage {
	return newOutputStage(c.plan, c.blockSize, c.numPartitions)
}

// PrepareFilter transforms ir using this convolver's FFT plan and block
// size, ready to assign to any of its output stages.
func (c *Convolver) PrepareFilter(ir []float64) *PartitionedFilter {
	return PrepareFilter(c.plan, ir, c.blockSize)
}

// Convolve runs one output stage against the convolver's current input
// window. A thin pass-through kept for symmetry with the output stage's own
// method, so call sites can hold just a *Convolver and a *outputStage.
func (c *Convolver) Convolve(stage *outputStage, weight float64) []float64 {
	return stage.Convolve(c.input, weight)
}
