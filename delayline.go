package ssr

// BlockDelayLine is a write-once / read-many-times block-aligned circular
// buffer (spec §4.4, C4). It is constructed with a fixed block size and
// maximum delay in samples and stores exactly enough blocks to satisfy any
// delay in [0, maxDelay]. The operation order within a period is strictly
// Advance, then WriteBlock, then any number of ReadBlock calls.
type BlockDelayLine struct {
	blockSize int
	maxDelay  int
	numBlocks int
	buf       []float64 // numBlocks*blockSize samples
	// writePos is the sample index (into buf, circularly) of the start of
	// the block most recently made current by Advance.
	writePos int
}

// NewBlockDelayLine returns a causal delay line sized per spec §4.4:
// numBlocks = max(2, ceil((maxDelay + 2*blockSize - 1) / blockSize)).
func NewBlockDelayLine(blockSize, maxDelay int) *BlockDelayLine {
	if blockSize <= 0 {
		panic("ssr: BlockDelayLine: blockSize must be positive")
	}
	if maxDelay < 0 {
		maxDelay = 0
	}
	numerator := maxDelay + 2*blockSize - 1
	numBlocks := (numerator + blockSize - 1) / blockSize // ceil(numerator / blockSize)
	if numBlocks < 2 {
		numBlocks = 2
	}
	return &BlockDelayLine{
		blockSize: blockSize,
		maxDelay:  maxDelay,
		numBlocks: numBlocks,
		buf:       make([]float64, numBlocks*blockSize),
	}
}

// NumBlocks reports the number of stored blocks (spec §8 invariant: always >= 2).
func (d *BlockDelayLine) NumBlocks() int { return d.numBlocks }

// MaxDelay reports the configured maximum delay in samples.
func (d *BlockDelayLine) MaxDelay() int { return d.maxDelay }

// Advance steps the delay line forward by one block. Must be called
// exactly once per audio period, before WriteBlock.
func (d *BlockDelayLine) Advance() {
	d.writePos = (d.writePos + d.blockSize) % len(d.buf)
}

// WriteBlock copies blockSize samples from source into the block the delay
// line is currently positioned at (i.e. time zero for this period's reads).
func (d *BlockDelayLine) WriteBlock(source []float64) {
	debugAssert(len(source) == d.blockSize, "WriteBlock: source length mismatch")
	copy(d.buf[d.writePos:d.writePos+d.blockSize], source)
}

// sampleAt returns the circular buffer index of the sample `delay` samples
// before time zero (the start of the block just written).
func (d *BlockDelayLine) sampleAt(delay int) int {
	n := len(d.buf)
	idx := d.writePos - delay
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}

// ReadBlock copies blockSize samples starting at `delay` samples before
// time zero into dest. If delay exceeds maxDelay, dest is left untouched
// and ok is false (spec §4.4, §8: "Reads with delay beyond max_delay fail cleanly").
func (d *BlockDelayLine) ReadBlock(dest []float64, delay int) (ok bool) {
	if delay > d.maxDelay || delay < 0 {
		return false
	}
	debugAssert(len(dest) == d.blockSize, "ReadBlock: dest length mismatch")
	start := d.sampleAt(delay)
	d.copyCircular(dest, start)
	return true
}

// ReadBlockWeighted is ReadBlock but multiplies every sample by weight
// during the copy.
func (d *BlockDelayLine) ReadBlockWeighted(dest []float64, delay int, weight float64) (ok bool) {
	if delay > d.maxDelay || delay < 0 {
		return false
	}
	debugAssert(len(dest) == d.blockSize, "ReadBlockWeighted: dest length mismatch")
	start := d.sampleAt(delay)
	n := len(d.buf)
	for i := 0; i < d.blockSize; i++ {
		dest[i] = d.buf[(start+i)%n] * weight
	}
	return true
}

func (d *BlockDelayLine) copyCircular(dest []float64, start int) {
	n := len(d.buf)
	end := start + d.blockSize
	if end <= n {
		copy(dest, d.buf[start:end])
		return
	}
	first := n - start
	copy(dest[:first], d.buf[start:])
	copy(dest[first:], d.buf[:end-n])
}

// Circulator is a read-only circular cursor into a BlockDelayLine's
// buffer, positioned `delay` samples before time zero at creation and
// advancing one sample at a time as the caller reads from it (spec §4.4:
// "get_read_circulator").
type Circulator struct {
	line *BlockDelayLine
	pos  int
}

// GetReadCirculator returns a circulator positioned delay samples before
// time zero. The caller is expected to read blockSize samples from it via
// Next.
func (d *BlockDelayLine) GetReadCirculator(delay int) Circulator {
	return Circulator{line: d, pos: d.sampleAt(delay)}
}

// Next returns the sample at the circulator's current position and
// advances it by one sample.
func (c *Circulator) Next() float64 {
	v := c.line.buf[c.pos]
	c.pos = (c.pos + 1) % len(c.line.buf)
	return v
}

// NonCausalDelayLine wraps a causal BlockDelayLine with an initial offset,
// shifting every delay by initialDelay so that negative delays in
// [-initialDelay, 0) become accessible (spec §4.4). A negative delay
// outside that range fails cleanly, same as an over-long positive delay.
type NonCausalDelayLine struct {
	inner        *BlockDelayLine
	initialDelay int
}

// NewNonCausalDelayLine returns a delay line accepting delays in
// [-initialDelay, maxDelay]. Internally it is a causal BlockDelayLine
// sized for maxDelay+initialDelay, written initialDelay samples ahead of
// the nominal zero point.
func NewNonCausalDelayLine(blockSize, maxDelay, initialDelay int) *NonCausalDelayLine {
	if initialDelay < 0 {
		initialDelay = 0
	}
	return &NonCausalDelayLine{
		inner:        NewBlockDelayLine(blockSize, maxDelay+initialDelay),
		initialDelay: initialDelay,
	}
}

// Advance steps the underlying delay line forward by one block.
func (d *NonCausalDelayLine) Advance() { d.inner.Advance() }

// WriteBlock writes the new block, as BlockDelayLine.WriteBlock.
func (d *NonCausalDelayLine) WriteBlock(source []float64) { d.inner.WriteBlock(source) }

// ReadBlock reads `delay` samples before (or, if negative, after) time
// zero. delay may range over [-initialDelay, maxDelay]; outside that range
// it fails cleanly.
func (d *NonCausalDelayLine) ReadBlock(dest []float64, delay int) bool {
	if delay < -d.initialDelay {
		return false
	}
	return d.inner.ReadBlock(dest, delay+d.initialDelay)
}

// ReadBlockWeighted is ReadBlock with a per-sample weight multiplier.
func (d *NonCausalDelayLine) ReadBlockWeighted(dest []float64, delay int, weight float64) bool {
	if delay < -d.initialDelay {
		return false
	}
	return d.inner.ReadBlockWeighted(dest, delay+d.initialDelay, weight)
}

// MaxDelay reports the maximum positive delay accepted (the causal limit).
func (d *NonCausalDelayLine) MaxDelay() int { return d.inner.maxDelay - d.initialDelay }

// InitialDelay reports the configured initial (non-causal) offset.
func (d *NonCausalDelayLine) InitialDelay() int { return d.initialDelay }
