package ssr

import "math"

// Selection is how the combiner classifies one input for the current
// period (spec §4.6, C6).
type Selection int

const (
	// SelectNothing skips the input entirely this period.
	SelectNothing Selection = iota
	// SelectConstant adds (or, for the first active contributor, copies)
	// Value() unchanged across the whole block.
	SelectConstant
	// SelectChange adds ChangeAt() unchanged across the whole block (in
	// non-crossfade mode); the caller is expected to have already
	// interpolated per-sample between old and new parameters when it
	// built that block. In crossfade mode it triggers a fade-out/fade-in
	// blend instead (spec §4.6: "change in crossfade mode").
	SelectChange
	// SelectFadeOut adds FadeOutValue(), windowed by the fade-out ramp.
	SelectFadeOut
	// SelectFadeIn calls Update, then adds Value(), windowed by the
	// fade-in ramp.
	SelectFadeIn
)

// raisedCosineWindow returns a length-n ramp from 0 to 1 (or, if falling is
// true, 1 to 0) following a raised cosine, the default fade shape for both
// fade-in and fade-out windows (spec §4.6).
func raisedCosineWindow(n int, falling bool) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		phase := math.Pi * float64(i) / float64(n)
		v := 0.5 * (1 - math.Cos(phase))
		if falling {
			v = 1 - v
		}
		w[i] = v
	}
	return w
}

// InputSpec describes one input's contribution for the current period.
// Value, ChangeAt and FadeOutValue each return a full block-size slice
// (the caller already owns whatever scratch buffer it fills); the
// combiner never evaluates a contribution more than once per input per
// period.
//
// Classify selects the mode. Update installs an input's new parameters
// and is called, at most once per period, between the fade-out and
// fade-in halves of a crossfade (SelectFadeIn, or SelectChange in
// crossfade mode) — letting the input recompute Value() against the new
// parameters afterwards. ChangeAt is the non-crossfading SelectChange
// contribution; if nil, Value is used. FadeOutValue is the contribution
// computed from the input's old (pre-Update) parameters; if nil, Value is
// used (appropriate for an input whose contribution doesn't depend on the
// changing parameter at all).
type InputSpec struct {
	Classify     func() Selection
	Update       func()
	Value        func() []float64
	ChangeAt     func() []float64
	FadeOutValue func() []float64
}

func (s InputSpec) changeAt() []float64 {
	if s.ChangeAt != nil {
		return s.ChangeAt()
	}
	return s.Value()
}

func (s InputSpec) fadeOutValue() []float64 {
	if s.FadeOutValue != nil {
		return s.FadeOutValue()
	}
	return s.Value()
}

// Combiner mixes an arbitrary number of inputs into one output buffer,
// classifying each via its InputSpec and accumulating per spec §4.6. It
// owns the fade-out/fade-in window so a single Combiner can be reused
// period after period without reallocating.
type Combiner struct {
	blockSize  int
	fadeOutWin []float64
	fadeInWin  []float64
}

// NewCombiner returns a combiner sized for blockSize-sample periods, with
// the default raised-cosine fade windows.
func NewCombiner(blockSize int) *Combiner {
	return &Combiner{
		blockSize:  blockSize,
		fadeOutWin: raisedCosineWindow(blockSize, true),
		fadeInWin:  raisedCosineWindow(blockSize, false),
	}
}

// SetWindows replaces the fade-out and fade-in windows, both of which must
// have length blockSize. Exists for tests and for renderers that need a
// non-default fade shape; NewCombiner's raised cosine is the norm.
func (c *Combiner) SetWindows(fadeOut, fadeIn []float64) {
	debugAssert(len(fadeOut) == c.blockSize, "Combiner.SetWindows: fadeOut length mismatch")
	debugAssert(len(fadeIn) == c.blockSize, "Combiner.SetWindows: fadeIn length mismatch")
	c.fadeOutWin = fadeOut
	c.fadeInWin = fadeIn
}

func (c *Combiner) add(out []float64, first *bool, write func([]float64)) {
	if *first {
		clear(out)
	}
	write(out)
	*first = false
}

// combine is the shared template behind all five public variants (spec
// §4.6: "their implementations share a common template with the per-case
// handlers parameterised"). crossfadeChange switches SelectChange between
// a plain block copy and the fade-out/fade-in blend.
func (c *Combiner) combine(out []float64, specs []InputSpec, crossfadeChange bool, transform func(float64) float64) {
	first := true
	for _, s := range specs {
		switch s.Classify() {
		case SelectNothing:
			continue

		case SelectConstant:
			v := s.Value()
			c.add(out, &first, func(o []float64) {
				for i := range o {
					o[i] += v[i]
				}
			})

		case SelectChange:
			if !crossfadeChange {
				v := s.changeAt()
				c.add(out, &first, func(o []float64) {
					for i := range o {
						o[i] += v[i]
					}
				})
				continue
			}
			fo := s.fadeOutValue()
			if s.Update != nil {
				s.Update()
			}
			fi := s.Value()
			c.add(out, &first, func(o []float64) {
				for i := range o {
					o[i] += fo[i]*c.fadeOutWin[i] + fi[i]*c.fadeInWin[i]
				}
			})

		case SelectFadeOut:
			fo := s.fadeOutValue()
			c.add(out, &first, func(o []float64) {
				for i := range o {
					o[i] += fo[i] * c.fadeOutWin[i]
				}
			})

		case SelectFadeIn:
			if s.Update != nil {
				s.Update()
			}
			fi := s.Value()
			c.add(out, &first, func(o []float64) {
				for i := range o {
					o[i] += fi[i] * c.fadeInWin[i]
				}
			})
		}
	}
	if first {
		clear(out)
	}
	if transform != nil {
		for i := range out {
			out[i] = transform(out[i])
		}
	}
}

// Copy is the copy-only variant: every mode contributes a block verbatim,
// with no further per-sample processing beyond the fade windows.
func (c *Combiner) Copy(out []float64, specs []InputSpec) { c.combine(out, specs, false, nil) }

// Transform is Copy with a final per-sample transform applied to the
// accumulated output (e.g. a fixed output gain or a soft clip).
func (c *Combiner) Transform(out []float64, specs []InputSpec, transform func(float64) float64) {
	c.combine(out, specs, false, transform)
}

// Interpolate behaves as Copy, but is the variant callers use when
// ChangeAt performs meaningful per-sample interpolation between an
// input's old and new parameters before returning its block (e.g. VBAP's
// per-sample weight ramp).
func (c *Combiner) Interpolate(out []float64, specs []InputSpec) { c.combine(out, specs, false, nil) }

// CrossfadeCopy is the crossfade-copy variant: SelectChange blends
// fade-out (old parameters) and fade-in (new parameters, installed by
// Update) halves instead of using a single block (spec §8 scenario 4).
func (c *Combiner) CrossfadeCopy(out []float64, specs []InputSpec) { c.combine(out, specs, true, nil) }

// CrossfadeTransform is CrossfadeCopy with a final per-sample transform.
func (c *Combiner) CrossfadeTransform(out []float64, specs []InputSpec, transform func(float64) float64) {
	c.combine(out, specs, true, transform)
}
