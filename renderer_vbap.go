package ssr

import (
	"math"
	"sort"
)

// vbapPair is one adjacent pair of ring loudspeakers (indices into
// VBAPRenderer.loudspeakers), sorted by azimuth at construction (spec
// §4.8 "Vector Base Amplitude Panning").
type vbapPair struct {
	a, b         int
	azimuthA     float64
	span         float64 // angular span from a to b, in [0, 2*pi)
	valid        bool    // span <= maxAngle
}

// wrap2Pi wraps v into [0, 2*pi).
func wrap2Pi(v float64) float64 {
	const twoPi = 2 * math.Pi
	v = math.Mod(v, twoPi)
	if v < 0 {
		v += twoPi
	}
	return v
}

func azimuthOf(pos, ref Position) float64 {
	return wrap2Pi(math.Atan2(pos.Y-ref.Y, pos.X-ref.X))
}

// vbapSource is one source in the VBAP renderer: a per-(source, output)
// weight, reduced to at most two nonzero entries per period.
type vbapSource struct {
	*Source
	channels []BlockParameter[float64]
	scratch  []float64
	scene    *SceneState
}

func (s *vbapSource) Process() {
	s.Weight.BeginPeriod()
	s.Weight.Set(s.scene.GainPipeline(s.Source, true))
}

type vbapPanStage struct {
	s        *vbapSource
	renderer *VBAPRenderer
}

func (p *vbapPanStage) Process() {
	s := p.s
	r := p.renderer
	ref := r.base.Scene.ReferencePoint()
	theta := azimuthOf(s.Pose.Position, ref)

	newW := make([]float64, len(s.channels))
	pair := r.findPair(theta)
	if pair != nil {
		if pair.valid {
			g1, g2 := vbapWeights(r.azimuths[pair.a], r.azimuths[pair.b], theta)
			newW[pair.a] = g1 * s.Weight.Get()
			newW[pair.b] = g2 * s.Weight.Get()
		} else {
			// Overhang: a raised-cosine window across the invalid (too
			// wide) gap, keyed on distance from each endpoint (spec
			// §4.8: "a raised-cosine overhang of width overhang_angle
			// applies a per-loudspeaker window across the gap").
			distA := wrap2Pi(theta - r.azimuths[pair.a])
			distB := wrap2Pi(r.azimuths[pair.b] - theta)
			if distA <= r.overhangAngle {
				newW[pair.a] = overhangWindow(distA, r.overhangAngle) * s.Weight.Get()
			}
			if distB <= r.overhangAngle {
				newW[pair.b] = overhangWindow(distB, r.overhangAngle) * s.Weight.Get()
			}
		}
	}

	for o := range s.channels {
		s.channels[o].BeginPeriod()
		s.channels[o].Set(newW[o])
	}
}

// vbapWeights solves the 2x2 VBAP panning system for unit vectors at
// azimuths a1, a2 against a source at azimuth theta, normalised to unit
// power.
func vbapWeights(a1, a2, theta float64) (g1, g2 float64) {
	l1x, l1y := math.Cos(a1), math.Sin(a1)
	l2x, l2y := math.Cos(a2), math.Sin(a2)
	px, py := math.Cos(theta), math.Sin(theta)

	det := l1x*l2y - l2x*l1y
	if det == 0 {
		return 0, 0
	}
	g1 = (px*l2y - py*l2x) / det
	g2 = (l1x*py - l1y*px) / det
	if g1 < 0 {
		g1 = 0
	}
	if g2 < 0 {
		g2 = 0
	}
	norm := math.Hypot(g1, g2)
	if norm > 0 {
		g1 /= norm
		g2 /= norm
	}
	return g1, g2
}

func overhangWindow(dist, width float64) float64 {
	if width <= 0 {
		return 0
	}
	return 0.5 * (1 + math.Cos(math.Pi*dist/width))
}

// VBAPRenderer pans each source across an adjacent pair of a convex
// loudspeaker ring (spec §4.8 "Vector Base Amplitude Panning").
type VBAPRenderer struct {
	base          *RendererBase[*vbapSource]
	loudspeakers  []Loudspeaker
	outputs       []*Output
	combiner      *Combiner
	azimuths      []float64
	order         []int // indices into loudspeakers, sorted by azimuth
	pairs         []vbapPair
	lastRef       Position // reference point azimuths/pairs were last computed against
	maxAngle      float64
	overhangAngle float64
	panSlots      map[string]*itemSlot
}

// NewVBAPRenderer returns a VBAP renderer over the given ring of
// loudspeakers. maxAngle (default math.Pi if <= 0) is the widest adjacent
// span considered a valid pair; overhangAngle is the raised-cosine window
// width used across an invalid gap. The ring geometry (loudspeaker
// azimuths relative to the reference point) is recomputed whenever the
// listener reference moves (spec §4.8): a full re-sort only runs if the
// new azimuths would reorder the ring, otherwise the angle table is
// updated in place.
func NewVBAPRenderer(queue *CommandQueue, pool *WorkerPool, blockSize int, loudspeakers []Loudspeaker, maxAngle, overhangAngle float64) *VBAPRenderer {
	if maxAngle <= 0 {
		maxAngle = math.Pi
	}
	r := &VBAPRenderer{
		base:          NewRendererBase[*vbapSource](queue, pool, blockSize),
		loudspeakers:  loudspeakers,
		combiner:      NewCombiner(blockSize),
		maxAngle:      maxAngle,
		overhangAngle: overhangAngle,
		panSlots:      make(map[string]*itemSlot),
	}
	r.outputs = make([]*Output, len(loudspeakers))
	for i, ls := range loudspeakers {
		r.outputs[i] = &Output{Pose: ls.Pose, Model: ls.Model, Delay: ls.Delay, Weight: ls.Weight, Buffer: make([]float64, blockSize)}
	}
	r.sort()
	return r
}

// sort rebuilds the ring order, azimuth table and adjacent pairs from
// scratch against the current listener reference point.
func (r *VBAPRenderer) sort() {
	ref := r.base.Scene.ReferencePoint()
	r.lastRef = ref
	r.azimuths = r.azimuthsAgainst(ref)
	ring := make([]int, 0, len(r.loudspeakers))
	for i, ls := range r.loudspeakers {
		if ls.Model != OutputSubwoofer {
			ring = append(ring, i)
		}
	}
	sort.Slice(ring, func(i, j int) bool { return r.azimuths[ring[i]] < r.azimuths[ring[j]] })
	r.order = ring
	r.rebuildPairs()
}

func (r *VBAPRenderer) azimuthsAgainst(ref Position) []float64 {
	azimuths := make([]float64, len(r.loudspeakers))
	for i, ls := range r.loudspeakers {
		azimuths[i] = azimuthOf(ls.Pose.Position, ref)
	}
	return azimuths
}

func (r *VBAPRenderer) rebuildPairs() {
	ring := r.order
	r.pairs = make([]vbapPair, len(ring))
	for i := range ring {
		a := ring[i]
		b := ring[(i+1)%len(ring)]
		span := wrap2Pi(r.azimuths[b] - r.azimuths[a])
		if span == 0 && len(ring) > 1 {
			span = 2 * math.Pi
		}
		r.pairs[i] = vbapPair{a: a, b: b, azimuthA: r.azimuths[a], span: span, valid: span <= r.maxAngle}
	}
}

// updateGeometry recomputes the ring's azimuth table against the current
// listener reference point, if it moved since the last period (spec
// §4.8). A plain translation that preserves the ring's angular order only
// needs its angle table refreshed in place; a move that would reorder the
// ring (the sort wrapping around 0 differently) triggers a full re-sort.
func (r *VBAPRenderer) updateGeometry() {
	ref := r.base.Scene.ReferencePoint()
	if ref == r.lastRef {
		return
	}
	r.lastRef = ref
	newAzimuths := r.azimuthsAgainst(ref)
	if r.ringOrderWraps(newAzimuths) {
		r.azimuths = newAzimuths
		sort.Slice(r.order, func(i, j int) bool { return r.azimuths[r.order[i]] < r.azimuths[r.order[j]] })
		r.rebuildPairs()
		return
	}
	r.azimuths = newAzimuths
	r.rebuildPairs()
}

// ringOrderWraps reports whether newAzimuths, read in the ring's current
// order, is no longer non-decreasing — i.e. the reference move crossed a
// loudspeaker past azimuth 0 relative to its neighbours, so the ring must
// be re-sorted rather than just re-measured.
func (r *VBAPRenderer) ringOrderWraps(newAzimuths []float64) bool {
	for i := 0; i < len(r.order)-1; i++ {
		if newAzimuths[r.order[i]] > newAzimuths[r.order[i+1]] {
			return true
		}
	}
	return false
}

func (r *VBAPRenderer) findPair(theta float64) *vbapPair {
	for i := range r.pairs {
		p := &r.pairs[i]
		if wrap2Pi(theta-p.azimuthA) <= p.span {
			return p
		}
	}
	if len(r.pairs) > 0 {
		return &r.pairs[0]
	}
	return nil
}

// Registry exposes this renderer's sources to a Control surface.
func (r *VBAPRenderer) Registry() SourceRegistry { return RegistryFor(r.base) }

// NumOutputs reports the number of loudspeaker output channels.
func (r *VBAPRenderer) NumOutputs() int { return len(r.outputs) }

// OutputBuffer returns the most recently rendered block for output channel
// ch, valid until the next Period call. A transport's period callback
// copies from this after calling Period.
func (r *VBAPRenderer) OutputBuffer(ch int) []float64 { return r.outputs[ch].Buffer }

// AddSource adds a new VBAP source.
func (r *VBAPRenderer) AddSource(id string, src Source) (*vbapSource, error) {
	return r.base.AddSource(id, func(resolvedID string) *vbapSource {
		src.ID = resolvedID
		vs := &vbapSource{
			Source:   &src,
			channels: make([]BlockParameter[float64], len(r.loudspeakers)),
			scratch:  make([]float64, r.base.BlockSize),
			scene:    r.base.Scene,
		}
		slot := r.base.MIMO.AddIntermediate(&vbapPanStage{s: vs, renderer: r})
		r.panSlots[resolvedID] = slot
		return vs
	})
}

// RemSource removes the source with the given id.
func (r *VBAPRenderer) RemSource(id string) error {
	if slot, ok := r.panSlots[id]; ok {
		r.base.MIMO.RemoveIntermediate(slot, nil)
		delete(r.panSlots, id)
	}
	return r.base.RemSource(id, nil)
}

// Period runs one audio period.
func (r *VBAPRenderer) Period() {
	r.updateGeometry()
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
