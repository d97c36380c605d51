package ssr

import (
	"encoding/xml"
	"io"
	"math"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"
)

// setupXML mirrors the reproduction_setup document (spec §6): an ordered
// sequence of loudspeaker, linear_array, circular_array, and skip elements,
// each contributing zero or more loudspeakers to the output channel
// sequence in document order.
type setupXML struct {
	XMLName xml.Name        `xml:"reproduction_setup"`
	Items   []setupXMLEntry `xml:",any"`
}

// setupXMLEntry captures every possible child element; only the fields
// matching XMLName.Local are populated per entry, encoding/xml's usual
// "any" idiom for an ordered mixed-element sequence.
type setupXMLEntry struct {
	XMLName xml.Name

	Model  string `xml:"model,attr"`
	Delay  string `xml:"delay,attr"`
	Weight string `xml:"weight,attr"`
	Number int    `xml:"number,attr"`

	Position    *xmlPosition    `xml:"position"`
	Orientation *xmlOrientation `xml:"orientation"`
	First       *xmlPose        `xml:"first"`
	Second      *xmlPose        `xml:"second"`
	Last        *xmlPose        `xml:"last"`
	Center      *xmlPosition    `xml:"center"`
}

type xmlPosition struct {
	X float64 `xml:"x,attr"`
	Y float64 `xml:"y,attr"`
	Z float64 `xml:"z,attr"`
}

type xmlOrientation struct {
	Azimuth float64 `xml:"azimuth,attr"`
}

type xmlAngle struct {
	Azimuth float64 `xml:"azimuth,attr"`
}

// xmlPose is the shared shape of <first>/<second>/<last>: either a full
// position+orientation (linear_array) or just an azimuth increment
// (circular_array's <second>/<last>).
type xmlPose struct {
	Position    *xmlPosition    `xml:"position"`
	Orientation *xmlOrientation `xml:"orientation"`
	Angle       *xmlAngle       `xml:"angle"`
}

func (p *xmlPosition) vec() Position {
	if p == nil {
		return Position{}
	}
	return NewPosition(p.X, p.Y, p.Z)
}

func (o *xmlOrientation) orientation() Orientation {
	if o == nil {
		return IdentityOrientation()
	}
	return OrientationFromAzimuth2D(o.Azimuth)
}

// ParseLoudspeakerSetup parses a reproduction_setup XML document (spec §6)
// into the ordered loudspeaker sequence, one entry per loudspeaker in
// document order. A skip element produces no entry, and entries carry no
// channel number, so skips are not visible in the returned slice.
func ParseLoudspeakerSetup(r io.Reader) ([]Loudspeaker, error) {
	var doc setupXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, newConfigError("reproduction_setup", err)
	}

	var out []Loudspeaker
	channel := 0
	for _, e := range doc.Items {
		switch e.XMLName.Local {
		case "loudspeaker":
			ls, err := e.loudspeaker()
			if err != nil {
				return nil, err
			}
			out = append(out, ls)
			channel++

		case "linear_array":
			arr, err := e.linearArray()
			if err != nil {
				return nil, err
			}
			out = append(out, arr...)
			channel += len(arr)

		case "circular_array":
			arr, err := e.circularArray()
			if err != nil {
				return nil, err
			}
			out = append(out, arr...)
			channel += len(arr)

		case "skip":
			channel += e.Number
		}
	}
	return out, nil
}

func (e *setupXMLEntry) loudspeaker() (Loudspeaker, error) {
	ls := Loudspeaker{
		Pose: Pose{
			Position:    e.Position.vec(),
			Orientation: e.Orientation.orientation(),
		},
		Model:  outputModelOf(e.Model),
		Delay:  parseSecondsOrZero(e.Delay),
		Weight: parseWeightOrOne(e.Weight),
	}
	return ls, nil
}

func outputModelOf(model string) OutputModel {
	if model == "subwoofer" {
		return OutputSubwoofer
	}
	return OutputNormal
}

func parseSecondsOrZero(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func parseWeightOrOne(s string) float64 {
	if s == "" {
		return 1
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 1
	}
	return v
}

// linearArray emits Number loudspeakers interpolated between First and
// either Second (unit angular/positional step) or Last (total span), per
// spec §6.
func (e *setupXMLEntry) linearArray() ([]Loudspeaker, error) {
	n := e.Number
	if n <= 0 || e.First == nil {
		return nil, newConfigError("linear_array", ErrInvalidConfig)
	}
	firstPos := e.First.Position.vec()

	var stepPos Position
	var stepOri float64 // azimuth step, degrees
	switch {
	case e.Second != nil:
		stepPos = r3.Sub(e.Second.Position.vec(), firstPos)
		stepOri = azimuthOf2D(e.Second.Orientation) - azimuthOf2D(e.First.Orientation)
	case e.Last != nil && n > 1:
		span := r3.Sub(e.Last.Position.vec(), firstPos)
		stepPos = r3.Scale(1/float64(n-1), span)
		stepOri = (azimuthOf2D(e.Last.Orientation) - azimuthOf2D(e.First.Orientation)) / float64(n-1)
	default:
		return nil, newConfigError("linear_array", ErrInvalidConfig)
	}

	model := outputModelOf(e.Model)
	delay := parseSecondsOrZero(e.Delay)
	weight := parseWeightOrOne(e.Weight)
	out := make([]Loudspeaker, n)
	for i := 0; i < n; i++ {
		pos := r3.Add(firstPos, r3.Scale(float64(i), stepPos))
		ori := OrientationFromAzimuth2D(azimuthOf2D(e.First.Orientation) + float64(i)*stepOri)
		out[i] = Loudspeaker{Pose: Pose{Position: pos, Orientation: ori}, Model: model, Delay: delay, Weight: weight}
	}
	return out, nil
}

// circularArray emits Number loudspeakers equally spaced counter-clockwise
// around Center, per spec §6.
func (e *setupXMLEntry) circularArray() ([]Loudspeaker, error) {
	n := e.Number
	if n <= 0 || e.First == nil || e.Center == nil {
		return nil, newConfigError("circular_array", ErrInvalidConfig)
	}
	center := e.Center.vec()
	firstPos := e.First.Position.vec()
	firstOri := azimuthOf2D(e.First.Orientation)

	radiusVec := r3.Sub(firstPos, center)
	radius := Length(radiusVec)
	startAngle := math.Atan2(radiusVec.Y, radiusVec.X)

	var stepRad float64
	switch {
	case e.Second != nil && e.Second.Angle != nil:
		stepRad = toRad(e.Second.Angle.Azimuth)
	case e.Last != nil && e.Last.Angle != nil && n > 1:
		stepRad = toRad(e.Last.Angle.Azimuth) / float64(n-1)
	default:
		stepRad = 2 * math.Pi / float64(n)
	}

	model := outputModelOf(e.Model)
	delay := parseSecondsOrZero(e.Delay)
	weight := parseWeightOrOne(e.Weight)
	out := make([]Loudspeaker, n)
	for i := 0; i < n; i++ {
		angle := startAngle + float64(i)*stepRad
		pos := r3.Add(center, r3.Vec{X: radius * math.Cos(angle), Y: radius * math.Sin(angle)})
		ori := OrientationFromAzimuth2D(firstOri + toDeg(float64(i)*stepRad))
		out[i] = Loudspeaker{Pose: Pose{Position: pos, Orientation: ori}, Model: model, Delay: delay, Weight: weight}
	}
	return out, nil
}

func azimuthOf2D(o *xmlOrientation) float64 {
	if o == nil {
		return 0
	}
	return o.Azimuth
}
