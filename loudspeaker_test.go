package ssr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLoudspeakerSetupSingleEntries(t *testing.T) {
	doc := `<reproduction_setup>
  <loudspeaker model="normal" delay="0.001" weight="2">
    <position x="1" y="2" z="0"/>
    <orientation azimuth="90"/>
  </loudspeaker>
  <skip number="2"/>
  <loudspeaker>
    <position x="0" y="0" z="0"/>
  </loudspeaker>
</reproduction_setup>`

	out, err := ParseLoudspeakerSetup(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, out, 2, "skip contributes no loudspeaker entries")

	require.Equal(t, NewPosition(1, 2, 0), out[0].Pose.Position)
	require.InDelta(t, 0.001, out[0].Delay, 1e-9)
	require.InDelta(t, 2, out[0].Weight, 1e-9)
	require.Equal(t, OutputNormal, out[0].Model)

	require.Equal(t, NewPosition(0, 0, 0), out[1].Pose.Position)
	require.InDelta(t, 0, out[1].Delay, 1e-9)
	require.InDelta(t, 1, out[1].Weight, 1e-9)
}

func TestParseLoudspeakerSetupSubwooferModel(t *testing.T) {
	doc := `<reproduction_setup>
  <loudspeaker model="subwoofer">
    <position x="0" y="0" z="-1"/>
  </loudspeaker>
</reproduction_setup>`
	out, err := ParseLoudspeakerSetup(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, OutputSubwoofer, out[0].Model)
}

func TestParseLoudspeakerSetupLinearArray(t *testing.T) {
	doc := `<reproduction_setup>
  <linear_array number="3">
    <first><position x="0" y="0" z="0"/><orientation azimuth="0"/></first>
    <last><position x="2" y="0" z="0"/><orientation azimuth="0"/></last>
  </linear_array>
</reproduction_setup>`
	out, err := ParseLoudspeakerSetup(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, NewPosition(0, 0, 0), out[0].Pose.Position)
	require.Equal(t, NewPosition(1, 0, 0), out[1].Pose.Position)
	require.Equal(t, NewPosition(2, 0, 0), out[2].Pose.Position)
}

func TestParseLoudspeakerSetupLinearArrayRequiresFirst(t *testing.T) {
	doc := `<reproduction_setup>
  <linear_array number="3">
    <last><position x="2" y="0" z="0"/></last>
  </linear_array>
</reproduction_setup>`
	_, err := ParseLoudspeakerSetup(strings.NewReader(doc))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseLoudspeakerSetupCircularArray(t *testing.T) {
	doc := `<reproduction_setup>
  <circular_array number="4">
    <center x="0" y="0" z="0"/>
    <first><position x="1" y="0" z="0"/></first>
    <last><angle azimuth="270"/></last>
  </circular_array>
</reproduction_setup>`
	out, err := ParseLoudspeakerSetup(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, out, 4)

	require.InDelta(t, 1, out[0].Pose.Position.X, 1e-9)
	require.InDelta(t, 0, out[0].Pose.Position.Y, 1e-9)
	require.InDelta(t, 0, out[1].Pose.Position.X, 1e-9)
	require.InDelta(t, 1, out[1].Pose.Position.Y, 1e-9)
	require.InDelta(t, -1, out[2].Pose.Position.X, 1e-9)
	require.InDelta(t, 0, out[2].Pose.Position.Y, 1e-9)
	require.InDelta(t, 0, out[3].Pose.Position.X, 1e-9)
	require.InDelta(t, -1, out[3].Pose.Position.Y, 1e-9)
}

func TestParseLoudspeakerSetupCircularArrayRequiresCenter(t *testing.T) {
	doc := `<reproduction_setup>
  <circular_array number="4">
    <first><position x="1" y="0" z="0"/></first>
  </circular_array>
</reproduction_setup>`
	_, err := ParseLoudspeakerSetup(strings.NewReader(doc))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseLoudspeakerSetupMalformedXML(t *testing.T) {
	_, err := ParseLoudspeakerSetup(strings.NewReader("<reproduction_setup><unclosed>"))
	require.Error(t, err)
}
