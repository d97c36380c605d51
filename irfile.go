package ssr

import (
	"os"

	"github.com/go-audio/wav"
)

// LoadImpulseResponseFile reads a multi-channel WAV file and returns one
// []float64 per channel, deinterleaved, normalised to [-1, 1] (spec §6:
// "Impulse response files: multi-channel audio files loaded at renderer
// startup"). sampleRate is the file's own rate, for the caller to check
// against the engine's configured rate (§6: "mismatch is a fatal error").
//
// Grounded on other_examples/rayboyd-audio-engine's go-audio/wav usage,
// the pack's only WAV-reading dependency.
func LoadImpulseResponseFile(path string) (channels [][]float64, sampleRate int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, newResourceError(path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, newResourceError(path, err)
	}

	numChans := buf.Format.NumChannels
	if numChans < 1 {
		numChans = 1
	}
	frames := len(buf.Data) / numChans
	channels = make([][]float64, numChans)
	for c := range channels {
		channels[c] = make([]float64, frames)
	}

	// AsFloatBuffer keeps the integer PCM magnitudes; scale them by the
	// file's bit depth into [-1, 1].
	scale := 1.0
	if bd := buf.SourceBitDepth; bd > 0 {
		scale = 1 / float64(int64(1)<<(bd-1))
	}
	fb := buf.AsFloatBuffer()
	for i, v := range fb.Data {
		channels[i%numChans][i/numChans] = v * scale
	}

	return channels, buf.Format.SampleRate, nil
}
