package ssr

import (
	"github.com/gordonklaus/portaudio"
)

// PeriodFunc is the engine's per-period block callback (spec §6 "Audio
// backend contract"): reads each input buffer, runs the graph, writes each
// output buffer. Buffers are exactly blockSize samples long, sized once at
// Start and never reallocated.
type PeriodFunc func(inputs [][]float64, outputs [][]float64)

// Transport is the audio backend contract every concrete backend
// implements (spec §6), grounded on the swappable AudioOutput interface
// pattern (audio_backend_oto.go / audio_backend_alsa.go /
// audio_backend_headless.go all implementing one interface so the engine
// never depends on a specific backend).
type Transport interface {
	// Start begins delivering period callbacks at the given sample rate and
	// block size, with numInputs/numOutputs channels. period is called once
	// per audio period on the realtime thread the backend owns.
	Start(sampleRate float64, blockSize, numInputs, numOutputs int, period PeriodFunc) error
	// Stop halts delivery and releases any backend resources. Safe to call
	// even if Start failed or was never called.
	Stop() error
}

// HeadlessTransport is an in-process backend for tests and offline
// rendering (spec §6, grounded on audio_backend_headless.go):
// no real audio device, period callbacks are driven explicitly by the
// caller via RunPeriod rather than by a hardware interrupt.
type HeadlessTransport struct {
	blockSize            int
	numInputs, numOutputs int
	period               PeriodFunc
	inputs, outputs       [][]float64
}

// Start wires up fixed input/output buffers; no goroutine or device is
// started, since RunPeriod drives the callback synchronously.
func (h *HeadlessTransport) Start(sampleRate float64, blockSize, numInputs, numOutputs int, period PeriodFunc) error {
	h.blockSize = blockSize
	h.numInputs = numInputs
	h.numOutputs = numOutputs
	h.period = period
	h.inputs = make([][]float64, numInputs)
	for i := range h.inputs {
		h.inputs[i] = make([]float64, blockSize)
	}
	h.outputs = make([][]float64, numOutputs)
	for i := range h.outputs {
		h.outputs[i] = make([]float64, blockSize)
	}
	return nil
}

// Stop is a no-op for the headless backend: there is no device to release.
func (h *HeadlessTransport) Stop() error { return nil }

// RunPeriod copies in into the backend's input buffers (or leaves them
// silent if in is nil), runs one period, and returns the output buffers.
// The returned slices are reused across calls; callers needing to retain a
// block must copy it.
func (h *HeadlessTransport) RunPeriod(in [][]float64) [][]float64 {
	for i, buf := range h.inputs {
		clear(buf)
		if i < len(in) {
			copy(buf, in[i])
		}
	}
	for _, buf := range h.outputs {
		clear(buf)
	}
	h.period(h.inputs, h.outputs)
	return h.outputs
}

// PortAudioTransport is a realtime backend over
// github.com/gordonklaus/portaudio, grounded on
// other_examples/rayboyd-audio-engine's portaudio.Stream open/start/stop
// usage.
type PortAudioTransport struct {
	stream  *portaudio.Stream
	period  PeriodFunc
	inputs  [][]float64
	outputs [][]float64
}

// Start opens and starts a portaudio duplex stream at the given sample
// rate and block size.
func (t *PortAudioTransport) Start(sampleRate float64, blockSize, numInputs, numOutputs int, period PeriodFunc) error {
	if err := portaudio.Initialize(); err != nil {
		return newResourceError("portaudio", err)
	}
	t.period = period
	t.inputs = make([][]float64, numInputs)
	for i := range t.inputs {
		t.inputs[i] = make([]float64, blockSize)
	}
	t.outputs = make([][]float64, numOutputs)
	for i := range t.outputs {
		t.outputs[i] = make([]float64, blockSize)
	}

	stream, err := portaudio.OpenDefaultStream(numInputs, numOutputs, sampleRate, blockSize, t.callback)
	if err != nil {
		portaudio.Terminate()
		return newResourceError("portaudio stream", err)
	}
	t.stream = stream
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return newResourceError("portaudio stream start", err)
	}
	return nil
}

// callback deinterleaves portaudio's flat in/out buffers into the
// per-channel slices PeriodFunc expects, runs one period, and reinterleaves
// the result.
func (t *PortAudioTransport) callback(in, out []float32) {
	numIn := len(t.inputs)
	numOut := len(t.outputs)
	if numIn > 0 {
		frames := len(in) / numIn
		for i := 0; i < frames; i++ {
			for c := 0; c < numIn; c++ {
				t.inputs[c][i] = float64(in[i*numIn+c])
			}
		}
	}
	t.period(t.inputs, t.outputs)
	if numOut > 0 {
		frames := len(out) / numOut
		for i := 0; i < frames; i++ {
			for c := 0; c < numOut; c++ {
				out[i*numOut+c] = float32(t.outputs[c][i])
			}
		}
	}
}

// Stop stops and closes the stream and terminates the portaudio library.
func (t *PortAudioTransport) Stop() error {
	if t.stream == nil {
		return nil
	}
	if err := t.stream.Stop(); err != nil {
		return newResourceError("portaudio stream stop", err)
	}
	if err := t.stream.Close(); err != nil {
		return newResourceError("portaudio stream close", err)
	}
	return portaudio.Terminate()
}
