// Command ssr-engine is a minimal demonstration host: it loads a
// loudspeaker setup, builds one VBAP renderer, and drives it for a fixed
// number of periods over a headless transport, printing the per-channel
// output RMS. Scene mutation beyond the initial source is out of scope
// (spec §6 leaves the CLI / control surface to an external layer); this
// binary exists to exercise the engine end to end, not to be a product.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	ssr "github.com/intuitionamiga/ssrengine"
)

func main() {
	setupPath := flag.String("setup", "", "path to a reproduction_setup XML file")
	blockSize := flag.Int("block-size", 1024, "period size in samples, multiple of 8")
	sampleRate := flag.Int("sample-rate", 44100, "sample rate in Hz")
	threads := flag.Int("threads", 1, "worker thread count, including the calling thread")
	periods := flag.Int("periods", 100, "number of periods to render before exiting")
	describe := flag.Bool("describe", false, "print a CSV source/level snapshot after rendering")
	flag.Parse()

	if *setupPath == "" {
		fmt.Fprintln(os.Stderr, "ssr-engine: -setup is required")
		os.Exit(1)
	}

	cfg, err := ssr.ParseConfig(map[string]string{
		"block_size":         fmt.Sprint(*blockSize),
		"sample_rate":        fmt.Sprint(*sampleRate),
		"threads":            fmt.Sprint(*threads),
		"reproduction_setup": *setupPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ssr-engine: %v\n", err)
		os.Exit(1)
	}

	setupFile, err := os.Open(cfg.ReproductionSetup)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ssr-engine: %v\n", err)
		os.Exit(1)
	}
	loudspeakers, err := ssr.ParseLoudspeakerSetup(setupFile)
	setupFile.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ssr-engine: %v\n", err)
		os.Exit(1)
	}
	if len(loudspeakers) == 0 {
		fmt.Fprintln(os.Stderr, "ssr-engine: loudspeaker setup produced zero channels")
		os.Exit(1)
	}

	queue := ssr.NewCommandQueue(0)
	pool := ssr.NewWorkerPool(cfg.Threads)
	defer pool.Stop()

	maxAngle := cfg.VBAPMaxAngle
	overhang := cfg.VBAPOverhangAngle
	renderer := ssr.NewVBAPRenderer(queue, pool, cfg.BlockSize, loudspeakers, maxAngle, overhang)

	// AddSource while the queue is still in bypass (pre-Activate) mode: its
	// command runs synchronously, so the source is live before the first
	// period rather than queued for a realtime thread that isn't running yet.
	src := ssr.Source{Gain: 1, Active: true, Model: ssr.ModelPoint,
		Pose: ssr.Pose{Position: ssr.NewPosition(1, 0, 0), Orientation: ssr.IdentityOrientation()}}
	if _, err := renderer.AddSource("demo", src); err != nil {
		fmt.Fprintf(os.Stderr, "ssr-engine: %v\n", err)
		os.Exit(1)
	}
	queue.Activate()

	tone := make([]float64, cfg.BlockSize)
	const freq = 440.0
	phase := 0.0
	step := 2 * math.Pi * freq / float64(cfg.SampleRate)

	period := func(inputs [][]float64, outputs [][]float64) {
		for i := range tone {
			tone[i] = math.Sin(phase)
			phase += step
		}
		if s, ok := renderer.GetSource("demo"); ok {
			s.Input = tone
		}
		renderer.Period()
		for ch := range outputs {
			copy(outputs[ch], renderer.OutputBuffer(ch))
		}
	}

	transport := &ssr.HeadlessTransport{}
	if err := transport.Start(float64(cfg.SampleRate), cfg.BlockSize, 1, len(loudspeakers), period); err != nil {
		fmt.Fprintf(os.Stderr, "ssr-engine: %v\n", err)
		os.Exit(1)
	}
	defer transport.Stop()

	var last [][]float64
	for p := 0; p < *periods; p++ {
		last = transport.RunPeriod(nil)
	}
	for ch, buf := range last {
		fmt.Printf("channel %d rms: %.6f\n", ch, rms(buf))
	}

	if *describe {
		control := ssr.NewControl(queue, map[string]ssr.RendererHandle{
			"vbap": {Sources: renderer.Registry(), Outputs: renderer},
		})
		if err := control.DescribeCSV(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "ssr-engine: %v\n", err)
			os.Exit(1)
		}
	}
}

func rms(buf []float64) float64 {
	var sum float64
	for _, v := range buf {
		sum += v * v
	}
	if len(buf) == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(len(buf)))
}
