package ssr

import "strconv"

// Config holds the recognised engine configuration parameters (spec §6),
// parsed and validated from a plain map[string]string handed in by the
// (out of scope) front end.
type Config struct {
	BlockSize int
	SampleRate int
	Threads    int

	ReproductionSetup string
	XMLSchema         string
	SystemOutputPrefix string

	HRIRFile string
	HRIRSize int

	PrefilterFile string

	DelaylineSize int
	InitialDelay  int

	AmbisonicsOrder int
	InPhase         bool

	VBAPMaxAngle      float64
	VBAPOverhangAngle float64

	DecayExponent              float64
	AmplitudeReferenceDistance float64
	MasterVolumeCorrection     float64
}

// defaultConfig follows coprocessor_manager.go's NewCoprocessorManager
// pattern of sane defaults for optional parameters, so a minimal map still
// produces a usable engine.
func defaultConfig() Config {
	return Config{
		BlockSize:                  1024,
		SampleRate:                 44100,
		Threads:                    1,
		DecayExponent:              1,
		AmplitudeReferenceDistance: 1,
	}
}

// ParseConfig validates and converts a recognised-key configuration map
// (spec §6) into a Config. Unrecognised keys are ignored. Missing
// required keys (block_size, sample_rate, reproduction_setup) produce a
// ConfigError wrapping ErrMissingConfig; malformed or out-of-range values
// produce a ConfigError wrapping ErrInvalidConfig.
func ParseConfig(m map[string]string) (Config, error) {
	c := defaultConfig()

	blockSize, ok := m["block_size"]
	if !ok {
		return Config{}, newConfigError("block_size", ErrMissingConfig)
	}
	n, err := strconv.Atoi(blockSize)
	if err != nil || n <= 0 {
		return Config{}, newConfigError("block_size", ErrInvalidConfig)
	}
	if n%8 != 0 {
		return Config{}, newConfigError("block_size", ErrInvalidConfig)
	}
	c.BlockSize = n

	sampleRate, ok := m["sample_rate"]
	if !ok {
		return Config{}, newConfigError("sample_rate", ErrMissingConfig)
	}
	n, err = strconv.Atoi(sampleRate)
	if err != nil || n <= 0 {
		return Config{}, newConfigError("sample_rate", ErrInvalidConfig)
	}
	c.SampleRate = n

	if v, ok := m["threads"]; ok {
		n, err = strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, newConfigError("threads", ErrInvalidConfig)
		}
		c.Threads = n
	}

	setup, ok := m["reproduction_setup"]
	if !ok || setup == "" {
		return Config{}, newConfigError("reproduction_setup", ErrMissingConfig)
	}
	c.ReproductionSetup = setup

	c.XMLSchema = m["xml_schema"]
	c.SystemOutputPrefix = m["system_output_prefix"]
	c.HRIRFile = m["hrir_file"]
	c.PrefilterFile = m["prefilter_file"]

	if v, ok := m["hrir_size"]; ok {
		if c.HRIRSize, err = parsePositiveInt(v); err != nil {
			return Config{}, newConfigError("hrir_size", ErrInvalidConfig)
		}
	}
	if v, ok := m["delayline_size"]; ok {
		if c.DelaylineSize, err = parsePositiveInt(v); err != nil {
			return Config{}, newConfigError("delayline_size", ErrInvalidConfig)
		}
	}
	if v, ok := m["initial_delay"]; ok {
		n, err = strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, newConfigError("initial_delay", ErrInvalidConfig)
		}
		c.InitialDelay = n
	}
	if v, ok := m["ambisonics_order"]; ok {
		if c.AmbisonicsOrder, err = parsePositiveInt(v); err != nil {
			return Config{}, newConfigError("ambisonics_order", ErrInvalidConfig)
		}
	}
	if v, ok := m["in_phase"]; ok {
		c.InPhase, err = strconv.ParseBool(v)
		if err != nil {
			return Config{}, newConfigError("in_phase", ErrInvalidConfig)
		}
	}
	if v, ok := m["vbap_max_angle"]; ok {
		if c.VBAPMaxAngle, err = strconv.ParseFloat(v, 64); err != nil {
			return Config{}, newConfigError("vbap_max_angle", ErrInvalidConfig)
		}
	}
	if v, ok := m["vbap_overhang_angle"]; ok {
		if c.VBAPOverhangAngle, err = strconv.ParseFloat(v, 64); err != nil {
			return Config{}, newConfigError("vbap_overhang_angle", ErrInvalidConfig)
		}
	}
	if v, ok := m["decay_exponent"]; ok {
		if c.DecayExponent, err = strconv.ParseFloat(v, 64); err != nil {
			return Config{}, newConfigError("decay_exponent", ErrInvalidConfig)
		}
	}
	if v, ok := m["amplitude_reference_distance"]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return Config{}, newConfigError("amplitude_reference_distance", ErrInvalidConfig)
		}
		c.AmplitudeReferenceDistance = f
	}
	if v, ok := m["master_volume_correction"]; ok {
		if c.MasterVolumeCorrection, err = strconv.ParseFloat(v, 64); err != nil {
			return Config{}, newConfigError("master_volume_correction", ErrInvalidConfig)
		}
	}

	return c, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, ErrInvalidConfig
	}
	return n, nil
}
