package ssr

import "errors"

// Error taxonomy (spec §7). Construction-time failures (Configuration,
// Resource) propagate out of constructors as plain errors wrapping one of
// the sentinels below; Capacity failures are logged rather than returned
// (Push retries, ProcessCommands leaks the command); Contract violations are asserted in debug builds via
// debugAssert and otherwise left as undefined behaviour, per §7's
// propagation policy.

var (
	// ErrMissingConfig is returned when a required configuration key is absent.
	ErrMissingConfig = errors.New("ssr: missing configuration value")
	// ErrInvalidConfig is returned when a configuration value is present but inconsistent.
	ErrInvalidConfig = errors.New("ssr: invalid configuration value")
	// ErrSampleRateMismatch is returned when an impulse-response file's sample rate
	// does not match the engine's configured sample rate.
	ErrSampleRateMismatch = errors.New("ssr: impulse response sample rate mismatch")
	// ErrResourceUnavailable is returned when a resource (IR file, FFT plan, setup file) fails to load.
	ErrResourceUnavailable = errors.New("ssr: resource unavailable")
	// ErrFIFOFull names a FIFO push that found no free slot. The FIFO push
	// itself reports this as a false result; no function returns this value.
	ErrFIFOFull = errors.New("ssr: fifo full")
	// ErrDelayExceedsMax names a delay-line read whose requested delay cannot
	// be satisfied. ReadBlock reports this as a false result; no function
	// returns this value.
	ErrDelayExceedsMax = errors.New("ssr: delay exceeds maximum")
	// ErrChannelCountMismatch names a generic-FIR filter whose channel count
	// differs from the output count. No function returns it:
	// NewGenericFIRRenderer takes its output count from the filter's channels.
	ErrChannelCountMismatch = errors.New("ssr: filter channel count does not match output count")
	// ErrUnknownSource is returned when a source id cannot be found.
	ErrUnknownSource = errors.New("ssr: unknown source id")
)

// ConfigError wraps a configuration-time failure (spec §7, "Configuration").
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "ssr: config: " + e.Err.Error()
	}
	return "ssr: config " + e.Key + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

func newConfigError(key string, err error) error {
	return &ConfigError{Key: key, Err: err}
}

// ResourceError wraps a resource-loading failure (spec §7, "Resource"):
// an impulse-response file, loudspeaker setup file, or FFT plan that could
// not be built.
type ResourceError struct {
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return "ssr: resource " + e.Resource + ": " + e.Err.Error()
}

func (e *ResourceError) Unwrap() error { return e.Err }

func newResourceError(resource string, err error) error {
	return &ResourceError{Resource: resource, Err: err}
}

// CapacityError marks a command-queue capacity failure (spec §7, "Capacity").
// It is never returned to a caller in production use: the queue's push path
// logs a full inbound FIFO and retries, and ProcessCommands logs a full
// cleanup FIFO and leaks that one command.
type CapacityError struct {
	Err error
}

func (e *CapacityError) Error() string { return "ssr: capacity: " + e.Err.Error() }
func (e *CapacityError) Unwrap() error { return e.Err }

// debugAssert panics with msg if cond is false and the build was compiled
// with debug assertions enabled (debugAssertionsEnabled, toggled by the
// ssrdebug build tag — see debug_on.go / debug_off.go). This is the Go
// analogue of the C++ source's Contract-violation asserts (spec §7): a
// release build pays nothing for the check and the violation is undefined
// behaviour, exactly as the original describes.
func debugAssert(cond bool, msg string) {
	if debugAssertionsEnabled && !cond {
		panic("ssr: contract violation: " + msg)
	}
}
