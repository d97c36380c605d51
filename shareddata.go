package ssr

// SharedData is a cell written from the non-realtime thread through a
// CommandQueue and read directly (no locking) from the realtime thread
// (spec §3, §4.3, C3). Because only the command queue ever mutates the
// held value, and the realtime thread only reads it between
// ProcessCommands calls, there is no tearing: the value observed on the
// realtime thread is always either the previous complete value or the new
// complete value, never a mix.
type SharedData[T any] struct {
	queue *CommandQueue
	value T
}

// NewSharedData returns a cell holding initial, mutated through queue.
func NewSharedData[T any](queue *CommandQueue, initial T) *SharedData[T] {
	return &SharedData[T]{queue: queue, value: initial}
}

// Set enqueues a command that installs v as the new value, to take effect
// on the realtime thread's next ProcessCommands call (§3 invariant: "A
// SharedData write from the non-realtime thread is visible to the
// realtime thread only after the next process_commands call").
func (s *SharedData[T]) Set(v T) {
	s.queue.Push(newCommand(func() { s.value = v }, nil))
}

// SetFromRTThread writes v directly, bypassing the command queue. Spec
// §4.3 describes this variant for values the realtime thread itself needs
// to update so the non-realtime side observes them on the next cycle; it
// is justified by the single-writer discipline of §5 — only the realtime
// thread ever calls this for a given SharedData, so there is no race with
// Set, which only the non-realtime thread calls.
func (s *SharedData[T]) SetFromRTThread(v T) { s.value = v }

// Get returns the current value. Must only be called from the realtime
// thread, or from any thread while the owning CommandQueue is in bypass
// mode (construction/destruction).
func (s *SharedData[T]) Get() T { return s.value }

// BlockParameter carries the current value of T and the value from the
// immediately preceding audio period (spec §3, §4.6, §8). Every
// BlockParameter must be assigned exactly once per audio period; debug
// builds (ssrdebug tag) catch violations via ExactlyOneAssignment.
type BlockParameter[T any] struct {
	current     T
	old         T
	assignCount int
}

// NewBlockParameter returns a parameter with both current and old set to
// initial.
func NewBlockParameter[T any](initial T) BlockParameter[T] {
	return BlockParameter[T]{current: initial, old: initial}
}

// Set moves the current value into the old slot and stores v as current.
// Intended to be called exactly once per audio period.
func (p *BlockParameter[T]) Set(v T) {
	debugAssert(p.assignCount == 0, "BlockParameter assigned more than once this period")
	p.old = p.current
	p.current = v
	p.assignCount++
}

// Get returns the current value.
func (p *BlockParameter[T]) Get() T { return p.current }

// Old returns the value from the previous period.
func (p *BlockParameter[T]) Old() T { return p.old }

// Changed reports whether Get() and Old() differ, per a caller-supplied
// equality function (BlockParameter itself is agnostic to T's comparability).
func (p *BlockParameter[T]) Changed(equal func(a, b T) bool) bool {
	return !equal(p.current, p.old)
}

// ExactlyOneAssignment reports whether Set was called exactly once since
// the last call to BeginPeriod. Spec §8's testable property: "For every
// BlockParameter in every renderer, exactly one assignment per audio
// period"; a second assignment within the same period makes this return
// false (spec §8 scenario 3).
func (p *BlockParameter[T]) ExactlyOneAssignment() bool {
	return p.assignCount == 1
}

// BeginPeriod resets the per-period assignment counter; call once at the
// start of each audio period before any Set calls for that period.
func (p *BlockParameter[T]) BeginPeriod() { p.assignCount = 0 }
