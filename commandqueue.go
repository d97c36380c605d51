package ssr

import (
	"sync/atomic"
	"time"
)

// Command is an abstract work item crossing from the non-realtime thread
// to the realtime thread and back (spec §3, §4.2, §9 "Cross-thread
// ownership transfer via command queue"). Execute runs on the realtime
// thread and must not allocate or deallocate. Cleanup runs afterwards on
// the non-realtime thread and is where any owned resources are released.
type Command interface {
	Execute()
	Cleanup()
}

// funcCommand adapts a pair of closures to the Command interface; most
// scene mutations (add/remove source, set shared data) are expressed this
// way rather than as a named type per call site.
type funcCommand struct {
	execute func()
	cleanup func()
}

func (c *funcCommand) Execute() {
	if c.execute != nil {
		c.execute()
	}
}

func (c *funcCommand) Cleanup() {
	if c.cleanup != nil {
		c.cleanup()
	}
}

// newCommand builds a Command from an execute closure and an optional
// cleanup closure (nil is fine when there's nothing to release).
func newCommand(execute, cleanup func()) Command {
	return &funcCommand{execute: execute, cleanup: cleanup}
}

const defaultCommandQueueCapacity = 1024

// commandQueuePushRetryDelay is the sleep used on the rare inbound-FIFO-full
// retry path (spec §4.2: "the queue is sized to avoid this in practice").
const commandQueuePushRetryDelay = 50 * time.Microsecond

// CommandQueue is the non-realtime -> realtime command channel (spec §4.2,
// C2). It owns two FIFOs — inbound (commands waiting to run) and cleanup
// (commands that have run and are waiting to be destroyed) — plus a bypass
// mode used while no realtime thread is active (construction/destruction).
type CommandQueue struct {
	inbound *fifo[Command]
	cleanup *fifo[Command]
	active  atomic.Bool
}

// NewCommandQueue returns a queue sized for capacity pending commands,
// starting in bypass mode (matching construction time, before any realtime
// thread runs, per §4.2).
func NewCommandQueue(capacity int) *CommandQueue {
	if capacity <= 0 {
		capacity = defaultCommandQueueCapacity
	}
	q := &CommandQueue{
		inbound: newFIFO[Command](capacity),
		cleanup: newFIFO[Command](capacity),
	}
	return q
}

// Activate puts the queue into normal mode: Push enqueues for the realtime
// thread to drain via ProcessCommands instead of running synchronously.
func (q *CommandQueue) Activate() { q.active.Store(true) }

// Deactivate puts the queue into bypass mode. Per §4.2 this is only valid
// once the inbound FIFO is empty (no realtime thread left to drain it);
// callers are expected to have stopped the realtime thread first.
func (q *CommandQueue) Deactivate() {
	debugAssert(q.inbound.len() == 0, "Deactivate called with commands still pending")
	q.active.Store(false)
}

// Push enqueues cmd. In active mode it pushes onto the inbound FIFO for the
// realtime thread, first draining the cleanup FIFO so it doesn't grow
// without bound (§4.2). In bypass mode it runs cmd synchronously and
// cleans it up immediately, since no realtime thread is around to do so.
func (q *CommandQueue) Push(cmd Command) {
	q.CleanupCommands()

	if !q.active.Load() {
		cmd.Execute()
		cmd.Cleanup()
		return
	}

	for !q.inbound.push(&cmd) {
		logWarn("command queue inbound FIFO full, retrying (sizing bug)")
		time.Sleep(commandQueuePushRetryDelay)
	}
}

// ProcessCommands drains every command queued before this call, running
// Execute on the realtime thread, then pushing each onto the cleanup FIFO
// for the non-realtime thread to destroy. Call once per audio period,
// before walking any realtime list (§4.7 step 1).
func (q *CommandQueue) ProcessCommands() {
	for {
		p := q.inbound.pop()
		if p == nil {
			return
		}
		cmd := *p
		cmd.Execute()
		if !q.cleanup.push(&cmd) {
			// Spec §4.2: impossible in practice, and merely an audible-only
			// leak (the command's resources are never released) rather than
			// a correctness problem — the command already ran.
			logWarn("command queue cleanup FIFO full, leaking one command")
		}
	}
}

// CleanupCommands destroys every command that has finished executing.
// Call from the non-realtime thread.
func (q *CommandQueue) CleanupCommands() {
	for {
		p := q.cleanup.pop()
		if p == nil {
			return
		}
		(*p).Cleanup()
	}
}

// Wait blocks the calling (non-realtime) thread until the realtime thread
// has processed every command pushed before this call, by pushing a
// sentinel command and polling for its cleanup to run (§4.2).
func (q *CommandQueue) Wait() {
	var done atomic.Bool
	q.Push(newCommand(nil, func() { done.Store(true) }))
	for !done.Load() {
		time.Sleep(commandQueuePushRetryDelay)
		q.CleanupCommands()
	}
}

// Empty reports whether the inbound FIFO currently holds no pending
// commands; used by Deactivate's precondition and by tests.
func (q *CommandQueue) Empty() bool { return q.inbound.len() == 0 }
