package ssr

import "golang.org/x/sync/errgroup"

// ProcessItem is one element of an input, intermediate, or output list
// walked by a MIMOProcessor every audio period (spec §4.7, C7).
type ProcessItem interface {
	Process()
}

// itemSlot wraps a ProcessItem so rtList has a distinct pointer identity
// per list entry, even when the same ProcessItem value is added twice.
type itemSlot struct {
	item ProcessItem
}

func (s *itemSlot) Process() { s.item.Process() }

// MIMOProcessor is the multiple-input/multiple-output engine owning the
// three realtime lists (inputs, intermediates, outputs) and the per-period
// processing loop (spec §4.7). Renderers embed one MIMOProcessor and
// supply a Process hook that walks their own scene-specific state between
// the input and output walks.
type MIMOProcessor struct {
	queue *CommandQueue
	pool  *WorkerPool

	inputs        *rtList[itemSlot]
	intermediates *rtList[itemSlot]
	outputs       *rtList[itemSlot]

	// Process runs after the input list has been walked and before the
	// output list is, typically fanning out over auxiliary (non-list)
	// renderer state such as per-source convolution.
	Process func()
}

// NewMIMOProcessor returns a processor driven by queue and pool. process
// may be nil for a pass-through engine with no per-period hook beyond the
// three list walks.
func NewMIMOProcessor(queue *CommandQueue, pool *WorkerPool, process func()) *MIMOProcessor {
	return &MIMOProcessor{
		queue:         queue,
		pool:          pool,
		inputs:        newRTList[itemSlot](queue),
		intermediates: newRTList[itemSlot](queue),
		outputs:       newRTList[itemSlot](queue),
		Process:       process,
	}
}

// AddInput enqueues item onto the input list and returns the slot handle
// needed to remove it later.
func (m *MIMOProcessor) AddInput(item ProcessItem) *itemSlot {
	slot := &itemSlot{item: item}
	m.inputs.Add(slot)
	return slot
}

// RemoveInput enqueues removal of slot from the input list; destroy, if
// non-nil, runs on the non-realtime thread once the removal has executed.
func (m *MIMOProcessor) RemoveInput(slot *itemSlot, destroy func()) {
	m.inputs.Remove(slot, func(*itemSlot) {
		if destroy != nil {
			destroy()
		}
	})
}

// AddIntermediate enqueues item onto the intermediate list (walked after
// Process, before outputs), for work that depends on Process's output but
// whose own items are independent of one another.
func (m *MIMOProcessor) AddIntermediate(item ProcessItem) *itemSlot {
	slot := &itemSlot{item: item}
	m.intermediates.Add(slot)
	return slot
}

// RemoveIntermediate enqueues removal of slot from the intermediate list.
func (m *MIMOProcessor) RemoveIntermediate(slot *itemSlot, destroy func()) {
	m.intermediates.Remove(slot, func(*itemSlot) {
		if destroy != nil {
			destroy()
		}
	})
}

// AddOutput enqueues item onto the output list.
func (m *MIMOProcessor) AddOutput(item ProcessItem) *itemSlot {
	slot := &itemSlot{item: item}
	m.outputs.Add(slot)
	return slot
}

// RemoveOutput enqueues removal of slot from the output list.
func (m *MIMOProcessor) RemoveOutput(slot *itemSlot, destroy func()) {
	m.outputs.Remove(slot, func(*itemSlot) {
		if destroy != nil {
			destroy()
		}
	})
}

// Period runs one audio period: drain the command queue, walk inputs, run
// the Process hook, walk intermediates, walk outputs, then drain any
// commands (including observer-thread queries) that accumulated while
// this period's commands executed (spec §4.7 steps 1-5).
func (m *MIMOProcessor) Period() {
	m.queue.ProcessCommands()
	m.walk(m.inputs)
	if m.Process != nil {
		m.Process()
	}
	m.walk(m.intermediates)
	m.walk(m.outputs)
	m.queue.CleanupCommands()
}

func (m *MIMOProcessor) walk(list *rtList[itemSlot]) {
	items := list.Items()
	m.pool.Run(len(items), func(i int) { items[i].Process() })
}

// Activate puts the command queue into normal (non-bypass) mode. Call
// once the realtime thread (or, for a headless/offline backend, the
// driving loop) is about to start calling Period.
func (m *MIMOProcessor) Activate() { m.queue.Activate() }

// Deactivate drains any residual commands, then puts the queue back into
// bypass mode. Per spec §4.7, the realtime side (Period's caller) must
// have already stopped before this is called, or Deactivate's internal
// assert on an empty inbound FIFO will fire in debug builds.
func (m *MIMOProcessor) Deactivate() {
	m.queue.CleanupCommands()
	m.queue.Deactivate()
}

// Prepare runs tasks concurrently on the non-realtime thread and returns
// the first error, if any (e.g. preparing several sources' partitioned
// filters in parallel before Activate). Never called from the realtime
// path — errgroup's own internal synchronisation is exactly the
// allocation the realtime thread must avoid, but construction-time setup
// has no such constraint.
func (m *MIMOProcessor) Prepare(tasks ...func() error) error {
	var g errgroup.Group
	for _, t := range tasks {
		g.Go(t)
	}
	return g.Wait()
}
