package ssr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandQueueBypassRunsSynchronously(t *testing.T) {
	q := NewCommandQueue(8)
	ran := false
	q.Push(newCommand(func() { ran = true }, nil))
	require.True(t, ran, "bypass mode must execute immediately")
}

func TestCommandQueueActiveDefersExecution(t *testing.T) {
	q := NewCommandQueue(8)
	q.Activate()
	ran := false
	q.Push(newCommand(func() { ran = true }, nil))
	require.False(t, ran, "active mode must defer execution to ProcessCommands")

	q.ProcessCommands()
	require.True(t, ran)
}

func TestCommandQueueCleanupRunsAfterExecute(t *testing.T) {
	q := NewCommandQueue(8)
	q.Activate()
	order := make([]string, 0, 2)
	q.Push(newCommand(
		func() { order = append(order, "execute") },
		func() { order = append(order, "cleanup") },
	))
	q.ProcessCommands()
	require.Equal(t, []string{"execute"}, order)
	q.CleanupCommands()
	require.Equal(t, []string{"execute", "cleanup"}, order)
}

func TestCommandQueueWaitBlocksUntilDrained(t *testing.T) {
	q := NewCommandQueue(8)
	q.Activate()
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				q.ProcessCommands()
			}
		}
	}()
	q.Wait()
	close(stop)
}

func TestCommandQueueDeactivateRequiresEmptyInbound(t *testing.T) {
	q := NewCommandQueue(8)
	require.True(t, q.Empty())
	q.Deactivate()
}
