package ssr

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/intuitionamiga/ssrengine/internal/stopwatch"
)

func TestWorkerPoolVisitsEveryIndexExactlyOnce(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Stop()

	const count = 97 // deliberately not a multiple of N
	var seen [count]atomic.Int32
	pool.Run(count, func(i int) { seen[i].Add(1) })

	for i := 0; i < count; i++ {
		require.Equal(t, int32(1), seen[i].Load(), "index %d visited %d times", i, seen[i].Load())
	}
}

func TestWorkerPoolRunBlocksUntilAllWorkersFinish(t *testing.T) {
	pool := NewWorkerPool(3)
	defer pool.Stop()

	var done atomic.Int32
	pool.Run(30, func(i int) { done.Add(1) })
	require.Equal(t, int32(30), done.Load())
}

func TestWorkerPoolSingleWorkerRunsOnCallingGoroutine(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Stop()
	require.Equal(t, 1, pool.N())

	var total int
	pool.Run(10, func(i int) { total += i })
	require.Equal(t, 45, total)
}

func TestWorkerPoolNReportsTotalWorkers(t *testing.T) {
	pool := NewWorkerPool(5)
	defer pool.Stop()
	require.Equal(t, 5, pool.N())
}

func TestWorkerPoolZeroOrNegativeClampsToOne(t *testing.T) {
	pool := NewWorkerPool(0)
	defer pool.Stop()
	require.Equal(t, 1, pool.N())
}

// TestWorkerPoolSimulatedPeriodCompletesWithinDeadline is the worker
// pool's self-test (spec §4.7): a realtime period's list walk, split
// across goroutines with their own handshake overhead, must finish within
// 50 times the budget of one simulated period.
func TestWorkerPoolSimulatedPeriodCompletesWithinDeadline(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Stop()

	const blockSize = 256
	const sampleRate = 48000
	periodBudget := time.Duration(float64(blockSize) / sampleRate * float64(time.Second))

	elapsed, ok := stopwatch.Within(periodBudget*50, func() {
		pool.Run(512, func(i int) {
			_ = i * i
		})
	})
	require.True(t, ok, "simulated period took %s, budget was %s", elapsed, periodBudget*50)
}

func TestWorkerPoolRepeatedRunsReuseWorkers(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Stop()

	for round := 0; round < 5; round++ {
		var count atomic.Int32
		pool.Run(20, func(i int) { count.Add(1) })
		require.Equal(t, int32(20), count.Load())
	}
}
