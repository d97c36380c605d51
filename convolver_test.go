package ssr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestConvolverDiracImpulseResponse is spec scenario 2 (§8): block size 8,
// a filter with three non-zero taps at samples 10, 11, 12, and two input
// blocks each carrying one impulse. The partitioned convolver must
// reproduce ordinary linear convolution block by block; since the taps
// start in the filter's second partition, each impulse's response lands in
// the block after the one that carried it.
func TestConvolverDiracImpulseResponse(t *testing.T) {
	const blockSize = 8
	ir := make([]float64, 13)
	ir[10], ir[11], ir[12] = 5, 4, 3

	conv := NewConvolver(blockSize, 2)
	filter := conv.PrepareFilter(ir)
	require.Equal(t, 2, filter.NumPartitions())

	out := conv.NewOutputStage()
	out.SetStaticFilter(filter)

	block1 := make([]float64, blockSize)
	block1[1] = 1.0
	block2 := make([]float64, blockSize)
	block2[1] = 2.0

	conv.AddBlock(block1)
	first := conv.Convolve(out, 1.0)
	require.Equal(t, make([]float64, blockSize), first, "output is silent for one block (the taps start in the second partition)")

	conv.AddBlock(block2)
	second := conv.Convolve(out, 1.0)
	require.InDeltaSlice(t, []float64{0, 0, 0, 5, 4, 3, 0, 0}, second, 1e-9)

	conv.AddBlock(make([]float64, blockSize))
	third := conv.Convolve(out, 1.0)
	require.InDeltaSlice(t, []float64{0, 0, 0, 10, 8, 6, 0, 0}, third, 1e-9)
}

func TestConvolverZeroInputProducesZeroOutput(t *testing.T) {
	conv := NewConvolver(8, 2)
	ir := make([]float64, 13)
	ir[10] = 1
	filter := conv.PrepareFilter(ir)
	out := conv.NewOutputStage()
	out.SetStaticFilter(filter)

	conv.AddBlock(make([]float64, 8))
	result := conv.Convolve(out, 1.0)
	require.Equal(t, make([]float64, 8), result)
}

func TestPartitionedFilterPartitionCount(t *testing.T) {
	conv := NewConvolver(8, 4)
	ir := make([]float64, 25) // ceil(25/8) = 4
	filter := conv.PrepareFilter(ir)
	require.Equal(t, 4, filter.NumPartitions())
}

func TestOutputStageStaggeredFilterUpdate(t *testing.T) {
	conv := NewConvolver(8, 3)
	irA := make([]float64, 24)
	irB := make([]float64, 24)
	for i := range irB {
		irB[i] = 1
	}
	filterA := conv.PrepareFilter(irA)
	filterB := conv.PrepareFilter(irB)

	out := conv.NewOutputStage()
	out.SetStaticFilter(filterA)
	out.SetFilter(filterB)
	require.False(t, out.QueuesEmpty())

	out.RotateQueues()
	out.RotateQueues()
	require.True(t, out.QueuesEmpty())
}
