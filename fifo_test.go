package ssr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFIFOPushPopOrder(t *testing.T) {
	f := newFIFO[int](4)
	a, b, c := 1, 2, 3
	require.True(t, f.push(&a))
	require.True(t, f.push(&b))
	require.True(t, f.push(&c))

	require.Equal(t, &a, f.pop())
	require.Equal(t, &b, f.pop())
	require.Equal(t, &c, f.pop())
	require.Nil(t, f.pop())
}

func TestFIFOCapacityRoundsToPowerOfTwo(t *testing.T) {
	f := newFIFO[int](5)
	require.Equal(t, 8, f.capacity())
}

func TestFIFOFullPushFails(t *testing.T) {
	f := newFIFO[int](2)
	vals := []int{1, 2}
	for i := range vals {
		require.True(t, f.push(&vals[i]))
	}
	overflow := 3
	require.False(t, f.push(&overflow))
}

func TestFIFOPushNilPanics(t *testing.T) {
	f := newFIFO[int](2)
	require.Panics(t, func() { f.push(nil) })
}
