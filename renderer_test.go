package ssr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRenderSource struct {
	*Source
}

func (fakeRenderSource) Process() {}

func newFakeRendererBase() *RendererBase[fakeRenderSource] {
	q := NewCommandQueue(8)
	return NewRendererBase[fakeRenderSource](q, NewWorkerPool(1), 1024)
}

func TestRendererBaseAddSourceGeneratesAutoID(t *testing.T) {
	base := newFakeRendererBase()
	src, err := base.AddSource("", func(id string) fakeRenderSource {
		return fakeRenderSource{&Source{ID: id}}
	})
	require.NoError(t, err)
	require.Equal(t, ".ssr:1", src.ID)
}

func TestRendererBaseAddSourceRejectsDuplicateID(t *testing.T) {
	base := newFakeRendererBase()
	create := func(id string) fakeRenderSource { return fakeRenderSource{&Source{ID: id}} }

	_, err := base.AddSource("voice", create)
	require.NoError(t, err)

	_, err = base.AddSource("voice", create)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRendererBaseGetSourceAndSourceIDs(t *testing.T) {
	base := newFakeRendererBase()
	create := func(id string) fakeRenderSource { return fakeRenderSource{&Source{ID: id}} }
	_, err := base.AddSource("a", create)
	require.NoError(t, err)
	_, err = base.AddSource("b", create)
	require.NoError(t, err)

	_, ok := base.GetSource("a")
	require.True(t, ok)
	_, ok = base.GetSource("missing")
	require.False(t, ok)

	ids := base.SourceIDs()
	require.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestRendererBaseRemSourceRunsDestroyAndUnknownErrors(t *testing.T) {
	base := newFakeRendererBase()
	create := func(id string) fakeRenderSource { return fakeRenderSource{&Source{ID: id}} }
	_, err := base.AddSource("a", create)
	require.NoError(t, err)

	destroyed := false
	err = base.RemSource("a", func(fakeRenderSource) { destroyed = true })
	require.NoError(t, err)
	require.True(t, destroyed)

	_, ok := base.GetSource("a")
	require.False(t, ok)

	err = base.RemSource("a", nil)
	require.ErrorIs(t, err, ErrUnknownSource)
}

func TestRendererBaseRemAllSourcesClearsRegistry(t *testing.T) {
	base := newFakeRendererBase()
	create := func(id string) fakeRenderSource { return fakeRenderSource{&Source{ID: id}} }
	_, _ = base.AddSource("a", create)
	_, _ = base.AddSource("b", create)

	base.RemAllSources(nil)
	require.Empty(t, base.SourceIDs())
}

func TestSourceAsSourcePromotesFromEmbedding(t *testing.T) {
	src := &Source{ID: "x"}
	wrapped := fakeRenderSource{src}
	require.Same(t, src, wrapped.AsSource())
}
