package ssr

import "sync"

// RendererBase owns the scene state, source lifecycle, and MIMO engine
// common to every back-end (spec §4.8, C8). S is the renderer's own
// Source subclass (e.g. the binaural renderer's per-source HRTF index and
// convolver input); it must be a ProcessItem so RendererBase can add it
// directly to the MIMO engine's input list.
//
// Grounded on audio_chip.go's Channel/SoundChip split (per-voice state vs
// shared chip state) for the Source/scene split, and on
// coprocessor_manager.go's ticket counter for the auto-id generator.
type RendererBase[S ProcessItem] struct {
	Queue     *CommandQueue
	MIMO      *MIMOProcessor
	Scene     *SceneState
	BlockSize int

	ids  autoIDCounter
	mu   sync.Mutex
	byID map[string]S
	slot map[string]*itemSlot
}

// NewRendererBase wires a fresh renderer base around queue, pool and
// blockSize, with no per-period hook set yet (callers set MIMO.Process
// once their own source-walk logic is ready).
func NewRendererBase[S ProcessItem](queue *CommandQueue, pool *WorkerPool, blockSize int) *RendererBase[S] {
	return &RendererBase[S]{
		Queue:     queue,
		MIMO:      NewMIMOProcessor(queue, pool, nil),
		Scene:     NewSceneState(queue),
		BlockSize: blockSize,
		byID:      make(map[string]S),
		slot:      make(map[string]*itemSlot),
	}
}

// AddSource allocates a new source via create (passed the resolved id),
// adds it to the MIMO input list through the command queue, and returns
// it. If id is empty, a unique `.ssr:<n>` id is generated (spec §4.8).
func (r *RendererBase[S]) AddSource(id string, create func(id string) S) (S, error) {
	var zero S
	if id == "" {
		id = r.ids.next()
	}
	r.mu.Lock()
	if _, exists := r.byID[id]; exists {
		r.mu.Unlock()
		return zero, newConfigError("source id", ErrInvalidConfig)
	}
	src := create(id)
	slot := r.MIMO.AddInput(src)
	r.byID[id] = src
	r.slot[id] = slot
	r.mu.Unlock()
	return src, nil
}

// RemSource enqueues removal of the source with the given id; destroy, if
// non-nil, runs on the non-realtime thread once the removal has taken
// effect on the realtime thread.
func (r *RendererBase[S]) RemSource(id string, destroy func(S)) error {
	r.mu.Lock()
	src, ok := r.byID[id]
	slot := r.slot[id]
	delete(r.byID, id)
	delete(r.slot, id)
	r.mu.Unlock()
	if !ok {
		return ErrUnknownSource
	}
	r.MIMO.RemoveInput(slot, func() {
		if destroy != nil {
			destroy(src)
		}
	})
	return nil
}

// RemAllSources enqueues removal of every current source.
func (r *RendererBase[S]) RemAllSources(destroy func(S)) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		_ = r.RemSource(id, destroy)
	}
}

// GetSource returns the source with the given id, if it exists.
func (r *RendererBase[S]) GetSource(id string) (S, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src, ok := r.byID[id]
	return src, ok
}

// SourceIDs returns a snapshot of every currently-known source id.
func (r *RendererBase[S]) SourceIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	return ids
}
