package ssr

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
	lua "github.com/yuin/gopher-lua"
)

// SourceRegistry resolves a control-surface-visible source id to the live
// *Source a renderer owns (spec §6's "external control layer", out of
// scope for the engine itself beyond the take_control/update_follower
// entry points it exposes).
type SourceRegistry interface {
	GetSource(id string) (*Source, bool)
	SourceIDs() []string
}

// OutputReporter exposes a renderer's rendered output channels after a
// Period call, for Describe's per-channel levels.
type OutputReporter interface {
	NumOutputs() int
	OutputBuffer(ch int) []float64
}

// sourceLike is satisfied by every renderer's own source type, since each
// embeds *Source and so promotes AsSource automatically.
type sourceLike interface {
	ProcessItem
	AsSource() *Source
}

// registryAdapter adapts one renderer's typed RendererBase to the
// control surface's renderer-agnostic SourceRegistry.
type registryAdapter[S sourceLike] struct{ base *RendererBase[S] }

// RegistryFor wraps a renderer's base in a SourceRegistry the control
// surface can address without knowing the renderer's concrete source type.
func RegistryFor[S sourceLike](base *RendererBase[S]) SourceRegistry {
	return registryAdapter[S]{base: base}
}

func (a registryAdapter[S]) GetSource(id string) (*Source, bool) {
	s, ok := a.base.GetSource(id)
	if !ok {
		return nil, false
	}
	return s.AsSource(), true
}

func (a registryAdapter[S]) SourceIDs() []string { return a.base.SourceIDs() }

// RendererHandle is one renderer's control-surface registration: Sources
// is required, Outputs is nil for a renderer Describe shouldn't report
// per-channel levels for.
type RendererHandle struct {
	Sources SourceRegistry
	Outputs OutputReporter
}

// Control is the non-realtime control surface (spec §6): take_control
// batches every mutation a caller issues and applies it as one unit
// between audio periods, matching §7's "the scoped lock guarantees the
// engine ends up in its last consistent state; nothing is left
// half-applied."
type Control struct {
	queue     *CommandQueue
	renderers map[string]RendererHandle
	mu        sync.Mutex
}

// NewControl returns a control surface over queue, addressing sources
// through the given named renderer handles (one per active renderer).
func NewControl(queue *CommandQueue, renderers map[string]RendererHandle) *Control {
	return &Control{queue: queue, renderers: renderers}
}

func (c *Control) lookup(renderer, id string) (*Source, bool) {
	h, ok := c.renderers[renderer]
	if !ok {
		return nil, false
	}
	return h.Sources.GetSource(id)
}

// TakeControl runs fn with exclusive access to the control surface. Every
// mutation fn issues through tx is pushed onto the command queue; once fn
// returns, TakeControl blocks until the realtime thread has applied the
// entire batch, so the whole script's effect lands in a single period
// boundary (spec §6: "atomically batch multiple scene mutations").
func (c *Control) TakeControl(fn func(tx *ControlTx)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx := &ControlTx{control: c}
	fn(tx)
	c.queue.Wait()
}

// ControlTx is the batch of mutations a single TakeControl call queues.
type ControlTx struct{ control *Control }

// SetPosition queues renderer/id's position update.
func (tx *ControlTx) SetPosition(renderer, id string, pos Position) {
	src, ok := tx.control.lookup(renderer, id)
	if !ok {
		return
	}
	tx.control.queue.Push(newCommand(func() { src.Pose.Position = pos }, nil))
}

// SetOrientation queues renderer/id's orientation update (2D azimuth
// convention, degrees, matching the rest of the public API).
func (tx *ControlTx) SetOrientation(renderer, id string, azimuth2D float64) {
	src, ok := tx.control.lookup(renderer, id)
	if !ok {
		return
	}
	o := OrientationFromAzimuth2D(azimuth2D)
	tx.control.queue.Push(newCommand(func() { src.Pose.Orientation = o }, nil))
}

// SetGain queues renderer/id's linear gain update.
func (tx *ControlTx) SetGain(renderer, id string, gain float64) {
	src, ok := tx.control.lookup(renderer, id)
	if !ok {
		return
	}
	tx.control.queue.Push(newCommand(func() { src.Gain = gain }, nil))
}

// SetMute queues renderer/id's mute flag.
func (tx *ControlTx) SetMute(renderer, id string, mute bool) {
	src, ok := tx.control.lookup(renderer, id)
	if !ok {
		return
	}
	tx.control.queue.Push(newCommand(func() { src.Mute = mute }, nil))
}

// SetActive queues renderer/id's active flag.
func (tx *ControlTx) SetActive(renderer, id string, active bool) {
	src, ok := tx.control.lookup(renderer, id)
	if !ok {
		return
	}
	tx.control.queue.Push(newCommand(func() { src.Active = active }, nil))
}

// UpdateFollower queues a binding that sets follower's pose to leader's
// current pose plus a fixed offset (spec §6 "update_follower"). Both the
// read of leader's pose and the write to follower's pose happen inside the
// same Command.Execute on the realtime thread, so there is no race with a
// concurrent mutation of the leader's pose by another queued command.
func (tx *ControlTx) UpdateFollower(renderer, followerID, leaderID string, offset Position) {
	follower, ok1 := tx.control.lookup(renderer, followerID)
	leader, ok2 := tx.control.lookup(renderer, leaderID)
	if !ok1 || !ok2 {
		return
	}
	tx.control.queue.Push(newCommand(func() {
		follower.Pose.Position = r3.Add(leader.Pose.Position, offset)
		follower.Pose.Orientation = leader.Pose.Orientation
	}, nil))
}

// LuaScript is an embedded Lua control surface (spec §6, grounded on the
// teacher's declared-but-unwired github.com/yuin/gopher-lua dependency):
// each Run call opens a fresh interpreter, binds the take_control mutation
// primitives as Lua globals, and executes the script as one batch.
type LuaScript struct {
	control *Control
}

// NewLuaScript returns a Lua control surface over control.
func NewLuaScript(control *Control) *LuaScript { return &LuaScript{control: control} }

// Run executes src as a Lua chunk with set_position, set_orientation,
// set_gain, set_mute, set_active, and update_follower bound as globals,
// each taking a renderer name as its first argument. The whole script runs
// inside one TakeControl batch.
func (s *LuaScript) Run(src string) error {
	var runErr error
	s.control.TakeControl(func(tx *ControlTx) {
		L := lua.NewState()
		defer L.Close()
		bindControlFuncs(L, tx)
		runErr = L.DoString(src)
	})
	return runErr
}

func bindControlFuncs(L *lua.LState, tx *ControlTx) {
	L.SetGlobal("set_position", L.NewFunction(func(L *lua.LState) int {
		renderer, id := L.CheckString(1), L.CheckString(2)
		x, y, z := L.CheckNumber(3), L.CheckNumber(4), L.CheckNumber(5)
		tx.SetPosition(renderer, id, NewPosition(float64(x), float64(y), float64(z)))
		return 0
	}))
	L.SetGlobal("set_orientation", L.NewFunction(func(L *lua.LState) int {
		renderer, id := L.CheckString(1), L.CheckString(2)
		azimuth := L.CheckNumber(3)
		tx.SetOrientation(renderer, id, float64(azimuth))
		return 0
	}))
	L.SetGlobal("set_gain", L.NewFunction(func(L *lua.LState) int {
		renderer, id := L.CheckString(1), L.CheckString(2)
		gain := L.CheckNumber(3)
		tx.SetGain(renderer, id, float64(gain))
		return 0
	}))
	L.SetGlobal("set_mute", L.NewFunction(func(L *lua.LState) int {
		renderer, id := L.CheckString(1), L.CheckString(2)
		tx.SetMute(renderer, id, L.CheckBool(3))
		return 0
	}))
	L.SetGlobal("set_active", L.NewFunction(func(L *lua.LState) int {
		renderer, id := L.CheckString(1), L.CheckString(2)
		tx.SetActive(renderer, id, L.CheckBool(3))
		return 0
	}))
	L.SetGlobal("update_follower", L.NewFunction(func(L *lua.LState) int {
		renderer := L.CheckString(1)
		followerID, leaderID := L.CheckString(2), L.CheckString(3)
		dx, dy, dz := L.CheckNumber(4), L.CheckNumber(5), L.CheckNumber(6)
		tx.UpdateFollower(renderer, followerID, leaderID, NewPosition(float64(dx), float64(dy), float64(dz)))
		return 0
	}))
}

// RendererSnapshot is one renderer's entry in a Describe snapshot: its
// source count and, where the renderer reports output buffers, the RMS
// level of each channel as of the last Period call.
type RendererSnapshot struct {
	Renderer string
	Sources  int
	Levels   []float64 // nil if the renderer has no registered OutputReporter
}

// Describe takes a non-realtime snapshot of every registered renderer's
// source count and output levels (spec §6: the core-side half of what a
// GUI or OSC bridge would poll). It does not go through the command queue
// since it only reads already-published state (source counts from each
// registry, output buffers from the last completed Period); nothing here
// mutates the scene.
func (c *Control) Describe() []RendererSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.renderers))
	for name := range c.renderers {
		names = append(names, name)
	}
	sort.Strings(names)

	snapshots := make([]RendererSnapshot, 0, len(names))
	for _, name := range names {
		h := c.renderers[name]
		snap := RendererSnapshot{Renderer: name, Sources: len(h.Sources.SourceIDs())}
		if h.Outputs != nil {
			snap.Levels = make([]float64, h.Outputs.NumOutputs())
			for ch := range snap.Levels {
				snap.Levels[ch] = rmsLevel(h.Outputs.OutputBuffer(ch))
			}
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots
}

func rmsLevel(buf []float64) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, v := range buf {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(buf)))
}

// DescribeCSV writes Describe's snapshot as one header row plus one row
// per renderer-channel (renderer,sources,channel,level; a renderer with
// no OutputReporter gets a single row with an empty channel/level).
func (c *Control) DescribeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"renderer", "sources", "channel", "level"}); err != nil {
		return err
	}
	for _, snap := range c.Describe() {
		if len(snap.Levels) == 0 {
			if err := cw.Write([]string{snap.Renderer, fmt.Sprint(snap.Sources), "", ""}); err != nil {
				return err
			}
			continue
		}
		for ch, level := range snap.Levels {
			row := []string{snap.Renderer, fmt.Sprint(snap.Sources), fmt.Sprint(ch), fmt.Sprintf("%.6f", level)}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
