// Package engine keeps the audio graph consistent with the mix state.
//
// Every mutation of the mix goes through the Engine. It owns one node set per
// layer (cached decoded buffer plus the live voice, if any), serializes all
// operations with a single mutex and runs fetch and decode outside of it.
// Each play or stop bumps a per-layer intent token; a decode that finishes
// after a newer intent was recorded caches its buffer but starts nothing.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/soundscape/internal/audio"
	"github.com/satindergrewal/soundscape/internal/catalog"
	"github.com/satindergrewal/soundscape/internal/events"
	"github.com/satindergrewal/soundscape/internal/logging"
	"github.com/satindergrewal/soundscape/internal/mix"
	"github.com/satindergrewal/soundscape/internal/telemetry"
)

// ErrLayerNotFound is returned for operations on an unknown layer id.
var ErrLayerNotFound = errors.New("layer not found")

// Graph is the output graph the engine drives.
type Graph interface {
	Init() error
	SetMasterGain(gain float64)
	Decode(data []byte) (audio.Buffer, error)
	Start(buf audio.Buffer, gain float64, loop bool) (audio.Voice, error)
	Close() error
}

// Resolver looks sounds up by id.
type Resolver interface {
	Resolve(id string) (catalog.Sound, bool)
}

// Fetcher loads the encoded bytes behind a locator.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// Publisher receives a snapshot after every change.
type Publisher interface {
	Publish(eventType events.EventType, payload events.Payload)
}

// load is a fetch+decode in progress, shared by concurrent plays of the
// same layer and sound.
type load struct {
	soundID string
	done    chan struct{}
	buf     audio.Buffer
	ok      bool
}

// failed reports whether the load has finished without a buffer. A failed
// load left behind by cancelled waiters is retried, not reused.
func (ld *load) failed() bool {
	select {
	case <-ld.done:
		return !ld.ok
	default:
		return false
	}
}

type nodeSet struct {
	buffer    audio.Buffer
	bufferFor string
	voice     audio.Voice
	intent    uint64
	inflight  *load
}

// Engine is the audio layer engine.
type Engine struct {
	graph   Graph
	catalog Resolver
	fetcher Fetcher
	bus     Publisher
	logger  zerolog.Logger

	// loads outlive the request that started them but not the engine.
	loadCtx     context.Context
	cancelLoads context.CancelFunc

	mu         sync.Mutex
	graphReady bool
	state      *mix.State
	nodes      map[string]*nodeSet
	live       int
}

// New creates an engine with an empty mix at masterVolume percent.
// bus may be nil.
func New(graph Graph, cat Resolver, fetcher Fetcher, bus Publisher, masterVolume int, logger zerolog.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		graph:       graph,
		catalog:     cat,
		fetcher:     fetcher,
		bus:         bus,
		logger:      logging.Component(logger, "engine"),
		loadCtx:     ctx,
		cancelLoads: cancel,
		state:       mix.NewState(masterVolume),
		nodes:       make(map[string]*nodeSet),
	}
}

// InitializeGraph builds the output graph once. Later calls are no-ops.
func (e *Engine) InitializeGraph() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.graphReady {
		return nil
	}
	if err := e.graph.Init(); err != nil {
		return fmt.Errorf("initialize graph: %w", err)
	}
	e.graph.SetMasterGain(float64(e.state.MasterVolume()) / 100)
	e.graphReady = true
	return nil
}

// GraphReady reports whether InitializeGraph has succeeded.
func (e *Engine) GraphReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graphReady
}

// Snapshot returns a copy of the current mix.
func (e *Engine) Snapshot() mix.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Snapshot()
}

// SetMasterVolume clamps percent to 0-100 and applies it to the master bus.
// Per-layer gains are untouched.
func (e *Engine) SetMasterVolume(percent int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.SetMasterVolume(percent)
	if e.graphReady {
		e.graph.SetMasterGain(float64(e.state.MasterVolume()) / 100)
	}
	e.publishLocked()
}

// AddLayer appends a layer with default settings and returns it.
func (e *Engine) AddLayer() mix.Layer {
	e.mu.Lock()
	defer e.mu.Unlock()
	l := mix.NewLayer(fmt.Sprintf("Layer %d", e.state.Len()+1))
	e.state.Append(l)
	e.publishLocked()
	return l
}

// RemoveLayer stops the layer and forgets everything about it.
func (e *Engine) RemoveLayer(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Remove(id) {
		return fmt.Errorf("%s: %w", id, ErrLayerNotFound)
	}
	if ns, ok := e.nodes[id]; ok {
		e.stopVoiceLocked(id, ns)
		delete(e.nodes, id)
	}
	e.publishLocked()
	return nil
}

// SetCategory selects a category for a layer. The sound selection is cleared,
// playback stops and the cached buffer is dropped.
func (e *Engine) SetCategory(id, category, categoryID string) error {
	return e.changeSelection(id, func(l *mix.Layer) { l.SetCategory(category, categoryID) })
}

// SetSound selects a sound for a layer. Playback stops and the cached buffer
// is dropped; the next Play fetches the new sound.
func (e *Engine) SetSound(id, soundID string) error {
	return e.changeSelection(id, func(l *mix.Layer) { l.SetSound(soundID) })
}

func (e *Engine) changeSelection(id string, fn func(*mix.Layer)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Update(id, fn) {
		return fmt.Errorf("%s: %w", id, ErrLayerNotFound)
	}
	if ns, ok := e.nodes[id]; ok {
		ns.intent++
		e.stopVoiceLocked(id, ns)
		ns.buffer = nil
		ns.bufferFor = ""
	}
	e.publishLocked()
	return nil
}

// SetVolume stores the layer volume and updates a live voice in place.
// Muted layers keep gain 0.
func (e *Engine) SetVolume(id string, percent int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Update(id, func(l *mix.Layer) { l.Volume = percent }) {
		return fmt.Errorf("%s: %w", id, ErrLayerNotFound)
	}
	e.applyGainLocked(id)
	e.publishLocked()
	return nil
}

// ToggleMute flips the mute flag without restarting playback.
func (e *Engine) ToggleMute(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Update(id, func(l *mix.Layer) { l.IsMuted = !l.IsMuted }) {
		return fmt.Errorf("%s: %w", id, ErrLayerNotFound)
	}
	e.applyGainLocked(id)
	e.publishLocked()
	return nil
}

func (e *Engine) applyGainLocked(id string) {
	ns, ok := e.nodes[id]
	if !ok || ns.voice == nil {
		return
	}
	l, _ := e.state.Get(id)
	ns.voice.SetGain(l.Gain())
}

// TogglePlay plays a stopped layer and stops a playing one.
func (e *Engine) TogglePlay(ctx context.Context, id string) error {
	e.mu.Lock()
	l, ok := e.state.Get(id)
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrLayerNotFound)
	}
	if l.IsPlaying {
		return e.Stop(id)
	}
	return e.Play(ctx, id)
}

// Play starts the layer's selected sound, fetching and decoding it on first
// use. Missing selections, unknown sounds, an uninitialized graph and
// fetch or decode failures all leave the layer stopped without an error.
func (e *Engine) Play(ctx context.Context, id string) error {
	e.mu.Lock()
	l, ok := e.state.Get(id)
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%s: %w", id, ErrLayerNotFound)
	}
	soundID := l.SoundID()
	if soundID == "" || !e.graphReady {
		e.mu.Unlock()
		return nil
	}

	ns := e.nodeSetLocked(id)
	ns.intent++
	token := ns.intent
	e.stopVoiceLocked(id, ns)
	if l.IsPlaying {
		e.state.Update(id, func(l *mix.Layer) { l.IsPlaying = false })
		e.publishLocked()
	}

	if ns.buffer != nil && ns.bufferFor == soundID {
		telemetry.BufferCacheHits.Inc()
		e.startLocked(id, ns, ns.buffer)
		e.publishLocked()
		e.mu.Unlock()
		return nil
	}

	ld := ns.inflight
	if ld != nil && ld.failed() {
		ld = nil
	}
	if ld == nil || ld.soundID != soundID {
		snd, found := e.catalog.Resolve(soundID)
		if !found {
			e.mu.Unlock()
			e.logger.Debug().Str("layer_id", id).Str("sound_id", soundID).Msg("sound not found, nothing to play")
			return nil
		}
		ld = &load{soundID: soundID, done: make(chan struct{})}
		ns.inflight = ld
		go e.runLoad(ld, snd)
	}
	e.mu.Unlock()

	select {
	case <-ld.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if ns.inflight == ld {
		ns.inflight = nil
	}
	if !ld.ok {
		return nil
	}
	if e.nodes[id] != ns {
		return nil
	}
	cur, ok := e.state.Get(id)
	if !ok || cur.SoundID() != soundID {
		return nil
	}
	ns.buffer = ld.buf
	ns.bufferFor = soundID
	if ns.intent != token {
		e.logger.Debug().Str("layer_id", id).Msg("play superseded while loading")
		return nil
	}
	e.startLocked(id, ns, ld.buf)
	e.publishLocked()
	return nil
}

// runLoad fetches and decodes outside the engine lock. It runs on the
// engine's context, not the request's, because other plays may be waiting
// on the same load.
func (e *Engine) runLoad(ld *load, snd catalog.Sound) {
	defer close(ld.done)

	data, err := e.fetcher.Fetch(e.loadCtx, snd.Locator)
	if err != nil {
		e.logger.Warn().Err(err).Str("sound_id", snd.ID).Str("locator", snd.Locator).Msg("fetch failed")
		return
	}
	buf, err := e.graph.Decode(data)
	if err != nil {
		telemetry.DecodesTotal.WithLabelValues("error").Inc()
		e.logger.Warn().Err(err).Str("sound_id", snd.ID).Msg("decode failed")
		return
	}
	telemetry.DecodesTotal.WithLabelValues("ok").Inc()
	e.logger.Debug().Str("sound_id", snd.ID).Dur("duration", buf.Duration()).Msg("sound decoded")
	ld.buf = buf
	ld.ok = true
}

func (e *Engine) startLocked(id string, ns *nodeSet, buf audio.Buffer) {
	l, _ := e.state.Get(id)
	v, err := e.graph.Start(buf, l.Gain(), l.Loop)
	if err != nil {
		e.logger.Warn().Err(err).Str("layer_id", id).Msg("start voice failed")
		return
	}
	ns.voice = v
	e.live++
	telemetry.LiveVoices.Set(float64(e.live))
	e.state.Update(id, func(l *mix.Layer) { l.IsPlaying = true })
}

// Stop halts playback and keeps the cached buffer for a quick restart.
func (e *Engine) Stop(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Update(id, func(l *mix.Layer) { l.IsPlaying = false }) {
		return fmt.Errorf("%s: %w", id, ErrLayerNotFound)
	}
	if ns, ok := e.nodes[id]; ok {
		ns.intent++
		e.stopVoiceLocked(id, ns)
	}
	e.publishLocked()
	return nil
}

// PlayAll plays every stopped layer that has a sound. Loads run concurrently.
func (e *Engine) PlayAll(ctx context.Context) {
	snap := e.Snapshot()
	var wg sync.WaitGroup
	for _, l := range snap.Layers {
		if l.IsPlaying || l.SoundID() == "" {
			continue
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := e.Play(ctx, id); err != nil && !errors.Is(err, ErrLayerNotFound) {
				e.logger.Warn().Err(err).Str("layer_id", id).Msg("play all")
			}
		}(l.ID)
	}
	wg.Wait()
}

// PauseAll stops every layer as one change.
func (e *Engine) PauseAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, ns := range e.nodes {
		ns.intent++
		e.stopVoiceLocked(id, ns)
	}
	e.state.UpdateAll(func(l *mix.Layer) { l.IsPlaying = false })
	e.publishLocked()
}

// AdoptLayerSet stops everything, discards all cached buffers and replaces
// the layer list. Adopted layers are never playing.
func (e *Engine) AdoptLayerSet(layers []mix.Layer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetNodesLocked()
	e.state.Replace(layers)
	e.publishLocked()
}

// ClearAll removes every layer.
func (e *Engine) ClearAll() {
	e.AdoptLayerSet(nil)
}

// Reorder moves the layer at index from to index to. No audio effect.
func (e *Engine) Reorder(from, to int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.state.Move(from, to); err != nil {
		return err
	}
	e.publishLocked()
	return nil
}

// Shutdown stops every voice and tears the graph down.
func (e *Engine) Shutdown() error {
	e.cancelLoads()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetNodesLocked()
	e.state.UpdateAll(func(l *mix.Layer) { l.IsPlaying = false })
	e.graphReady = false
	return e.graph.Close()
}

func (e *Engine) resetNodesLocked() {
	for id, ns := range e.nodes {
		ns.intent++
		e.stopVoiceLocked(id, ns)
	}
	e.nodes = make(map[string]*nodeSet)
}

func (e *Engine) nodeSetLocked(id string) *nodeSet {
	ns, ok := e.nodes[id]
	if !ok {
		ns = &nodeSet{}
		e.nodes[id] = ns
	}
	return ns
}

// stopVoiceLocked stops and drops the live voice. A voice that already
// stopped is fine.
func (e *Engine) stopVoiceLocked(id string, ns *nodeSet) {
	if ns.voice == nil {
		return
	}
	if err := ns.voice.Stop(); err != nil && !errors.Is(err, audio.ErrSourceStopped) {
		e.logger.Warn().Err(err).Str("layer_id", id).Msg("stop voice")
	}
	ns.voice = nil
	e.live--
	telemetry.LiveVoices.Set(float64(e.live))
}

func (e *Engine) publishLocked() {
	snap := e.state.Snapshot()
	telemetry.Layers.Set(float64(len(snap.Layers)))
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.EventMixChanged, events.Payload{"mix": snap})
}
