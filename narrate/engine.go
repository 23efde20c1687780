package narrate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// AudioCache caches synthesized audio keyed by text, voice and rate.
// Implementations must be safe for concurrent use.
type AudioCache interface {
	// Get returns cached audio for the key, if present.
	Get(text, voice string, rate float64) ([]byte, bool)

	// Put stores audio for the key. Failures are the cache's problem.
	Put(text, voice string, rate float64, data []byte)
}

// Options configures an Engine.
type Options struct {
	// Config holds voice, rate and backend settings.
	Config Config

	// Chunks is the chunk sequence for the session, loaded once.
	Chunks []string

	// Remote is the network synthesis backend. Optional, but at least
	// one of Remote and Local must be set. Remote requires Device.
	Remote Backend

	// Local is the platform speech backend. Optional.
	Local Speaker

	// Device plays remote audio. Required when Remote is set.
	Device Device

	// Store persists checkpoints. Optional; without it progress is not
	// saved.
	Store ProgressStore

	// Cache holds synthesized audio across chunks and sessions.
	// Optional.
	Cache AudioCache

	// UserID and DocumentID scope checkpoints.
	UserID     string
	DocumentID string

	// Online reports host connectivity. Nil means always online.
	Online func() bool

	// Transform rewrites chunk text before synthesis, for
	// pronunciation fixes. Nil means identity.
	Transform func(string) string

	// Logger receives engine diagnostics. Nil means the default logger.
	Logger *log.Logger

	// OnEvent receives every engine notification. Runs on the dispatch
	// goroutine: it must not block and must not call back into the
	// engine.
	OnEvent func(Event)

	// OnStateChange, OnChunkChange and OnError are narrower
	// notification hooks with the same constraints as OnEvent.
	OnStateChange func(from, to StateType)
	OnChunkChange func(index, queuePos, queueLen int, text string)
	OnError       func(error)
}

// Engine drives chunk-by-chunk narration of one document. All state
// lives behind a single dispatch goroutine; public methods post
// commands into it and wait for them to be processed.
type Engine struct {
	cfg      Config
	chunks   []string
	remote   Backend
	local    Speaker
	device   Device
	store    ProgressStore
	cache    AudioCache
	selector *Selector
	logger   *log.Logger

	userID     string
	documentID string
	transform  func(string) string

	onEvent       func(Event)
	onStateChange func(from, to StateType)
	onChunkChange func(index, queuePos, queueLen int, text string)
	onError       func(error)

	ctx    context.Context
	cancel context.CancelFunc

	events chan interface{}
	done   chan struct{}

	// Snapshot for readers outside the dispatch goroutine
	mu   sync.Mutex
	snap State

	// Dispatch state. Only the dispatch goroutine touches these.
	sm            *StateMachine
	queue         []int
	queuePos      int
	current       int
	currentText   string
	rate          float64
	route         Route
	generation    uint64
	lastError     error
	attemptCtx    context.Context
	attemptCancel context.CancelFunc
}

// Commands posted by public methods.
type playAllCmd struct {
	selection []int
	reply     chan error
}

type playChunkCmd struct {
	index int
	reply chan error
}

type pauseCmd struct{ reply chan error }
type resumeCmd struct{ reply chan error }
type stopCmd struct{ reply chan error }
type repeatCmd struct{ reply chan error }

type setRateCmd struct {
	rate  float64
	reply chan error
}

type closeCmd struct{ reply chan error }

// Completions posted by backend and device callbacks. Each carries the
// generation it was started under; stale generations are discarded.
type synthDone struct {
	gen   uint64
	index int
	data  []byte
	err   error
}

type playDone struct {
	gen   uint64
	index int
	err   error
}

type speechDone struct {
	gen   uint64
	index int
	err   error
}

type checkpointSaved struct {
	index int
	rate  float64
}

// New creates an engine for one narration session. The chunk sequence
// is fixed for the session; playback does not start until PlayAll or
// PlayChunk is called.
func New(opts Options) (*Engine, error) {
	if opts.Remote == nil && opts.Local == nil {
		return nil, fmt.Errorf("engine needs at least one backend")
	}
	if opts.Remote != nil && opts.Device == nil {
		return nil, fmt.Errorf("remote backend needs an audio device")
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	rate := opts.Config.Rate
	if rate == 0 {
		rate = 1.0
	}

	chunks := make([]string, len(opts.Chunks))
	copy(chunks, opts.Chunks)

	e := &Engine{
		cfg:      opts.Config,
		chunks:   chunks,
		remote:   opts.Remote,
		local:    opts.Local,
		device:   opts.Device,
		store:    opts.Store,
		cache:    opts.Cache,
		selector: NewSelector(opts.Remote, opts.Local, opts.Online),
		logger:   logger,

		userID:     opts.UserID,
		documentID: opts.DocumentID,
		transform:  opts.Transform,

		onEvent:       opts.OnEvent,
		onStateChange: opts.OnStateChange,
		onChunkChange: opts.OnChunkChange,
		onError:       opts.OnError,

		events: make(chan interface{}, 16),
		done:   make(chan struct{}),

		sm:      NewStateMachine(),
		current: -1,
		rate:    clampRate(rate),
		route:   RouteNone,
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.renewAttempt()
	e.publishState()

	go e.dispatch()

	return e, nil
}

// PlayAll starts playback of the given chunk selection. The selection
// is deduplicated and played in ascending index order regardless of
// argument order; an empty selection plays the whole document. Any
// current playback is cancelled first.
func (e *Engine) PlayAll(selection ...int) error {
	reply := make(chan error, 1)
	if err := e.send(playAllCmd{selection: selection, reply: reply}); err != nil {
		return err
	}
	return e.await(reply)
}

// PlayChunk plays a single chunk in isolation.
func (e *Engine) PlayChunk(index int) error {
	reply := make(chan error, 1)
	if err := e.send(playChunkCmd{index: index, reply: reply}); err != nil {
		return err
	}
	return e.await(reply)
}

// Pause suspends the current chunk. Ignored unless playing.
func (e *Engine) Pause() error {
	reply := make(chan error, 1)
	if err := e.send(pauseCmd{reply: reply}); err != nil {
		return err
	}
	return e.await(reply)
}

// Resume continues a paused chunk from where it stopped. Ignored
// unless paused.
func (e *Engine) Resume() error {
	reply := make(chan error, 1)
	if err := e.send(resumeCmd{reply: reply}); err != nil {
		return err
	}
	return e.await(reply)
}

// Stop cancels playback, clears the playback position and returns the
// engine to idle. Safe to call from any state.
func (e *Engine) Stop() error {
	reply := make(chan error, 1)
	if err := e.send(stopCmd{reply: reply}); err != nil {
		return err
	}
	return e.await(reply)
}

// Repeat re-synthesizes and replays the current chunk without
// advancing the queue.
func (e *Engine) Repeat() error {
	reply := make(chan error, 1)
	if err := e.send(repeatCmd{reply: reply}); err != nil {
		return err
	}
	return e.await(reply)
}

// SetRate changes the playback rate, clamped to [MinRate, MaxRate].
// If a chunk is sounding it is cancelled and re-synthesized at the new
// rate from its start, so the change is immediately audible.
func (e *Engine) SetRate(rate float64) error {
	reply := make(chan error, 1)
	if err := e.send(setRateCmd{rate: rate, reply: reply}); err != nil {
		return err
	}
	return e.await(reply)
}

// Close tears the session down: playback stops, in-flight synthesis is
// cancelled, the audio device is released and the dispatch loop exits.
// Unconditional and idempotent.
func (e *Engine) Close() error {
	reply := make(chan error, 1)
	if err := e.send(closeCmd{reply: reply}); err != nil {
		return nil
	}
	return <-reply
}

// Snapshot returns a copy of the engine's observable state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// Chunks returns the chunk texts loaded for this session.
func (e *Engine) Chunks() []string {
	out := make([]string, len(e.chunks))
	copy(out, e.chunks)
	return out
}

// Restore loads the persisted checkpoint for this session's user and
// document, for seeding a resume prompt. It never starts playback.
// Returns nil without error when no checkpoint exists.
func (e *Engine) Restore(ctx context.Context) (*Checkpoint, error) {
	if e.store == nil || e.userID == "" || e.documentID == "" {
		return nil, nil
	}
	cp, err := e.store.LoadProgress(ctx, e.userID, e.documentID)
	if err != nil {
		if errors.Is(err, ErrCheckpointMissing) {
			return nil, nil
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return cp, nil
}

// send posts a command or completion to the dispatch loop.
func (e *Engine) send(ev interface{}) error {
	select {
	case e.events <- ev:
		return nil
	case <-e.done:
		return ErrEngineClosed
	}
}

// post is send for async completions, which have nobody to report an
// error to.
func (e *Engine) post(ev interface{}) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

// await waits for a command reply, bailing out if the engine closes
// with the command still queued.
func (e *Engine) await(reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-e.done:
		return ErrEngineClosed
	}
}

// dispatch is the single goroutine that owns all playback state.
func (e *Engine) dispatch() {
	for ev := range e.events {
		closed := e.handle(ev)
		e.publishState()
		if closed {
			return
		}
	}
}

func (e *Engine) handle(ev interface{}) bool {
	switch v := ev.(type) {
	case playAllCmd:
		e.handlePlayAll(v)
	case playChunkCmd:
		e.handlePlayChunk(v)
	case pauseCmd:
		e.handlePause(v)
	case resumeCmd:
		e.handleResume(v)
	case stopCmd:
		e.handleStop(v)
	case repeatCmd:
		e.handleRepeat(v)
	case setRateCmd:
		e.handleSetRate(v)
	case closeCmd:
		e.handleClose(v)
		return true
	case synthDone:
		e.handleSynthDone(v)
	case playDone:
		e.handleChunkDone(v.gen, v.index, v.err, "device")
	case speechDone:
		e.handleChunkDone(v.gen, v.index, v.err, "speaker")
	case checkpointSaved:
		e.notify(CheckpointSavedEvent{ChunkIndex: v.index, Rate: v.rate})
	}
	return false
}

func (e *Engine) handlePlayAll(cmd playAllCmd) {
	if len(e.chunks) == 0 {
		cmd.reply <- ErrNoChunks
		return
	}
	queue, err := normalizeSelection(cmd.selection, len(e.chunks))
	if err != nil {
		cmd.reply <- err
		return
	}

	e.cancelCurrent()
	e.queue = queue
	e.queuePos = 0
	e.lastError = nil
	e.startChunk(queue[0])
	cmd.reply <- nil
}

func (e *Engine) handlePlayChunk(cmd playChunkCmd) {
	if len(e.chunks) == 0 {
		cmd.reply <- ErrNoChunks
		return
	}
	if cmd.index < 0 || cmd.index >= len(e.chunks) {
		cmd.reply <- fmt.Errorf("chunk %d: %w", cmd.index, ErrChunkOutOfRange)
		return
	}

	e.cancelCurrent()
	e.queue = []int{cmd.index}
	e.queuePos = 0
	e.lastError = nil
	e.startChunk(cmd.index)
	cmd.reply <- nil
}

func (e *Engine) handlePause(cmd pauseCmd) {
	if e.sm.Current() != StatePlaying {
		cmd.reply <- nil
		return
	}

	var err error
	switch e.route {
	case RouteRemote:
		err = e.device.Pause()
	case RouteLocal:
		err = e.local.Pause()
	}
	if err != nil {
		cmd.reply <- fmt.Errorf("pause: %w", err)
		return
	}

	e.toState(StatePaused)
	cmd.reply <- nil
}

func (e *Engine) handleResume(cmd resumeCmd) {
	if e.sm.Current() != StatePaused {
		cmd.reply <- nil
		return
	}

	var err error
	switch e.route {
	case RouteRemote:
		err = e.device.Resume()
	case RouteLocal:
		err = e.local.Resume()
	}
	if err != nil {
		cmd.reply <- fmt.Errorf("resume: %w", err)
		return
	}

	e.toState(StatePlaying)
	cmd.reply <- nil
}

func (e *Engine) handleStop(cmd stopCmd) {
	prior := e.sm.Current()
	e.cancelCurrent()
	e.queue = nil
	e.queuePos = 0
	e.current = -1
	e.currentText = ""

	if prior != StateIdle {
		e.toState(StateIdle)
		e.notify(StoppedEvent{Reason: "user"})
	}
	cmd.reply <- nil
}

func (e *Engine) handleRepeat(cmd repeatCmd) {
	if e.current < 0 {
		cmd.reply <- ErrOperationNotAllowed
		return
	}
	e.cancelCurrent()
	e.startChunk(e.current)
	cmd.reply <- nil
}

func (e *Engine) handleSetRate(cmd setRateCmd) {
	rate := clampRate(cmd.rate)
	if rate == e.rate {
		cmd.reply <- nil
		return
	}

	e.rate = rate
	e.notify(RateChangedEvent{Rate: rate})

	// A sounding or loading chunk restarts at the new rate so the
	// change is heard immediately.
	if st := e.sm.Current(); st == StatePlaying || st == StateLoading {
		e.cancelCurrent()
		e.startChunk(e.current)
	}
	cmd.reply <- nil
}

func (e *Engine) handleClose(cmd closeCmd) {
	e.cancelCurrent()
	e.queue = nil
	e.queuePos = 0
	e.current = -1
	e.currentText = ""

	var firstErr error
	if e.device != nil {
		if err := e.device.Close(); err != nil {
			firstErr = fmt.Errorf("close device: %w", err)
		}
	}
	e.cancel()

	if e.sm.Current() != StateIdle {
		e.toState(StateIdle)
		e.notify(StoppedEvent{Reason: "teardown"})
	}

	e.publishState()
	close(e.done)
	cmd.reply <- firstErr
}

// handleSynthDone receives remote synthesis results.
func (e *Engine) handleSynthDone(ev synthDone) {
	if ev.gen != e.generation {
		return
	}

	if ev.err != nil {
		e.failRoute(ev.gen, ev.index, RouteRemote, ev.err)
		return
	}

	gen := ev.gen
	index := ev.index
	err := e.device.Play(ev.data, func(err error) {
		e.post(playDone{gen: gen, index: index, err: err})
	})
	if err != nil {
		e.failRoute(ev.gen, ev.index, RouteRemote, fmt.Errorf("%w: %v", ErrPlaybackFailed, err))
		return
	}

	e.toState(StatePlaying)
	e.notify(ChunkStartedEvent{
		Index:   ev.index,
		Total:   len(e.chunks),
		Text:    e.currentText,
		Backend: e.remote.Name(),
	})
	e.checkpoint(ev.index)
}

// handleChunkDone receives chunk completion from the device or the
// speaker.
func (e *Engine) handleChunkDone(gen uint64, index int, err error, component string) {
	if gen != e.generation {
		return
	}

	if err != nil {
		e.sessionError(err, component, "play")
		return
	}

	e.notify(ChunkEndedEvent{Index: index})
	e.advance()
}

// advance moves to the next queued chunk, or ends the session.
func (e *Engine) advance() {
	e.queuePos++
	if e.queuePos >= len(e.queue) {
		if e.cfg.Repeat && len(e.queue) > 0 {
			e.queuePos = 0
			e.startChunk(e.queue[0])
			return
		}
		e.route = RouteNone
		e.toState(StateEnded)
		e.notify(EndedEvent{LastIndex: e.current})
		return
	}
	e.startChunk(e.queue[e.queuePos])
}

// startChunk begins a fresh playback attempt for one chunk under a new
// generation.
func (e *Engine) startChunk(index int) {
	e.generation++
	e.renewAttempt()
	e.current = index

	text := e.chunks[index]
	if e.transform != nil {
		text = e.transform(text)
	}
	e.currentText = text

	e.toState(StateLoading)
	e.beginRoute(e.selector.Primary(), e.generation, index, text)
}

// beginRoute starts synthesis of the current chunk on the given route.
// Fallback re-enters here under the same generation.
func (e *Engine) beginRoute(route Route, gen uint64, index int, text string) {
	switch route {
	case RouteRemote:
		e.route = RouteRemote
		opts := e.cfg.Remote.SynthesisOptions(e.rate)
		if opts.Voice == "" {
			opts.Voice = e.cfg.Voice
		}

		if e.cache != nil {
			if data, ok := e.cache.Get(text, opts.Voice, opts.Rate); ok {
				e.handleSynthDone(synthDone{gen: gen, index: index, data: data})
				return
			}
		}

		ctx := e.attemptCtx
		cache := e.cache
		go func() {
			data, err := e.remote.Synthesize(ctx, text, opts)
			if err == nil && cache != nil {
				cache.Put(text, opts.Voice, opts.Rate, data)
			}
			e.post(synthDone{gen: gen, index: index, data: data, err: err})
		}()

	case RouteLocal:
		e.route = RouteLocal
		params := e.cfg.Local.SpeechParams(e.rate)
		if params.Voice == "" {
			params.Voice = e.cfg.Voice
		}

		err := e.local.Speak(e.attemptCtx, text, params, func(err error) {
			e.post(speechDone{gen: gen, index: index, err: err})
		})
		if err != nil {
			e.failRoute(gen, index, RouteLocal, err)
			return
		}

		e.toState(StatePlaying)
		e.notify(ChunkStartedEvent{
			Index:   index,
			Total:   len(e.chunks),
			Text:    text,
			Backend: e.local.Name(),
		})
		e.checkpoint(index)

	default:
		e.sessionError(ErrBackendUnavailable, "selector", "route")
	}
}

// failRoute handles a failed synthesis attempt: one hop to the local
// speaker when the remote path failed, session error otherwise.
func (e *Engine) failRoute(gen uint64, index int, failed Route, err error) {
	e.logger.Warn("chunk synthesis failed",
		"chunk", index,
		"route", failed.String(),
		"err", err)

	if fallback, ok := e.selector.Fallback(failed); ok {
		e.notify(FallbackEvent{
			Index: index,
			From:  e.routeName(failed),
			To:    e.routeName(fallback),
			Cause: err,
		})
		e.beginRoute(fallback, gen, index, e.currentText)
		return
	}

	e.sessionError(err, e.routeName(failed), "synthesize")
}

// sessionError abandons the session: the error is logged, surfaced
// through callbacks, and the engine returns to idle.
func (e *Engine) sessionError(err error, component, action string) {
	nErr := NewError(err, component, action)
	e.lastError = nErr
	e.logger.Error("narration failed",
		"component", component,
		"action", action,
		"err", err)

	e.notify(ErrorEvent{
		Err:         nErr,
		Recoverable: IsRecoverable(err),
		Component:   component,
		Action:      action,
	})

	e.cancelCurrent()
	e.queue = nil
	e.queuePos = 0
	e.current = -1
	e.currentText = ""
	e.toState(StateIdle)
	e.notify(StoppedEvent{Reason: "error"})
}

// cancelCurrent invalidates the in-flight attempt and silences both
// sinks. Any completion still in flight becomes stale.
func (e *Engine) cancelCurrent() {
	e.generation++
	e.renewAttempt()
	if e.local != nil {
		_ = e.local.Cancel()
	}
	if e.device != nil {
		_ = e.device.Stop()
	}
	e.route = RouteNone
}

func (e *Engine) renewAttempt() {
	if e.attemptCancel != nil {
		e.attemptCancel()
	}
	e.attemptCtx, e.attemptCancel = context.WithCancel(e.ctx)
}

// checkpoint persists {chunkIndex, rate} fire-and-forget after a chunk
// starts. Failures are logged and swallowed.
func (e *Engine) checkpoint(index int) {
	if e.store == nil || e.userID == "" || e.documentID == "" {
		return
	}

	cp := Checkpoint{ChunkIndex: index, Rate: e.rate}
	userID, documentID := e.userID, e.documentID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := e.store.SaveProgress(ctx, userID, documentID, cp); err != nil {
			e.logger.Warn("checkpoint save failed",
				"chunk", index,
				"err", err)
			return
		}
		e.post(checkpointSaved{index: index, rate: cp.Rate})
	}()
}

// toState transitions the state machine and notifies observers.
func (e *Engine) toState(to StateType) {
	from := e.sm.Current()
	if from == to && to != StateLoading {
		return
	}
	if !e.sm.Transition(to) {
		e.logger.Warn("invalid state transition",
			"from", from.String(),
			"to", to.String())
		return
	}
	e.notify(StateChangedEvent{From: from, To: to, Timestamp: time.Now()})
}

// notify delivers an event to the registered callbacks.
func (e *Engine) notify(ev Event) {
	if e.onEvent != nil {
		e.onEvent(ev)
	}

	switch v := ev.(type) {
	case StateChangedEvent:
		if e.onStateChange != nil {
			e.onStateChange(v.From, v.To)
		}
	case ChunkStartedEvent:
		if e.onChunkChange != nil {
			e.onChunkChange(v.Index, e.queuePos, len(e.queue), v.Text)
		}
	case ErrorEvent:
		if e.onError != nil {
			e.onError(v.Err)
		}
	}
}

// publishState refreshes the snapshot read by Snapshot().
func (e *Engine) publishState() {
	e.mu.Lock()
	e.snap = State{
		CurrentState: e.sm.Current(),
		Chunk:        e.current,
		TotalChunks:  len(e.chunks),
		Rate:         e.rate,
		Backend:      e.route.String(),
		LastError:    e.lastError,
	}
	e.mu.Unlock()
}

func (e *Engine) routeName(r Route) string {
	switch r {
	case RouteRemote:
		if e.remote != nil {
			return e.remote.Name()
		}
	case RouteLocal:
		if e.local != nil {
			return e.local.Name()
		}
	}
	return r.String()
}

// normalizeSelection validates a chunk selection and fixes its
// execution order: ascending, no duplicates. Empty means everything.
func normalizeSelection(selection []int, total int) ([]int, error) {
	if len(selection) == 0 {
		all := make([]int, total)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	seen := make(map[int]bool, len(selection))
	out := make([]int, 0, len(selection))
	for _, i := range selection {
		if i < 0 || i >= total {
			return nil, fmt.Errorf("chunk %d: %w", i, ErrChunkOutOfRange)
		}
		if seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

func clampRate(rate float64) float64 {
	if rate < MinRate {
		return MinRate
	}
	if rate > MaxRate {
		return MaxRate
	}
	return rate
}
