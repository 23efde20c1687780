// Package audio plays synthesized MPEG audio through the system
// output device.
package audio

import (
	"bytes"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/go-mp3"

	"github.com/yamunaarun/narrato-audio-book/narrate"
)

// watchInterval is how often playback progress is polled for
// completion.
const watchInterval = 50 * time.Millisecond

// Player decodes MPEG audio and plays it through oto. One chunk plays
// at a time; starting a new one silences the previous one. The output
// context opens lazily on the first play, so sessions that never touch
// the remote backend never open the audio device.
type Player struct {
	logger *log.Logger

	mu         sync.Mutex
	ctx        *oto.Context
	sampleRate int
	player     *oto.Player
	stream     *trackedReader
	done       func(error)
	watchStop  chan struct{}
	paused     bool
	closed     bool
}

// NewPlayer creates an audio player.
func NewPlayer(logger *log.Logger) *Player {
	if logger == nil {
		logger = log.Default()
	}
	return &Player{logger: logger}
}

// trackedReader feeds PCM to oto while keeping the data alive and the
// unread count observable. oto reads from its own goroutine.
type trackedReader struct {
	mu   sync.Mutex
	r    *bytes.Reader
	data []byte
}

func newTrackedReader(data []byte) *trackedReader {
	return &trackedReader{r: bytes.NewReader(data), data: data}
}

func (t *trackedReader) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.r.Read(p)
}

func (t *trackedReader) remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.r.Len()
}

// Play decodes data and starts playback. done fires exactly once when
// the audio finishes on its own; a stopped playback reports nothing.
func (p *Player) Play(data []byte, done func(error)) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty audio", narrate.ErrPlaybackFailed)
	}

	// Decode up front. Chunks are short, so the PCM stays small, and a
	// bad payload fails before it touches the device.
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: decode: %v", narrate.ErrPlaybackFailed, err)
	}
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return fmt.Errorf("%w: decode: %v", narrate.ErrPlaybackFailed, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("%w: player is closed", narrate.ErrPlaybackFailed)
	}

	p.stopLocked()

	if err := p.ensureContextLocked(decoder.SampleRate()); err != nil {
		return err
	}

	stream := newTrackedReader(pcm)
	player := p.ctx.NewPlayer(stream)
	player.Play()

	stop := make(chan struct{})
	p.player = player
	p.stream = stream
	p.done = done
	p.watchStop = stop
	p.paused = false

	go p.watch(player, stream, stop)
	return nil
}

// ensureContextLocked opens the oto context at the given sample rate.
// go-mp3 always emits 16-bit stereo.
func (p *Player) ensureContextLocked(sampleRate int) error {
	if p.ctx != nil {
		if p.sampleRate != sampleRate {
			return fmt.Errorf("%w: sample rate changed from %d to %d",
				narrate.ErrPlaybackFailed, p.sampleRate, sampleRate)
		}
		return nil
	}

	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	}
	switch runtime.GOOS {
	case "darwin":
		opts.BufferSize = 100 * time.Millisecond
	default:
		opts.BufferSize = 50 * time.Millisecond
	}

	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return fmt.Errorf("%w: open audio device: %v", narrate.ErrPlaybackFailed, err)
	}
	<-ready

	p.logger.Debug("audio device ready", "sample_rate", sampleRate)
	p.ctx = ctx
	p.sampleRate = sampleRate
	return nil
}

// watch polls the oto player until the chunk drains or fails, then
// reports completion. A stop closes the channel and the watch exits
// silently.
func (p *Player) watch(player *oto.Player, stream *trackedReader, stop chan struct{}) {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := player.Err(); err != nil {
				p.complete(player, fmt.Errorf("%w: %v", narrate.ErrPlaybackFailed, err))
				return
			}
			// Paused players also report not playing; the buffered
			// bytes distinguish a drained chunk from a held one.
			if stream.remaining() == 0 && player.BufferedSize() == 0 && !player.IsPlaying() {
				p.complete(player, nil)
				return
			}
		}
	}
}

// complete finishes the given playback if it is still the current one.
func (p *Player) complete(player *oto.Player, err error) {
	p.mu.Lock()
	if p.player != player {
		p.mu.Unlock()
		return
	}
	done := p.done
	p.player = nil
	p.stream = nil
	p.done = nil
	p.watchStop = nil
	p.paused = false
	p.mu.Unlock()

	_ = player.Close()
	if done != nil {
		done(err)
	}
}

// Pause holds the current playback. No-op when nothing plays.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.player == nil || p.paused {
		return nil
	}
	p.player.Pause()
	p.paused = true
	return nil
}

// Resume continues held playback. No-op when nothing is paused.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.player == nil || !p.paused {
		return nil
	}
	p.player.Play()
	p.paused = false
	return nil
}

// Stop silences the current playback. Its completion callback does not
// fire. Safe to call when idle.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

func (p *Player) stopLocked() {
	if p.watchStop != nil {
		close(p.watchStop)
		p.watchStop = nil
	}
	if p.player != nil {
		p.player.Pause()
		_ = p.player.Close()
		p.player = nil
	}
	p.stream = nil
	p.done = nil
	p.paused = false
}

// Close stops playback and marks the player unusable. The oto context
// itself has no close; dropping the reference releases it.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.ctx = nil
	p.closed = true
	return nil
}
