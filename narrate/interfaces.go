package narrate

import (
	"context"
)

// Backend synthesizes narration audio from text over the network.
type Backend interface {
	// Name identifies the backend in logs and state snapshots.
	Name() string

	// Synthesize converts text to MPEG audio. Implementations clamp
	// the requested rate to their supported range and truncate text
	// that exceeds their request limit.
	Synthesize(ctx context.Context, text string, opts SynthesisOptions) ([]byte, error)

	// Voices returns the voices the backend can speak with.
	Voices(ctx context.Context) ([]Voice, error)

	// Available reports whether the backend can currently synthesize.
	Available() bool
}

// Speaker speaks text directly through the platform speech service.
// Unlike Backend it produces no audio bytes; the platform owns the
// output.
type Speaker interface {
	// Name identifies the speaker in logs and state snapshots.
	Name() string

	// Speak begins speaking text. The done callback fires exactly once,
	// from an arbitrary goroutine, when speech finishes or fails.
	Speak(ctx context.Context, text string, params SpeechParams, done func(error)) error

	// Pause suspends the current utterance.
	Pause() error

	// Resume continues a paused utterance.
	Resume() error

	// Cancel discards the current utterance. Safe to call when nothing
	// is speaking.
	Cancel() error

	// Voices returns the voices installed on the platform.
	Voices() []Voice

	// Available reports whether the platform speech service is usable.
	Available() bool
}

// Device plays synthesized audio through the system output.
type Device interface {
	// Play starts playback of MPEG audio. The done callback fires
	// exactly once, from an arbitrary goroutine, when playback finishes
	// or fails.
	Play(data []byte, done func(error)) error

	// Pause suspends playback.
	Pause() error

	// Resume continues paused playback.
	Resume() error

	// Stop halts playback and discards the current audio. The done
	// callback of the stopped Play does not fire.
	Stop() error

	// Close releases the audio device.
	Close() error
}

// ProgressStore persists playback checkpoints between sessions.
type ProgressStore interface {
	// SaveProgress records where a user is in a document.
	SaveProgress(ctx context.Context, userID, documentID string, cp Checkpoint) error

	// LoadProgress returns the saved checkpoint, or ErrCheckpointMissing
	// if the user has none for this document.
	LoadProgress(ctx context.Context, userID, documentID string) (*Checkpoint, error)
}

// SynthesisOptions holds per-request settings for a Backend.
type SynthesisOptions struct {
	Voice string  // Voice identifier, backend-specific
	Rate  float64 // Speech rate multiplier (1.0 = normal)
}

// SpeechParams holds per-utterance settings for a Speaker.
type SpeechParams struct {
	Voice  string  // Voice identifier, platform-specific
	Rate   float64 // Speech rate multiplier (1.0 = normal)
	Pitch  float64 // Pitch adjustment (1.0 = normal)
	Volume float64 // Volume level (0.0 to 1.0)
}

// Voice describes a synthesis voice.
type Voice struct {
	ID       string // Voice identifier
	Name     string // Human-readable name
	Language string // BCP 47 language tag (e.g. "en-US")
	Gender   string // Voice gender, if the platform reports one
}

// Checkpoint records playback progress within a document.
type Checkpoint struct {
	ChunkIndex      int     // Chunk the user was on
	PositionSeconds float64 // Seconds into the chunk, best effort
	Rate            float64 // Playback rate in effect
}
