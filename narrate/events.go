package narrate

import (
	"time"
)

// Events delivered to the OnEvent callback, in dispatch order.

// Event is a notification emitted by the engine. The callback runs on
// the dispatch goroutine and must not block.
type Event interface {
	isEvent()
}

// StateChangedEvent indicates the engine state has changed.
type StateChangedEvent struct {
	From      StateType
	To        StateType
	Timestamp time.Time // When the state change occurred
}

// ChunkStartedEvent indicates a chunk has started speaking.
type ChunkStartedEvent struct {
	Index   int    // Chunk index within the document
	Total   int    // Total number of chunks
	Text    string // Chunk text being spoken
	Backend string // Backend speaking the chunk
}

// ChunkEndedEvent indicates a chunk finished speaking.
type ChunkEndedEvent struct {
	Index int // Chunk index within the document
}

// FallbackEvent indicates the remote backend failed for a chunk and
// the local speaker took over.
type FallbackEvent struct {
	Index int    // Chunk index that fell back
	From  string // Backend that failed
	To    string // Speaker that took over
	Cause error  // Why the backend failed
}

// EndedEvent indicates the selection finished naturally.
type EndedEvent struct {
	LastIndex int // Final chunk index spoken
}

// StoppedEvent indicates playback stopped before the end.
type StoppedEvent struct {
	Reason string // Reason for stopping (user, error, teardown)
}

// RateChangedEvent indicates the playback rate changed.
type RateChangedEvent struct {
	Rate float64 // New rate multiplier
}

// CheckpointSavedEvent indicates progress was persisted.
type CheckpointSavedEvent struct {
	ChunkIndex int     // Chunk index that was recorded
	Rate       float64 // Rate that was recorded
}

// ErrorEvent indicates an error occurred during narration.
type ErrorEvent struct {
	Err         error
	Recoverable bool
	Component   string // Which component had the error (backend, speaker, device, store)
	Action      string // What action was being performed
}

func (StateChangedEvent) isEvent()    {}
func (ChunkStartedEvent) isEvent()    {}
func (ChunkEndedEvent) isEvent()      {}
func (FallbackEvent) isEvent()        {}
func (EndedEvent) isEvent()           {}
func (StoppedEvent) isEvent()         {}
func (RateChangedEvent) isEvent()     {}
func (CheckpointSavedEvent) isEvent() {}
func (ErrorEvent) isEvent()           {}
