package transcript

import (
	"errors"
	"fmt"
	"sync"

	"ai-speech-transcription-service/internal/service/stt"
)

// Errors for invalid status transitions.
var (
	ErrAlreadyFinalized = errors.New("transcript already finalized")
	ErrFinalizing       = errors.New("transcript result is being applied")
)

// Lifecycle guards the status of a single transcript.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	processing → completed
//	     │
//	     └──────→ failed
//
// Rules:
//   - processing: exactly one callback may begin finalizing the transcript
//   - completed, failed: terminal; every later callback is rejected
//   - a finalization that fails to apply is aborted back to processing
type Lifecycle struct {
	mu           sync.RWMutex
	transcriptId int64
	state        stt.Status
	finalizing   bool
}

// NewLifecycle creates a lifecycle starting from the stored status.
func NewLifecycle(transcriptId int64, state stt.Status) *Lifecycle {
	return &Lifecycle{
		transcriptId: transcriptId,
		state:        state,
	}
}

// TranscriptId returns the transcript ID.
func (l *Lifecycle) TranscriptId() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.transcriptId
}

// State returns the current state.
func (l *Lifecycle) State() stt.Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsFinal returns true once the transcript reached a terminal state.
func (l *Lifecycle) IsFinal() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.IsTerminal()
}

// Begin reserves the transition to target. It must be followed by Commit
// or Abort.
func (l *Lifecycle) Begin(target stt.Status) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !target.IsTerminal() {
		return fmt.Errorf("invalid target state: %v", target)
	}

	switch {
	case l.state.IsTerminal():
		return fmt.Errorf("%w: transcript %d is %s", ErrAlreadyFinalized, l.transcriptId, l.state)
	case l.finalizing:
		return fmt.Errorf("%w: transcript %d", ErrFinalizing, l.transcriptId)
	case l.state == stt.StatusProcessing:
		l.finalizing = true
		return nil
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Commit completes a transition reserved by Begin.
func (l *Lifecycle) Commit(target stt.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = target
	l.finalizing = false
}

// Abort releases a reservation; the transcript stays processing.
func (l *Lifecycle) Abort() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finalizing = false
}
