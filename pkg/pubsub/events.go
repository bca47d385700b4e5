package pubsub

import (
	"errors"
	"time"
)

// EventVersion1 is the current event schema version.
const EventVersion1 = 1

// MatchesUpdatedEvent (TopicMatchesUpdated) is what the poller hands to its
// Publisher hook whenever it detects that a tournament's match digest
// changed (spec.md §4.5).
type MatchesUpdatedEvent struct {
	Version      int       `json:"version"`
	TournamentID string    `json:"tournament_id"`
	Digest       string    `json:"digest"`
	DetectedAt   time.Time `json:"detected_at"`

	// Precomputed broadcast metadata (spec.md §4.5 step 4).
	NextMatchID      string         `json:"next_match_id,omitempty"`
	NextMatchPlayers []string       `json:"next_match_players,omitempty"`
	CountsByState    map[string]int `json:"counts_by_state,omitempty"`
	CompletedCount   int            `json:"completed_count"`
	ProgressPercent  float64        `json:"progress_percent"`
}

// Validate checks that the event is well-formed.
func (e *MatchesUpdatedEvent) Validate() error {
	if e.Version != EventVersion1 {
		return errors.New("unsupported event version")
	}
	if e.TournamentID == "" {
		return errors.New("tournament_id is required")
	}
	if e.Digest == "" {
		return errors.New("digest is required")
	}
	if e.DetectedAt.IsZero() {
		return errors.New("detected_at cannot be zero")
	}
	return nil
}

// LifecycleAction enumerates the tournament lifecycle mutations that trigger
// an immediate rate-controller re-check (spec.md §4.3, §4.7).
type LifecycleAction string

const (
	LifecycleStart    LifecycleAction = "start"
	LifecycleReset    LifecycleAction = "reset"
	LifecycleComplete LifecycleAction = "complete"
	LifecycleDelete   LifecycleAction = "delete"
)

// TournamentLifecycleEvent (TopicTournamentLifecycle) is what the mutation
// dispatcher passes to its lifecycle publisher when a lifecycle mutation
// completes (spec.md §4.7 step 6).
type TournamentLifecycleEvent struct {
	Version      int             `json:"version"`
	TournamentID string          `json:"tournament_id"`
	Action       LifecycleAction `json:"action"`
	TriggeredAt  time.Time       `json:"triggered_at"`
	RequestID    string          `json:"request_id"`
}

// Validate checks that the event is well-formed.
func (e *TournamentLifecycleEvent) Validate() error {
	if e.Version != EventVersion1 {
		return errors.New("unsupported event version")
	}
	if e.TournamentID == "" {
		return errors.New("tournament_id is required")
	}
	switch e.Action {
	case LifecycleStart, LifecycleReset, LifecycleComplete, LifecycleDelete:
	default:
		return errors.New("unrecognized lifecycle action")
	}
	if e.TriggeredAt.IsZero() {
		return errors.New("triggered_at cannot be zero")
	}
	return nil
}
