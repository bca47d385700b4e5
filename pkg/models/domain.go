package models

import (
	"encoding/json"
	"time"
)

// Tournament is the caller-visible projection of a provider tournament
// record. Nested provider option groups are flattened per the field-name
// mapping rules in spec.md §4.7; Raw preserves the full decoded attributes
// object for forward-compat with provider fields this core does not model.
type Tournament struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"` // "pending", "underway", "complete", ...
	StartsAt  time.Time `json:"starts_at"`
	StartedAt time.Time `json:"started_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`

	// Flattened option groups (provider nests these under
	// registration_options / seeding_options / match_options /
	// double_elimination_options / notifications).
	SignupCap                  int    `json:"signup_cap,omitempty"`
	HideSeeds                  bool   `json:"hide_seeds,omitempty"`
	RandomizeSeeds             bool   `json:"randomize_seeds,omitempty"`
	HoldThirdPlaceMatch        bool   `json:"hold_third_place_match,omitempty"`
	GrandFinalsModifier        string `json:"grand_finals_modifier,omitempty"` // "single" | "skip" | ""
	PtsForMatchWin             float64 `json:"pts_for_match_win,omitempty"`
	NotifyUsersWhenMatchesOpen bool   `json:"notify_users_when_matches_open,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// Match is the caller-visible projection of a provider match record.
type Match struct {
	ID             string    `json:"id"`
	TournamentID   string    `json:"tournament_id"`
	State          string    `json:"state"` // "open", "pending", "complete", ...
	Round          int       `json:"round"`
	Player1ID      string    `json:"player1_id"`
	Player2ID      string    `json:"player2_id"`
	Score1         int       `json:"score1"`
	Score2         int       `json:"score2"`
	WinnerID       string    `json:"winner_id,omitempty"`
	StationID      string    `json:"station_id,omitempty"`
	UnderwayAt     time.Time `json:"underway_at,omitempty"`
	Identifier     string    `json:"identifier,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// Participant is the caller-visible projection of a provider participant record.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Seed      int    `json:"seed,omitempty"`
	CheckedIn bool   `json:"checked_in"`
	Active    bool   `json:"active"`

	Raw json.RawMessage `json:"-"`
}

// Station is the caller-visible projection of a provider station record.
type Station struct {
	ID       string `json:"id"`
	Number   int    `json:"number"`
	Name     string `json:"name,omitempty"`
	MatchID  string `json:"match_id,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// MatchSetEntry is a single per-participant score line used by both the
// score/winner-declaration mutation request and its provider wire form
// (spec.md §4.7, §6).
type MatchSetEntry struct {
	ParticipantID string `json:"participant_id"`
	ScoreSet      string `json:"score_set"` // e.g. "2-1"
	Rank          *int   `json:"rank,omitempty"`
	Advancing     *bool  `json:"advancing,omitempty"`
}
