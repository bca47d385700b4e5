package provider

import (
	"encoding/json"
	"fmt"
	"time"

	"encore.app/pkg/models"
)

// jsonAPIDoc is the minimal envelope shared by every provider read response:
// {"tournament": {...}} / {"match": {...}} / {"matches": [...]}, each
// wrapping a "data"-less flat attributes object (this provider's JSON:API
// dialect nests the resource under its singular/plural type name rather
// than under a generic "data" key).
type jsonAPIDoc struct {
	Tournament *json.RawMessage   `json:"tournament,omitempty"`
	Tournaments []json.RawMessage `json:"tournaments,omitempty"`
	Match       *json.RawMessage  `json:"match,omitempty"`
	Matches     []json.RawMessage `json:"matches,omitempty"`
	Participant *json.RawMessage  `json:"participant,omitempty"`
	Participants []json.RawMessage `json:"participants,omitempty"`
	Station     *json.RawMessage  `json:"station,omitempty"`
	Stations    []json.RawMessage `json:"stations,omitempty"`
}

// wireTournament mirrors the provider's nested option-group shape; decode
// flattens it into models.Tournament per spec.md §4.7's field-name mapping
// (the same flattening mutation.go's encoder reverses on write).
type wireTournament struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	StartsAt  time.Time `json:"starts_at"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RegistrationOptions struct {
		SignupCap int `json:"signup_cap"`
	} `json:"registration_options"`
	SeedingOptions struct {
		HideSeeds      bool `json:"hide_seeds"`
		RandomizeSeeds bool `json:"randomize_seeds"`
	} `json:"seeding_options"`
	MatchOptions struct {
		HoldThirdPlaceMatch bool    `json:"hold_third_place_match"`
		PtsForMatchWin      float64 `json:"pts_for_match_win"`
	} `json:"match_options"`
	DoubleEliminationOptions struct {
		GrandFinalsModifier string `json:"grand_finals_modifier"`
	} `json:"double_elimination_options"`
	Notifications struct {
		NotifyUsersWhenMatchesOpen bool `json:"notify_users_when_matches_open"`
	} `json:"notifications"`
}

func (w wireTournament) flatten(raw json.RawMessage) models.Tournament {
	return models.Tournament{
		ID:                         w.ID,
		Name:                       w.Name,
		State:                      w.State,
		StartsAt:                   w.StartsAt,
		StartedAt:                  w.StartedAt,
		UpdatedAt:                  w.UpdatedAt,
		SignupCap:                  w.RegistrationOptions.SignupCap,
		HideSeeds:                  w.SeedingOptions.HideSeeds,
		RandomizeSeeds:             w.SeedingOptions.RandomizeSeeds,
		HoldThirdPlaceMatch:        w.MatchOptions.HoldThirdPlaceMatch,
		GrandFinalsModifier:        w.DoubleEliminationOptions.GrandFinalsModifier,
		PtsForMatchWin:             w.MatchOptions.PtsForMatchWin,
		NotifyUsersWhenMatchesOpen: w.Notifications.NotifyUsersWhenMatchesOpen,
		Raw:                        raw,
	}
}

// DecodeTournament decodes a single-tournament response body.
func DecodeTournament(body []byte) (models.Tournament, error) {
	var doc jsonAPIDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return models.Tournament{}, fmt.Errorf("decode tournament envelope: %w", err)
	}
	if doc.Tournament == nil {
		return models.Tournament{}, fmt.Errorf("decode tournament: missing \"tournament\" key")
	}
	var w wireTournament
	if err := json.Unmarshal(*doc.Tournament, &w); err != nil {
		return models.Tournament{}, fmt.Errorf("decode tournament attributes: %w", err)
	}
	return w.flatten(*doc.Tournament), nil
}

// DecodeTournaments decodes a tournament-list response body.
func DecodeTournaments(body []byte) ([]models.Tournament, error) {
	var doc jsonAPIDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode tournaments envelope: %w", err)
	}
	out := make([]models.Tournament, 0, len(doc.Tournaments))
	for _, raw := range doc.Tournaments {
		var w wireTournament
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode tournament attributes: %w", err)
		}
		out = append(out, w.flatten(raw))
	}
	return out, nil
}

// DecodeMatches decodes a match-list response body directly into the flat
// models.Match shape (the provider's match resource has no nested option
// groups, unlike tournament, so no wire-to-flat translation is needed).
func DecodeMatches(body []byte) ([]models.Match, error) {
	var doc jsonAPIDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode matches envelope: %w", err)
	}
	out := make([]models.Match, 0, len(doc.Matches))
	for _, raw := range doc.Matches {
		var m models.Match
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode match attributes: %w", err)
		}
		m.Raw = raw
		out = append(out, m)
	}
	return out, nil
}

// DecodeMatch decodes a single-match response body, as returned by the
// change_state and score/winner endpoints C7 calls.
func DecodeMatch(body []byte) (models.Match, error) {
	var doc jsonAPIDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return models.Match{}, fmt.Errorf("decode match envelope: %w", err)
	}
	if doc.Match == nil {
		return models.Match{}, fmt.Errorf("decode match: missing \"match\" key")
	}
	var m models.Match
	if err := json.Unmarshal(*doc.Match, &m); err != nil {
		return models.Match{}, fmt.Errorf("decode match attributes: %w", err)
	}
	m.Raw = *doc.Match
	return m, nil
}

// DecodeParticipants decodes a participant-list response body.
func DecodeParticipants(body []byte) ([]models.Participant, error) {
	var doc jsonAPIDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode participants envelope: %w", err)
	}
	out := make([]models.Participant, 0, len(doc.Participants))
	for _, raw := range doc.Participants {
		var p models.Participant
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode participant attributes: %w", err)
		}
		p.Raw = raw
		out = append(out, p)
	}
	return out, nil
}

// DecodeStations decodes a station-list response body.
func DecodeStations(body []byte) ([]models.Station, error) {
	var doc jsonAPIDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode stations envelope: %w", err)
	}
	out := make([]models.Station, 0, len(doc.Stations))
	for _, raw := range doc.Stations {
		var s models.Station
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode station attributes: %w", err)
		}
		s.Raw = raw
		out = append(out, s)
	}
	return out, nil
}
