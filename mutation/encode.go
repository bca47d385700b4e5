// Field-name mapping between the caller-visible flat models and the
// provider's JSON:API wire shape, the reverse direction of
// provider/decode.go's wireTournament.flatten (spec.md §4.7).
package mutation

import "encore.app/pkg/models"

// jsonAPIBody is the envelope every mutation request is wrapped in:
// {"data": {"type": "...", "attributes": {...}}}.
type jsonAPIBody struct {
	Data jsonAPIData `json:"data"`
}

type jsonAPIData struct {
	Type       string      `json:"type"`
	Attributes interface{} `json:"attributes"`
}

func wrap(dataType string, attributes interface{}) jsonAPIBody {
	return jsonAPIBody{Data: jsonAPIData{Type: dataType, Attributes: attributes}}
}

// tournamentAttributes is the nested provider shape a tournament update
// request carries. Zero-value groups are omitted by omitempty so a partial
// update never clobbers fields the caller didn't mention.
type tournamentAttributes struct {
	Name           string `json:"name,omitempty"`
	StartsAt       string `json:"starts_at,omitempty"`
	TournamentType string `json:"tournament_type,omitempty"`

	RegistrationOptions      *registrationOptions      `json:"registration_options,omitempty"`
	SeedingOptions           *seedingOptions           `json:"seeding_options,omitempty"`
	MatchOptions             *matchOptions             `json:"match_options,omitempty"`
	DoubleEliminationOptions *doubleEliminationOptions `json:"double_elimination_options,omitempty"`
	Notifications            *notifications            `json:"notifications,omitempty"`
}

type registrationOptions struct {
	SignupCap int `json:"signup_cap,omitempty"`
}

type seedingOptions struct {
	HideSeeds      bool `json:"hide_seeds"`
	RandomizeSeeds bool `json:"randomize_seeds"`
}

type matchOptions struct {
	PtsForMatchWin float64 `json:"pts_for_match_win,omitempty"`
}

// doubleEliminationOptions carries the third-place-match encoding rule
// (spec.md §4.7, §8 boundary behaviors): true ⇒
// ConsolationMatchesTargetRank = 3, false ⇒ the field is omitted entirely
// (the provider rejects an explicit null).
type doubleEliminationOptions struct {
	HoldThirdPlaceMatch          bool   `json:"-"`
	GrandFinalsModifier          string `json:"grand_finals_modifier,omitempty"`
	ConsolationMatchesTargetRank *int   `json:"consolation_matches_target_rank,omitempty"`
}

type notifications struct {
	NotifyUsersWhenMatchesOpen bool `json:"notify_users_when_matches_open"`
}

// TournamentUpdate is the caller-visible partial-update request. Pointer
// fields distinguish "not supplied" from "set to zero value".
type TournamentUpdate struct {
	Name                *string
	StartsAt            *string
	SignupCap           *int
	HideSeeds           *bool
	RandomizeSeeds      *bool
	HoldThirdPlaceMatch *bool
	GrandFinalsModifier *string // "single" | "skip" | ""
	PtsForMatchWin      *float64
	NotifyMatchesOpen   *bool
}

// encodeTournamentUpdate builds the nested provider request body for a
// tournament update, applying the field-name mapping rules of spec.md §4.7.
func encodeTournamentUpdate(u TournamentUpdate) jsonAPIBody {
	attrs := tournamentAttributes{}
	if u.Name != nil {
		attrs.Name = *u.Name
	}
	if u.StartsAt != nil {
		attrs.StartsAt = *u.StartsAt
	}

	if u.SignupCap != nil {
		attrs.RegistrationOptions = &registrationOptions{SignupCap: *u.SignupCap}
	}

	if u.HideSeeds != nil || u.RandomizeSeeds != nil {
		so := &seedingOptions{}
		if u.HideSeeds != nil {
			so.HideSeeds = *u.HideSeeds
		}
		if u.RandomizeSeeds != nil {
			so.RandomizeSeeds = *u.RandomizeSeeds
		}
		attrs.SeedingOptions = so
	}

	if u.PtsForMatchWin != nil {
		attrs.MatchOptions = &matchOptions{PtsForMatchWin: *u.PtsForMatchWin}
	}

	if u.HoldThirdPlaceMatch != nil || u.GrandFinalsModifier != nil {
		deo := &doubleEliminationOptions{}
		if u.HoldThirdPlaceMatch != nil && *u.HoldThirdPlaceMatch {
			rank := 3
			deo.ConsolationMatchesTargetRank = &rank
		}
		if u.GrandFinalsModifier != nil {
			deo.GrandFinalsModifier = *u.GrandFinalsModifier
		}
		attrs.DoubleEliminationOptions = deo
	}

	if u.NotifyMatchesOpen != nil {
		attrs.Notifications = &notifications{NotifyUsersWhenMatchesOpen: *u.NotifyMatchesOpen}
	}

	return wrap("Tournament", attrs)
}

// changeStateAttributes is the change_state sub-endpoint's body shape.
type changeStateAttributes struct {
	State string `json:"state"`
}

func encodeChangeState(state string) jsonAPIBody {
	return wrap("MatchChangeState", changeStateAttributes{State: state})
}

// matchAttributes is the main match endpoint's score/winner update body.
type matchAttributes struct {
	Match []models.MatchSetEntry `json:"match"`
}

func encodeMatchSet(entries []models.MatchSetEntry) jsonAPIBody {
	return wrap("Match", matchAttributes{Match: entries})
}

// processAttributes is the tournament lifecycle sub-endpoint's body shape
// (start/finalize/reset all share this endpoint, distinguished by action).
type processAttributes struct {
	Action string `json:"action"`
}

func encodeProcess(action string) jsonAPIBody {
	return wrap("TournamentProcess", processAttributes{Action: action})
}

// participantProcessAttributes is the check-in/undo-check-in sub-endpoint body.
type participantProcessAttributes struct {
	Action string `json:"action"`
}

func encodeParticipantProcess(action string) jsonAPIBody {
	return wrap("ParticipantProcess", participantProcessAttributes{Action: action})
}

// participantAttributes is the add/update participant body shape.
type participantAttributes struct {
	Name string `json:"name,omitempty"`
	Seed int    `json:"seed,omitempty"`
}

func encodeParticipant(name string, seed int) jsonAPIBody {
	return wrap("Participant", participantAttributes{Name: name, Seed: seed})
}

// stationAttributes is the station assign/unassign body shape.
type stationAttributes struct {
	MatchID string `json:"match_id"`
}

func encodeStationAssign(matchID string) jsonAPIBody {
	return wrap("Station", stationAttributes{MatchID: matchID})
}
