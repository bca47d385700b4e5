package mutation

import (
	"context"
	"errors"

	"encore.app/pkg/models"
)

// Operator/caller-facing endpoints for the mutation catalogue (spec.md §4.7,
// §6). Every handler follows ratecontrol.StatusEndpoint's svc == nil guard
// and returns the raw provider status/body so partial successes are never
// hidden (spec.md §7).

// MutationResponse reports the provider's raw outcome. Body is forwarded
// verbatim rather than decoded, since callers vary in what they need back.
type MutationResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

type matchStateRequest struct {
	TournamentID string `json:"tournament_id"`
	MatchID      string `json:"match_id"`
	TriggeredBy  string `json:"triggered_by,omitempty"`
}

//encore:api public method=POST path=/mutation/match/mark-underway
func MarkUnderway(ctx context.Context, req *matchStateRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.MarkUnderway(ctx, req.TournamentID, req.MatchID, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

//encore:api public method=POST path=/mutation/match/unmark-underway
func UnmarkUnderway(ctx context.Context, req *matchStateRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.UnmarkUnderway(ctx, req.TournamentID, req.MatchID, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

//encore:api public method=POST path=/mutation/match/reopen
func ReopenMatch(ctx context.Context, req *matchStateRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.ReopenMatch(ctx, req.TournamentID, req.MatchID, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

type matchScoreRequest struct {
	TournamentID string                  `json:"tournament_id"`
	MatchID      string                  `json:"match_id"`
	Entries      []models.MatchSetEntry `json:"entries"`
	TriggeredBy  string                  `json:"triggered_by,omitempty"`
}

//encore:api public method=POST path=/mutation/match/update-score
func UpdateScore(ctx context.Context, req *matchScoreRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.UpdateScore(ctx, req.TournamentID, req.MatchID, req.Entries, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

//encore:api public method=POST path=/mutation/match/declare-winner
func DeclareWinner(ctx context.Context, req *matchScoreRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.DeclareWinner(ctx, req.TournamentID, req.MatchID, req.Entries, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

//encore:api public method=POST path=/mutation/match/clear-scores
func ClearScores(ctx context.Context, req *matchStateRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.ClearScores(ctx, req.TournamentID, req.MatchID, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

type disqualifyRequest struct {
	TournamentID    string `json:"tournament_id"`
	MatchID         string `json:"match_id"`
	ParticipantID   string `json:"participant_id"`
	OpponentID      string `json:"opponent_id"`
	TriggeredBy     string `json:"triggered_by,omitempty"`
}

//encore:api public method=POST path=/mutation/match/disqualify
func Disqualify(ctx context.Context, req *disqualifyRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.DisqualifyParticipant(ctx, req.TournamentID, req.MatchID, req.ParticipantID, req.OpponentID, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

type stationAssignRequest struct {
	TournamentID string `json:"tournament_id"`
	StationID    string `json:"station_id"`
	MatchID      string `json:"match_id,omitempty"`
	TriggeredBy  string `json:"triggered_by,omitempty"`
}

//encore:api public method=POST path=/mutation/station/assign
func AssignStation(ctx context.Context, req *stationAssignRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.AssignStation(ctx, req.TournamentID, req.StationID, req.MatchID, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

//encore:api public method=POST path=/mutation/station/unassign
func UnassignStation(ctx context.Context, req *stationAssignRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.UnassignStation(ctx, req.TournamentID, req.StationID, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

type participantRequest struct {
	TournamentID  string `json:"tournament_id"`
	ParticipantID string `json:"participant_id,omitempty"`
	Name          string `json:"name,omitempty"`
	Seed          int    `json:"seed,omitempty"`
	TriggeredBy   string `json:"triggered_by,omitempty"`
}

//encore:api public method=POST path=/mutation/participant/add
func AddParticipant(ctx context.Context, req *participantRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.AddParticipant(ctx, req.TournamentID, req.Name, req.Seed, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

//encore:api public method=POST path=/mutation/participant/update
func UpdateParticipant(ctx context.Context, req *participantRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.UpdateParticipant(ctx, req.TournamentID, req.ParticipantID, req.Name, req.Seed, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

//encore:api public method=POST path=/mutation/participant/delete
func DeleteParticipant(ctx context.Context, req *participantRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.DeleteParticipant(ctx, req.TournamentID, req.ParticipantID, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

type bulkAddRequest struct {
	TournamentID string   `json:"tournament_id"`
	Names        []string `json:"names"`
	TriggeredBy  string   `json:"triggered_by,omitempty"`
}

//encore:api public method=POST path=/mutation/participant/bulk-add
func BulkAddParticipants(ctx context.Context, req *bulkAddRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.BulkAddParticipants(ctx, req.TournamentID, req.Names, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

type tournamentIDRequest struct {
	TournamentID string `json:"tournament_id"`
	TriggeredBy  string `json:"triggered_by,omitempty"`
}

//encore:api public method=POST path=/mutation/participant/randomize-seeds
func RandomizeSeeds(ctx context.Context, req *tournamentIDRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.RandomizeSeeds(ctx, req.TournamentID, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

//encore:api public method=POST path=/mutation/participant/check-in
func CheckIn(ctx context.Context, req *participantRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.CheckIn(ctx, req.TournamentID, req.ParticipantID, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

//encore:api public method=POST path=/mutation/participant/undo-check-in
func UndoCheckIn(ctx context.Context, req *participantRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.UndoCheckIn(ctx, req.TournamentID, req.ParticipantID, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

type tournamentUpdateRequest struct {
	TournamentID string            `json:"tournament_id,omitempty"`
	Update       TournamentUpdate  `json:"update"`
	TriggeredBy  string            `json:"triggered_by,omitempty"`
}

//encore:api public method=POST path=/mutation/tournament/create
func CreateTournament(ctx context.Context, req *tournamentUpdateRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.CreateTournament(ctx, req.Update, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

//encore:api public method=POST path=/mutation/tournament/update
func UpdateTournament(ctx context.Context, req *tournamentUpdateRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.UpdateTournament(ctx, req.TournamentID, req.Update, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

//encore:api public method=POST path=/mutation/tournament/start
func StartTournament(ctx context.Context, req *tournamentIDRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.StartTournament(ctx, req.TournamentID, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

//encore:api public method=POST path=/mutation/tournament/reset
func ResetTournament(ctx context.Context, req *tournamentIDRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.ResetTournament(ctx, req.TournamentID, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

//encore:api public method=POST path=/mutation/tournament/complete
func CompleteTournament(ctx context.Context, req *tournamentIDRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.CompleteTournament(ctx, req.TournamentID, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

//encore:api public method=POST path=/mutation/tournament/delete
func DeleteTournament(ctx context.Context, req *tournamentIDRequest) (*MutationResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	resp, err := svc.DeleteTournament(ctx, req.TournamentID, req.TriggeredBy)
	if err != nil {
		return nil, err
	}
	return &MutationResponse{Status: resp.Status, Body: resp.Body}, nil
}

// GetAuditTrail returns recent mutation audit rows, optionally filtered by
// tournament id.
type auditTrailRequest struct {
	Limit        int    `json:"limit"`
	TournamentID string `json:"tournament_id,omitempty"`
}

type auditTrailResponse struct {
	Records []MutationRecord `json:"records"`
}

//encore:api public method=GET path=/mutation/audit
func GetAuditTrail(ctx context.Context, req *auditTrailRequest) (*auditTrailResponse, error) {
	if svc == nil {
		return nil, errors.New("mutation: service not initialized")
	}
	logger, ok := svc.audit.(*AuditLogger)
	if !ok || logger == nil {
		return &auditTrailResponse{Records: nil}, nil
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	records, err := logger.GetRecent(ctx, limit, req.TournamentID)
	if err != nil {
		return nil, err
	}
	return &auditTrailResponse{Records: records}, nil
}
