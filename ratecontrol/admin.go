package ratecontrol

import (
	"context"
	"errors"
)

// Admin endpoints for operators (spec.md §6 "Rate-controller surface").

// StatusResponse mirrors Status for the admin surface.
type StatusResponse struct {
	Status Status `json:"status"`
}

// Status returns mode, effective rate, next check, dev-mode state, and the
// currently tracked active tournament id.
//
//encore:api public method=GET path=/ratecontrol/status
func StatusEndpoint(ctx context.Context) (*StatusResponse, error) {
	if svc == nil {
		return nil, errors.New("ratecontrol: service not initialized")
	}
	return &StatusResponse{Status: svc.Status()}, nil
}

// ForceModeRequest names the mode to pin, or "auto" to clear any override.
type ForceModeRequest struct {
	Mode string `json:"mode"`
}

// ForceModeResponse reports completion.
type ForceModeResponse struct {
	OK bool `json:"ok"`
}

// ForceMode pins the mode to IDLE, UPCOMING, or ACTIVE, or clears the
// override (and immediately re-checks) when Mode is "auto".
//
//encore:api public method=POST path=/ratecontrol/force-mode
func ForceMode(ctx context.Context, req *ForceModeRequest) (*ForceModeResponse, error) {
	if svc == nil {
		return nil, errors.New("ratecontrol: service not initialized")
	}
	if err := svc.SetOverride(ctx, req.Mode); err != nil {
		return nil, err
	}
	return &ForceModeResponse{OK: true}, nil
}

// EnableDevMode activates the bounded rate-gate bypass.
//
//encore:api public method=POST path=/ratecontrol/dev-mode/enable
func EnableDevMode(ctx context.Context) (*ForceModeResponse, error) {
	if svc == nil {
		return nil, errors.New("ratecontrol: service not initialized")
	}
	svc.EnableDevMode()
	return &ForceModeResponse{OK: true}, nil
}

// DisableDevMode deactivates dev mode immediately.
//
//encore:api public method=POST path=/ratecontrol/dev-mode/disable
func DisableDevMode(ctx context.Context) (*ForceModeResponse, error) {
	if svc == nil {
		return nil, errors.New("ratecontrol: service not initialized")
	}
	svc.DisableDevMode()
	return &ForceModeResponse{OK: true}, nil
}

// TriggerCheck runs Check() immediately, outside the periodic schedule.
//
//encore:api public method=POST path=/ratecontrol/trigger-check
func TriggerCheck(ctx context.Context) (*ForceModeResponse, error) {
	if svc == nil {
		return nil, errors.New("ratecontrol: service not initialized")
	}
	if err := svc.Check(ctx); err != nil {
		return nil, err
	}
	return &ForceModeResponse{OK: true}, nil
}
