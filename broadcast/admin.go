package broadcast

import (
	"context"
	"errors"
)

// Operator-facing endpoints that trigger the non-lifecycle display events
// spec.md §4.6 names (ticker, QR, timer, sponsor). Mirrors ratecontrol's
// svc == nil guard convention.

type OKResponse struct {
	OK bool `json:"ok"`
}

type TickerRequest struct {
	Text      string `json:"text"`
	DurationS int    `json:"duration_s"`
}

//encore:api public method=POST path=/broadcast/ticker
func Ticker(ctx context.Context, req *TickerRequest) (*OKResponse, error) {
	if svc == nil {
		return nil, errors.New("broadcast: service not initialized")
	}
	svc.hub.BroadcastTicker(req.Text, req.DurationS)
	return &OKResponse{OK: true}, nil
}

type QRShowRequest struct {
	URL       string `json:"url"`
	Label     string `json:"label,omitempty"`
	DurationS int    `json:"duration_s,omitempty"`
}

//encore:api public method=POST path=/broadcast/qr/show
func QRShow(ctx context.Context, req *QRShowRequest) (*OKResponse, error) {
	if svc == nil {
		return nil, errors.New("broadcast: service not initialized")
	}
	svc.hub.BroadcastQRShow(req.URL, req.Label, req.DurationS)
	return &OKResponse{OK: true}, nil
}

//encore:api public method=POST path=/broadcast/qr/hide
func QRHide(ctx context.Context) (*OKResponse, error) {
	if svc == nil {
		return nil, errors.New("broadcast: service not initialized")
	}
	svc.hub.BroadcastQRHide()
	return &OKResponse{OK: true}, nil
}

type TimerDQRequest struct {
	MatchID string `json:"match_id"`
}

//encore:api public method=POST path=/broadcast/timer-dq/start
func TimerDQStart(ctx context.Context, req *TimerDQRequest) (*OKResponse, error) {
	if svc == nil {
		return nil, errors.New("broadcast: service not initialized")
	}
	svc.hub.BroadcastTimerDQ(EventTimerDQStarted, req)
	return &OKResponse{OK: true}, nil
}

//encore:api public method=POST path=/broadcast/timer-dq/warning
func TimerDQWarning(ctx context.Context, req *TimerDQRequest) (*OKResponse, error) {
	if svc == nil {
		return nil, errors.New("broadcast: service not initialized")
	}
	svc.hub.BroadcastTimerDQ(EventTimerDQWarning, req)
	return &OKResponse{OK: true}, nil
}

//encore:api public method=POST path=/broadcast/timer-dq/expired
func TimerDQExpired(ctx context.Context, req *TimerDQRequest) (*OKResponse, error) {
	if svc == nil {
		return nil, errors.New("broadcast: service not initialized")
	}
	svc.hub.BroadcastTimerDQ(EventTimerDQExpired, req)
	return &OKResponse{OK: true}, nil
}

//encore:api public method=POST path=/broadcast/timer-dq/cancel
func TimerDQCancel(ctx context.Context, req *TimerDQRequest) (*OKResponse, error) {
	if svc == nil {
		return nil, errors.New("broadcast: service not initialized")
	}
	svc.hub.BroadcastTimerDQ(EventTimerDQCancelled, req)
	return &OKResponse{OK: true}, nil
}

type SponsorShowRequest struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

//encore:api public method=POST path=/broadcast/sponsor/show
func SponsorShow(ctx context.Context, req *SponsorShowRequest) (*OKResponse, error) {
	if svc == nil {
		return nil, errors.New("broadcast: service not initialized")
	}
	svc.hub.BroadcastSponsorShow(req)
	return &OKResponse{OK: true}, nil
}

//encore:api public method=POST path=/broadcast/sponsor/hide
func SponsorHide(ctx context.Context) (*OKResponse, error) {
	if svc == nil {
		return nil, errors.New("broadcast: service not initialized")
	}
	svc.hub.BroadcastSponsorHide()
	return &OKResponse{OK: true}, nil
}

//encore:api public method=POST path=/broadcast/sponsor/rotate
func SponsorRotate(ctx context.Context) (*OKResponse, error) {
	if svc == nil {
		return nil, errors.New("broadcast: service not initialized")
	}
	svc.hub.BroadcastSponsorRotate()
	return &OKResponse{OK: true}, nil
}

//encore:api public method=POST path=/broadcast/sponsor/config
func SponsorConfig(ctx context.Context, req *SponsorConfigPayload) (*OKResponse, error) {
	if svc == nil {
		return nil, errors.New("broadcast: service not initialized")
	}
	svc.hub.BroadcastSponsorConfig(*req)
	return &OKResponse{OK: true}, nil
}

type ClientCountResponse struct {
	Count int `json:"count"`
}

//encore:api public method=GET path=/broadcast/clients
func ClientCount(ctx context.Context) (*ClientCountResponse, error) {
	if svc == nil {
		return nil, errors.New("broadcast: service not initialized")
	}
	return &ClientCountResponse{Count: svc.hub.ClientCount()}, nil
}
