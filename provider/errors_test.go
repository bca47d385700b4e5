package provider

import "testing"

func TestClassifyStatus_Unauthorized(t *testing.T) {
	e := classifyStatus(401, "token expired")
	if e == nil || e.Kind != KindUnauthorized {
		t.Fatalf("expected unauthorized, got %+v", e)
	}
}

func TestClassifyStatus_NotFound(t *testing.T) {
	e := classifyStatus(404, "no such tournament")
	if e == nil || e.Kind != KindNotFound {
		t.Fatalf("expected not_found, got %+v", e)
	}
}

func TestClassifyStatus_RateLimited(t *testing.T) {
	for _, status := range []int{429, 403} {
		e := classifyStatus(status, "slow down")
		if e == nil || e.Kind != KindRateLimited {
			t.Fatalf("status %d: expected rate_limited, got %+v", status, e)
		}
	}
}

func TestClassifyStatus_ProviderError(t *testing.T) {
	e := classifyStatus(500, "internal error")
	if e == nil || e.Kind != KindProviderError {
		t.Fatalf("expected provider_error, got %+v", e)
	}
}

func TestClassifyStatus_SuccessIsNil(t *testing.T) {
	if e := classifyStatus(200, ""); e != nil {
		t.Fatalf("expected nil for a 2xx status, got %+v", e)
	}
}

func TestError_MessageIncludesBody(t *testing.T) {
	e := &Error{Kind: KindProviderError, Status: 500, Body: "boom"}
	if got := e.Error(); got == "" {
		t.Fatal("expected a non-empty error message")
	}
}
