package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"encore.app/rategate"
)

// passthroughGate is a submitter stand-in that runs the thunk immediately
// and drops the status code, since the ordering/retry discipline belongs to
// rategate.Gate's own tests, not client.go's.
type passthroughGate struct{}

func (passthroughGate) Submit(ctx context.Context, thunk rategate.Thunk) (interface{}, error) {
	value, _, err := thunk(ctx)
	if err != nil {
		return nil, err
	}
	return value, nil
}

type fakeTokens struct {
	tok     BearerToken
	ok      bool
	getErr  error
	deleted bool
}

func (f *fakeTokens) Get(ctx context.Context) (BearerToken, bool, error) {
	return f.tok, f.ok, f.getErr
}

func (f *fakeTokens) Delete(ctx context.Context) error {
	f.deleted = true
	return nil
}

func TestRequest_UsesLegacyKeyWhenNoBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "legacy-key" || r.Header.Get("Authorization-Type") != "v1" {
			t.Errorf("unexpected auth headers: %s / %s", r.Header.Get("Authorization"), r.Header.Get("Authorization-Type"))
		}
		w.WriteHeader(200)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "legacy-key", &fakeTokens{ok: false}, passthroughGate{}, nil)
	resp, err := c.Request(context.Background(), "GET", "/tournaments/t1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != 200 {
		t.Fatalf("expected status 200, got %d", resp.Status)
	}
}

func TestRequest_UsesBearerWhenTokenFresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer abc123" || r.Header.Get("Authorization-Type") != "v2" {
			t.Errorf("unexpected auth headers: %s / %s", r.Header.Get("Authorization"), r.Header.Get("Authorization-Type"))
		}
		w.WriteHeader(200)
	}))
	defer srv.Close()

	tokens := &fakeTokens{ok: true, tok: BearerToken{AccessToken: "abc123", ExpiresAt: time.Now().Add(time.Hour)}}
	c := NewClient(srv.URL, "legacy-key", tokens, passthroughGate{}, nil)
	if _, err := c.Request(context.Background(), "GET", "/tournaments/t1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequest_ExpiredBearerFallsBackToLegacyWithoutASecondRoundTrip(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization-Type") != "v1" {
			t.Errorf("expected the legacy key to be used directly for an expired token, got type %s", r.Header.Get("Authorization-Type"))
		}
		w.WriteHeader(200)
	}))
	defer srv.Close()

	tokens := &fakeTokens{ok: true, tok: BearerToken{AccessToken: "stale", ExpiresAt: time.Now().Add(-time.Hour)}}
	c := NewClient(srv.URL, "legacy-key", tokens, passthroughGate{}, nil)
	if _, err := c.Request(context.Background(), "GET", "/tournaments/t1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one round trip, got %d", calls)
	}
}

func TestRequest_401FallsBackToLegacyAndDeletesToken(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization-Type") == "v2" {
			w.WriteHeader(401)
			return
		}
		w.WriteHeader(200)
	}))
	defer srv.Close()

	tokens := &fakeTokens{ok: true, tok: BearerToken{AccessToken: "rejected", ExpiresAt: time.Now().Add(time.Hour)}}
	c := NewClient(srv.URL, "legacy-key", tokens, passthroughGate{}, nil)

	resp, err := c.Request(context.Background(), "GET", "/tournaments/t1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != 200 {
		t.Fatalf("expected the legacy retry to succeed with 200, got %d", resp.Status)
	}
	if calls != 2 {
		t.Fatalf("expected two round trips (bearer then legacy), got %d", calls)
	}
	if !tokens.deleted {
		t.Fatal("expected the rejected bearer token to be deleted")
	}
}

func TestRequest_NotFoundReturnsClassifiedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		w.Write([]byte("no such tournament"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "legacy-key", &fakeTokens{}, passthroughGate{}, nil)
	_, err := c.Request(context.Background(), "GET", "/tournaments/missing", nil)
	perr, ok := err.(*Error)
	if !ok || perr.Kind != KindNotFound {
		t.Fatalf("expected a not_found *Error, got %v (%T)", err, err)
	}
}

func TestRequest_ProviderErrorPreservesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
		w.Write([]byte("validation failed: starts_at required"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "legacy-key", &fakeTokens{}, passthroughGate{}, nil)
	_, err := c.Request(context.Background(), "POST", "/tournaments", map[string]string{"name": "x"})
	perr, ok := err.(*Error)
	if !ok || perr.Kind != KindProviderError {
		t.Fatalf("expected a provider_error, got %v (%T)", err, err)
	}
	if perr.Body == "" {
		t.Fatal("expected the response body to be preserved on the error")
	}
}
