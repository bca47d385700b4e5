package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"encore.app/rategate"
)

func marshalBody(body interface{}) ([]byte, error) {
	return json.Marshal(body)
}

const requestTimeout = 15 * time.Second

// tokenSource is the narrow surface client.go needs from TokenStore,
// extracted so tests can inject a fake the way cache/store.go's dataStore
// lets service_test.go inject fakeStore.
type tokenSource interface {
	Get(ctx context.Context) (BearerToken, bool, error)
	Delete(ctx context.Context) error
}

// submitter is the narrow surface client.go needs from rategate.Gate.
type submitter interface {
	Submit(ctx context.Context, thunk rategate.Thunk) (interface{}, error)
}

// Response is a decoded provider response, ready for decode.go's typed
// unmarshalers or direct inspection by callers that only need the status.
type Response struct {
	Status int
	Body   []byte
}

// Client is the sole path through which this core talks to the tournament
// provider's HTTP API. Every call funnels through a rategate.Gate per
// spec.md §4.4 ("C4 therefore never performs a bare outbound call").
type Client struct {
	baseURL    string
	legacyKey  string
	httpClient *http.Client
	gate       submitter
	tokens     tokenSource
	metrics    *Metrics
	logger     *log.Logger
}

// NewClient wires the base URL, legacy API key, token store, and gate. Pass
// a *rategate.Gate for gate in production; tests may supply any submitter.
func NewClient(baseURL, legacyKey string, tokens tokenSource, gate submitter, logger *log.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		legacyKey: legacyKey,
		tokens:    tokens,
		gate:      gate,
		metrics:   NewMetrics(),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
	}
}

// Request performs method against endpoint (a path relative to baseURL),
// JSON-encoding body when present, and returns the decoded response or a
// *Error classified per spec.md §4.4's taxonomy.
//
// The whole round trip — including the 401-fallback retry — is submitted to
// C2 as a single thunk, so a retry never cuts in front of another caller's
// queued request.
func (c *Client) Request(ctx context.Context, method, endpoint string, body interface{}) (*Response, error) {
	requestID := uuid.NewString()

	var payload []byte
	if body != nil {
		var err error
		payload, err = marshalBody(body)
		if err != nil {
			return nil, &Error{Kind: KindTransportError, Status: 0, Body: err.Error()}
		}
	}

	start := time.Now()
	raw, err := c.gate.Submit(ctx, func(ctx context.Context) (interface{}, int, error) {
		return c.roundTrip(ctx, method, endpoint, payload, requestID)
	})
	elapsed := time.Since(start)

	if err != nil {
		if perr, ok := err.(*Error); ok {
			c.metrics.Record(perr.Kind, elapsed)
			return nil, perr
		}
		c.metrics.Record(KindTransportError, elapsed)
		return nil, &Error{Kind: KindTransportError, Status: 0, Body: err.Error()}
	}

	resp := raw.(*Response)
	c.metrics.Record(kindOK, elapsed)
	c.logf(requestID, method, endpoint, resp.Status, elapsed)
	return resp, nil
}

// roundTrip is the thunk body: it selects an auth header, issues the HTTP
// call, and applies the 401-fallback-to-legacy-key retry. Its (value,
// status, error) return matches rategate.Thunk exactly.
func (c *Client) roundTrip(ctx context.Context, method, endpoint string, payload []byte, requestID string) (interface{}, int, error) {
	useBearer, bearer := c.selectBearer(ctx)

	resp, err := c.doOnce(ctx, method, endpoint, payload, requestID, useBearer, bearer)
	if err != nil {
		return nil, 0, &Error{Kind: KindTransportError, Status: 0, Body: err.Error()}
	}

	if resp.Status == 401 && useBearer {
		// The stored token is irrecoverable once rejected (spec.md §4.4);
		// drop it so future requests go straight to the legacy key.
		_ = c.tokens.Delete(ctx)
		resp, err = c.doOnce(ctx, method, endpoint, payload, requestID, false, "")
		if err != nil {
			return nil, 0, &Error{Kind: KindTransportError, Status: 0, Body: err.Error()}
		}
	}

	if perr := classifyStatus(resp.Status, string(resp.Body)); perr != nil {
		return nil, resp.Status, perr
	}
	return resp, resp.Status, nil
}

// selectBearer reports whether a usable bearer token is on hand. An expired
// token is treated the same as an absent one and falls back to the legacy
// key — token refresh is outside this core's scope (Non-goals), so there is
// no path that ever renews a bearer token, only one that retires it.
func (c *Client) selectBearer(ctx context.Context) (bool, string) {
	tok, ok, err := c.tokens.Get(ctx)
	if err != nil || !ok {
		return false, ""
	}
	if tok.Expired(time.Now()) {
		return false, ""
	}
	return true, tok.AccessToken
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, payload []byte, requestID string, useBearer bool, bearer string) (*Response, error) {
	url := c.baseURL + endpoint

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/vnd.api+json")
	req.Header.Set("X-Request-ID", requestID)
	if useBearer {
		req.Header.Set("Authorization", "Bearer "+bearer)
		req.Header.Set("Authorization-Type", "v2")
	} else {
		req.Header.Set("Authorization", c.legacyKey)
		req.Header.Set("Authorization-Type", "v1")
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{Status: httpResp.StatusCode, Body: respBody}, nil
}

func (c *Client) logf(requestID, method, endpoint string, status int, elapsed time.Duration) {
	if c.logger == nil {
		return
	}
	c.logger.Printf(`{"request_id":%q,"method":%q,"endpoint":%q,"status":%d,"elapsed_ms":%d}`,
		requestID, method, endpoint, status, elapsed.Milliseconds())
}
