// Package rategate implements the rate-limited request gate (spec component
// C2): a strict FIFO single-flight serializer that every outbound provider
// call funnels through.
//
// Grounded on the teacher's warming/worker_pool.go (single dispatcher loop,
// exponential-backoff retry-then-give-up shape) and cache-manager/cache.go's
// use of container/list as an ordered, mutable ring — repurposed here from
// LRU eviction into an ordered pending-request queue where "push to front"
// plays the role "evict from back" played there.
package rategate

import (
	"container/list"
	"context"
	"log"
	"math"
	"sync"
	"time"
)

// Thunk is one gated unit of work. It returns the raw HTTP status code
// alongside the result so the gate can classify 429/403 for its retry
// policy without understanding the caller's domain.
type Thunk func(ctx context.Context) (result interface{}, statusCode int, err error)

// retryableBackoff is the fixed delay before a single 429/403 retry
// (spec.md §4.2).
const retryableBackoff = 5 * time.Second

type pendingRequest struct {
	ctx       context.Context
	thunk     Thunk
	resultCh  chan submitResult
	retried   bool
	cancelled bool
}

type submitResult struct {
	value interface{}
	err   error
}

// Gate serializes every outbound provider call behind a single dispatcher,
// honoring a caller-supplied minimum delay between dispatches unless dev
// mode is active.
type Gate struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  *list.List
	closed bool

	inFlight       bool
	lastDispatchAt time.Time

	effectiveRateFn func() int
	devModeFn       func() bool
	logger          *log.Logger

	// retryBackoff is the 429/403 retry delay (spec.md §4.2: fixed 5s).
	// Kept as a field rather than the bare constant so tests can shorten it.
	retryBackoff time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewGate constructs a Gate and starts its dispatch loop. effectiveRateFn and
// devModeFn are the setter-injected hooks into the adaptive rate controller
// (C3), mirroring cache.Service's SetActiveModeFn pattern; either may be nil,
// in which case the gate behaves as if dev mode is always off and the rate
// is a conservative 1 req/min.
func NewGate(effectiveRateFn func() int, devModeFn func() bool, logger *log.Logger) *Gate {
	if effectiveRateFn == nil {
		effectiveRateFn = func() int { return 1 }
	}
	if devModeFn == nil {
		devModeFn = func() bool { return false }
	}
	g := &Gate{
		queue:           list.New(),
		effectiveRateFn: effectiveRateFn,
		devModeFn:       devModeFn,
		logger:          logger,
		retryBackoff:    retryableBackoff,
		stopCh:          make(chan struct{}),
	}
	g.cond = sync.NewCond(&g.mu)

	g.wg.Add(1)
	go g.dispatchLoop()
	return g
}

// MinDelay returns the minimum spacing required between consecutive
// dispatches: 0 while dev mode is active, otherwise ceil(60000ms /
// effective_rate) per spec.md §4.2.
func (g *Gate) MinDelay() time.Duration {
	if g.devModeFn() {
		return 0
	}
	rate := g.effectiveRateFn()
	if rate <= 0 {
		rate = 1
	}
	ms := math.Ceil(60000.0 / float64(rate))
	return time.Duration(ms) * time.Millisecond
}

// Submit enqueues thunk and blocks until it has been dispatched (and, if
// retried, re-dispatched) and a result is available, or ctx is cancelled
// first. A caller cancelled while still queued is removed from the queue
// without ever being dispatched.
func (g *Gate) Submit(ctx context.Context, thunk Thunk) (interface{}, error) {
	req := &pendingRequest{
		ctx:      ctx,
		thunk:    thunk,
		resultCh: make(chan submitResult, 1),
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, context.Canceled
	}
	elem := g.queue.PushBack(req)
	g.cond.Signal()
	g.mu.Unlock()

	select {
	case res := <-req.resultCh:
		return res.value, res.err
	case <-ctx.Done():
		g.mu.Lock()
		req.cancelled = true
		// Remove is a safe no-op if the dispatcher already popped elem
		// (container/list.Remove checks list membership before unlinking).
		g.queue.Remove(elem)
		g.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Stop rejects new submissions and returns once the dispatch loop has exited.
// A dispatch already in flight finishes, and requests still queued are
// dispatched in order before the loop exits; a request waiting out its
// 429/403 retry backoff is not re-enqueued.
func (g *Gate) Stop() {
	g.mu.Lock()
	g.closed = true
	g.cond.Broadcast()
	g.mu.Unlock()
	close(g.stopCh)
	g.wg.Wait()
}

func (g *Gate) dispatchLoop() {
	defer g.wg.Done()
	for {
		req, ok := g.waitForNext()
		if !ok {
			return
		}
		g.dispatch(req)
	}
}

// waitForNext blocks until the queue holds a request and no dispatch is in
// flight, then pops and returns it. Returns ok=false once the gate has
// stopped and the queue has drained.
func (g *Gate) waitForNext() (*pendingRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		if g.queue.Len() > 0 && !g.inFlight {
			front := g.queue.Front()
			g.queue.Remove(front)
			req := front.Value.(*pendingRequest)
			if req.cancelled || req.ctx.Err() != nil {
				continue
			}
			g.inFlight = true
			return req, true
		}
		if g.closed && g.queue.Len() == 0 {
			return nil, false
		}
		g.cond.Wait()
	}
}

func (g *Gate) dispatch(req *pendingRequest) {
	if wait := g.MinDelay() - time.Since(g.lastDispatchAtSnapshot()); wait > 0 {
		time.Sleep(wait)
	}
	if req.ctx.Err() != nil {
		g.mu.Lock()
		g.inFlight = false
		g.mu.Unlock()
		g.cond.Signal()
		return
	}

	value, status, err := req.thunk(req.ctx)

	g.mu.Lock()
	g.inFlight = false
	g.lastDispatchAt = time.Now()
	g.mu.Unlock()

	if isRetryableStatus(status) && !req.retried {
		req.retried = true
		g.logf("retryable status %d, re-enqueuing at head after %s backoff", status, g.retryBackoff)
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			select {
			case <-time.After(g.retryBackoff):
			case <-g.stopCh:
				return
			}
			g.mu.Lock()
			if !req.cancelled {
				g.queue.PushFront(req)
				g.cond.Signal()
			}
			g.mu.Unlock()
		}()
		return
	}

	if !req.cancelled {
		req.resultCh <- submitResult{value: value, err: err}
	}
	g.cond.Signal()
}

func (g *Gate) lastDispatchAtSnapshot() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastDispatchAt
}

func isRetryableStatus(status int) bool {
	return status == 429 || status == 403
}

func (g *Gate) logf(format string, args ...interface{}) {
	if g.logger != nil {
		g.logger.Printf("[WARN] rategate: "+format, args...)
	}
}
