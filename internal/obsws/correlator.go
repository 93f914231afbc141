package obsws

import (
	"strconv"
	"sync"
	"time"
)

type pendingRequest struct {
	id          string
	requestType string
	created     time.Time
	ch          chan RequestResponse
}

// correlator maps outstanding request ids to single-shot result channels.
type correlator struct {
	mu      sync.Mutex
	next    int64
	pending map[string]*pendingRequest
}

func newCorrelator() *correlator {
	return &correlator{next: 1, pending: make(map[string]*pendingRequest)}
}

// register allocates the next id and records the waiter before anything is
// written to the socket.
func (c *correlator) register(requestType string) *pendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := strconv.FormatInt(c.next, 10)
	c.next++
	p := &pendingRequest{
		id:          id,
		requestType: requestType,
		created:     time.Now(),
		ch:          make(chan RequestResponse, 1),
	}
	c.pending[id] = p
	return p
}

// resolve hands resp to its waiter. Responses with no waiter are dropped.
func (c *correlator) resolve(resp RequestResponse) bool {
	c.mu.Lock()
	p, ok := c.pending[resp.RequestID]
	if ok {
		delete(c.pending, resp.RequestID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	p.ch <- resp
	return true
}

func (c *correlator) remove(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// reset drops every waiter and restarts ids at 1.
func (c *correlator) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = make(map[string]*pendingRequest)
	c.next = 1
}

func (c *correlator) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
