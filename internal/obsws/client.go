// Package obsws is a client for the obs-websocket 5 protocol covering the
// handshake, request correlation and program scene control.
package obsws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Options tunes timeouts and the scene switch behaviour.
type Options struct {
	RequestTimeout   time.Duration
	HandshakeTimeout time.Duration
	// SettleDelay is how long to wait after SetCurrentProgramScene before
	// reading the program scene back.
	SettleDelay time.Duration
	// TolerateSceneSwitchErrors resolves SetCurrentProgramScene successfully
	// even when OBS answers with an error status.
	TolerateSceneSwitchErrors bool
	// OnRequest, when set, is called once per finished request.
	OnRequest func(requestType string, elapsed time.Duration, err error)
}

func DefaultOptions() Options {
	return Options{
		RequestTimeout:            5 * time.Second,
		HandshakeTimeout:          10 * time.Second,
		SettleDelay:               300 * time.Millisecond,
		TolerateSceneSwitchErrors: true,
	}
}

// Response is the payload of a successful request.
type Response struct {
	Data json.RawMessage
	// ErrorButResolved is set when OBS reported an error that was tolerated.
	ErrorButResolved bool
}

// session is one socket from dial to teardown.
type session struct {
	url    string
	secret string
	conn   net.Conn
	rw     io.ReadWriter

	writeMu sync.Mutex
	done    chan struct{}

	// guarded by Client.mu
	handshake chan error
	authSent  bool
}

func (s *session) write(p []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return wsutil.WriteClientText(s.rw, p)
}

// bufferedConn reads through the dial reader, which may already hold the
// server's Hello.
type bufferedConn struct {
	net.Conn
	r io.Reader
}

func (b bufferedConn) Read(p []byte) (int, error) { return b.r.Read(p) }

// Client owns a single OBS connection. The zero value is not usable; call New.
type Client struct {
	opts Options

	mu        sync.Mutex
	sess      *session
	state     State
	connected atomic.Bool

	corr *correlator

	scenesMu sync.RWMutex
	scenes   []Scene

	// switchToken is non-zero while a scene switch owns the connection.
	switchToken atomic.Uint64
	switchSeq   atomic.Uint64

	cbMu     sync.RWMutex
	onChange func(bool)
	// notifyMu orders connection callbacks so a teardown is never reported
	// before the identify that preceded it.
	notifyMu sync.Mutex
}

func New(opts Options) *Client {
	def := DefaultOptions()
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = def.RequestTimeout
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = def.HandshakeTimeout
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = def.SettleDelay
	}
	return &Client{opts: opts, corr: newCorrelator(), scenes: []Scene{}}
}

// OnConnectionChanged registers fn to be called with the new connected state.
// fn runs on the read loop for connects and must not call Connect, Disconnect
// or anything that sends a request.
func (c *Client) OnConnectionChanged(fn func(connected bool)) {
	c.cbMu.Lock()
	c.onChange = fn
	c.cbMu.Unlock()
}

func (c *Client) notify(connected bool) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.callback(connected)
}

// notifyIdentified reports connected=true only while s is still the live
// session. A teardown racing it reports false afterwards.
func (c *Client) notifyIdentified(s *session) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.mu.Lock()
	live := s == c.sess && c.connected.Load()
	c.mu.Unlock()
	if live {
		c.callback(true)
	}
}

func (c *Client) callback(connected bool) {
	c.cbMu.RLock()
	fn := c.onChange
	c.cbMu.RUnlock()
	if fn != nil {
		fn(connected)
	}
}

func (c *Client) Connected() bool { return c.connected.Load() }

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// URL returns the address of the current session, if any.
func (c *Client) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ""
	}
	return c.sess.url
}

// Connect drops any previous session, dials url and completes the
// Hello/Identify handshake. Once identified the scene cache is refreshed;
// a refresh error is returned but the connection stays up.
func (c *Client) Connect(ctx context.Context, url, secret string) error {
	c.Disconnect()

	hctx, cancel := context.WithTimeout(ctx, c.opts.HandshakeTimeout)
	defer cancel()

	slog.Info("obs connecting", "url", url)
	conn, br, _, err := ws.Dial(hctx, url)
	if err != nil {
		if errors.Is(hctx.Err(), context.DeadlineExceeded) {
			c.setState(StateTimedOut)
			return newError(CodeTimedOut, "handshake timed out while dialing", err)
		}
		return newError(CodeDialFailure, "dial "+url, err)
	}

	s := &session{
		url:       url,
		secret:    secret,
		conn:      conn,
		rw:        conn,
		done:      make(chan struct{}),
		handshake: make(chan error, 1),
	}
	if br != nil {
		s.rw = bufferedConn{Conn: conn, r: br}
	}
	hs := s.handshake

	c.mu.Lock()
	c.sess = s
	c.state = StateSocketOpen
	c.mu.Unlock()

	go c.readLoop(s)

	select {
	case err := <-hs:
		if err != nil {
			slog.Error("obs handshake failed", "url", url, "error", err)
			return err
		}
	case <-hctx.Done():
		timeout := newError(CodeTimedOut, "handshake did not complete in "+c.opts.HandshakeTimeout.String(), hctx.Err())
		if c.failSession(s, StateTimedOut, timeout) {
			slog.Error("obs handshake failed", "url", url, "error", timeout)
			return timeout
		}
		// Identified raced the deadline.
		if err := <-hs; err != nil {
			return err
		}
	}

	if !c.isLive(s) {
		return newError(CodeNotConnected, "connection closed after identify", nil)
	}
	slog.Info("obs identified", "url", url)

	if _, err := c.RefreshScenes(ctx); err != nil {
		slog.Warn("obs initial scene refresh failed", "error", err)
		return err
	}
	return nil
}

func (c *Client) isLive(s *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return s == c.sess && c.connected.Load()
}

// Disconnect tears down the current session. It is safe to call at any time
// and always reports connected=false to the registered callback.
func (c *Client) Disconnect() {
	c.mu.Lock()
	s := c.sess
	hs := c.teardownLocked(StateDisconnected)
	c.mu.Unlock()
	c.resetSession()
	if s != nil {
		slog.Info("obs disconnected", "url", s.url)
	}
	if hs != nil {
		hs <- newError(CodeNotConnected, "disconnected during handshake", nil)
	}
	c.notify(false)
}

// failSession tears down s if it is still current and still handshaking or
// connected. It returns false when s was already replaced or identified
// before a handshake deadline could claim it.
func (c *Client) failSession(s *session, next State, cause error) bool {
	c.mu.Lock()
	if s != c.sess {
		c.mu.Unlock()
		return false
	}
	if next == StateTimedOut && s.handshake == nil {
		c.mu.Unlock()
		return false
	}
	hs := c.teardownLocked(next)
	c.mu.Unlock()
	c.resetSession()
	if hs != nil {
		hs <- cause
	}
	c.notify(false)
	return true
}

// teardownLocked closes the current socket and returns the pending handshake
// channel, if any, so the caller can report the outcome outside the lock.
func (c *Client) teardownLocked(next State) chan error {
	c.connected.Store(false)
	c.state = next
	s := c.sess
	c.sess = nil
	if s == nil {
		return nil
	}
	_ = s.conn.Close()
	close(s.done)
	hs := s.handshake
	s.handshake = nil
	return hs
}

func (c *Client) resetSession() {
	c.setScenes(nil)
	c.switchToken.Store(0)
	c.corr.reset()
}

func (c *Client) setState(st State) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
}

func (c *Client) readLoop(s *session) {
	for {
		data, err := wsutil.ReadServerText(s.rw)
		if err != nil {
			c.handleSocketClosed(s, err)
			return
		}
		msg, err := decodeMessage(data)
		if err != nil {
			slog.Debug("obs message ignored", "error", err)
			continue
		}
		switch msg.Op {
		case OpHello:
			if err := c.handleHello(s, msg.Hello); err != nil {
				return
			}
		case OpIdentified:
			c.handleIdentified(s)
		case OpRequestResponse:
			if !c.corr.resolve(*msg.Response) {
				slog.Debug("obs response dropped", "request_id", msg.Response.RequestID)
			}
		}
	}
}

func (c *Client) handleSocketClosed(s *session, readErr error) {
	c.mu.Lock()
	if s != c.sess {
		c.mu.Unlock()
		return
	}
	next := StateDisconnected
	var cause error = newError(CodeNotConnected, "connection closed during handshake", readErr)
	if c.state == StateIdentifying && s.authSent {
		next = StateAuthFailed
		cause = newError(CodeAuthFailed, "obs closed the connection after identify", readErr)
	}
	if c.state == StateIdentified {
		slog.Warn("obs connection lost", "url", s.url, "error", readErr)
	}
	hs := c.teardownLocked(next)
	c.mu.Unlock()
	c.resetSession()
	if hs != nil {
		hs <- cause
	}
	c.notify(false)
}

// Send issues requestType and waits for the correlated response.
func (c *Client) Send(ctx context.Context, requestType string, data any) (Response, error) {
	start := time.Now()
	resp, err := c.send(ctx, requestType, data)
	if c.opts.OnRequest != nil {
		c.opts.OnRequest(requestType, time.Since(start), err)
	}
	return resp, err
}

func (c *Client) send(ctx context.Context, requestType string, data any) (Response, error) {
	c.mu.Lock()
	s := c.sess
	c.mu.Unlock()
	if s == nil || !c.connected.Load() {
		return Response{}, newError(CodeNotConnected, "not connected to obs", nil)
	}
	if data == nil {
		data = struct{}{}
	}

	p := c.corr.register(requestType)
	if requestType != RequestGetCurrentProgramScene {
		slog.Debug("obs request", "type", requestType, "request_id", p.id)
	}

	payload, err := encodeMessage(OpRequest, Request{RequestType: requestType, RequestID: p.id, RequestData: data})
	if err != nil {
		c.corr.remove(p.id)
		return Response{}, newError(CodeSendFailure, "encode "+requestType, err)
	}
	if err := s.write(payload); err != nil {
		c.corr.remove(p.id)
		slog.Error("obs request write failed", "type", requestType, "request_id", p.id, "error", err)
		return Response{}, newError(CodeSendFailure, "write "+requestType, err)
	}

	timer := time.NewTimer(c.opts.RequestTimeout)
	defer timer.Stop()

	select {
	case resp := <-p.ch:
		return c.complete(requestType, resp)
	case <-timer.C:
		c.corr.remove(p.id)
		slog.Warn("obs request timeout", "type", requestType, "request_id", p.id, "elapsed", time.Since(p.created))
		return Response{}, newError(CodeTimeout, requestType+" timed out", nil)
	case <-s.done:
		return Response{}, newError(CodeNotConnected, "connection closed", nil)
	case <-ctx.Done():
		c.corr.remove(p.id)
		return Response{}, ctx.Err()
	}
}

func (c *Client) complete(requestType string, resp RequestResponse) (Response, error) {
	if resp.OK() {
		return Response{Data: resp.ResponseData}, nil
	}
	if requestType == RequestSetCurrentProgramScene && c.opts.TolerateSceneSwitchErrors {
		slog.Warn("obs reported a scene switch error; treating as resolved", "request_id", resp.RequestID, "error", resp.ErrorMessage())
		return Response{ErrorButResolved: true}, nil
	}
	return Response{}, newError(CodeRequestFailed, requestType+": "+resp.ErrorMessage(), nil)
}
