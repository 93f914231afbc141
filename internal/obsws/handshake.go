package obsws

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
)

// State is the handshake position of the current session.
type State int

const (
	StateDisconnected State = iota
	StateSocketOpen
	StateHelloReceived
	StateIdentifying
	StateIdentified
	StateAuthFailed
	StateTimedOut
	StateVersionMismatch
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateSocketOpen:
		return "socket_open"
	case StateHelloReceived:
		return "hello_received"
	case StateIdentifying:
		return "identifying"
	case StateIdentified:
		return "identified"
	case StateAuthFailed:
		return "auth_failed"
	case StateTimedOut:
		return "timed_out"
	case StateVersionMismatch:
		return "version_mismatch"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AuthResponse derives the obs-websocket credential from the secret and the
// Hello challenge: base64(sha256(base64(sha256(secret+salt)) + challenge)).
func AuthResponse(secret string, auth *AuthChallenge) string {
	if auth == nil || auth.Salt == "" || auth.Challenge == "" {
		return secret
	}
	first := sha256.Sum256([]byte(secret + auth.Salt))
	key := base64.StdEncoding.EncodeToString(first[:])
	second := sha256.Sum256([]byte(key + auth.Challenge))
	return base64.StdEncoding.EncodeToString(second[:])
}

// buildIdentify validates hello and returns the Identify payload to send.
func buildIdentify(hello *Hello, secret string) (Identify, State, error) {
	if hello.RPCVersion != RPCVersion {
		return Identify{}, StateVersionMismatch, newError(CodeVersionMismatch,
			fmt.Sprintf("unsupported rpc version %d", hello.RPCVersion), nil)
	}
	id := Identify{RPCVersion: RPCVersion, EventSubscriptions: 0}
	if hello.Authentication != nil {
		if secret == "" {
			return Identify{}, StateAuthFailed, newError(CodeAuthFailed, "obs requires a password but none is configured", nil)
		}
		id.Authentication = AuthResponse(secret, hello.Authentication)
	}
	return id, StateIdentifying, nil
}

// handleHello runs on the read loop when op 0 arrives.
func (c *Client) handleHello(s *session, hello *Hello) error {
	c.mu.Lock()
	if s != c.sess {
		c.mu.Unlock()
		return nil
	}
	c.state = StateHelloReceived
	c.mu.Unlock()

	slog.Debug("obs hello received", "rpc_version", hello.RPCVersion, "obs_ws_version", hello.ObsWebSocketVersion, "auth", hello.Authentication != nil)

	identify, next, err := buildIdentify(hello, s.secret)
	if err != nil {
		c.failSession(s, next, err)
		return err
	}
	payload, err := encodeMessage(OpIdentify, identify)
	if err != nil {
		err = newError(CodeSendFailure, "encode identify", err)
		c.failSession(s, StateDisconnected, err)
		return err
	}

	c.mu.Lock()
	if s == c.sess {
		c.state = StateIdentifying
		s.authSent = identify.Authentication != ""
	}
	c.mu.Unlock()

	if err := s.write(payload); err != nil {
		err = newError(CodeSendFailure, "write identify", err)
		c.failSession(s, StateDisconnected, err)
		return err
	}
	return nil
}

// handleIdentified marks the session connected, reports it and releases
// Connect.
func (c *Client) handleIdentified(s *session) {
	c.mu.Lock()
	if s != c.sess {
		c.mu.Unlock()
		return
	}
	c.state = StateIdentified
	c.connected.Store(true)
	hs := s.handshake
	s.handshake = nil
	c.mu.Unlock()
	c.notifyIdentified(s)
	if hs != nil {
		hs <- nil
	}
}
