package obsws

import (
	"encoding/json"
	"fmt"
)

// OpCode identifies the kind of an obs-websocket message.
type OpCode int

// Op codes used by this client.
const (
	OpHello           OpCode = 0
	OpIdentify        OpCode = 1
	OpIdentified      OpCode = 2
	OpRequest         OpCode = 6
	OpRequestResponse OpCode = 7
)

// RPCVersion is the only protocol revision this client speaks.
const RPCVersion = 1

// Request types sent by this client.
const (
	RequestGetSceneList           = "GetSceneList"
	RequestGetCurrentProgramScene = "GetCurrentProgramScene"
	RequestSetCurrentProgramScene = "SetCurrentProgramScene"
)

type envelope struct {
	Op OpCode          `json:"op"`
	D  json.RawMessage `json:"d"`
}

// Hello is sent by the server as soon as the socket opens.
type Hello struct {
	ObsWebSocketVersion string         `json:"obsWebSocketVersion,omitempty"`
	RPCVersion          int            `json:"rpcVersion"`
	Authentication      *AuthChallenge `json:"authentication,omitempty"`
}

type AuthChallenge struct {
	Challenge string `json:"challenge"`
	Salt      string `json:"salt"`
}

type Identify struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type Identified struct {
	NegotiatedRPCVersion int `json:"negotiatedRpcVersion,omitempty"`
}

type Request struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData"`
}

// RequestResponse carries either the compact status/error pair or the
// obs-websocket 5 requestStatus object.
type RequestResponse struct {
	RequestType   string          `json:"requestType,omitempty"`
	RequestID     string          `json:"requestId"`
	Status        string          `json:"status,omitempty"`
	Error         string          `json:"error,omitempty"`
	RequestStatus *RequestStatus  `json:"requestStatus,omitempty"`
	ResponseData  json.RawMessage `json:"responseData,omitempty"`
}

type RequestStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment,omitempty"`
}

// OK reports whether the server accepted the request.
func (r RequestResponse) OK() bool {
	if r.RequestStatus != nil {
		return r.RequestStatus.Result
	}
	return r.Status != "error"
}

// ErrorMessage returns the server-provided failure text.
func (r RequestResponse) ErrorMessage() string {
	if r.Error != "" {
		return r.Error
	}
	if r.RequestStatus != nil {
		if r.RequestStatus.Comment != "" {
			return r.RequestStatus.Comment
		}
		return fmt.Sprintf("request status code %d", r.RequestStatus.Code)
	}
	return "unknown error"
}

// Message is an inbound frame decoded into the payload for its op code.
// Exactly one of the payload pointers is set.
type Message struct {
	Op         OpCode
	Hello      *Hello
	Identified *Identified
	Response   *RequestResponse
}

func decodeMessage(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("decode envelope: %w", err)
	}
	msg := Message{Op: env.Op}
	var target any
	switch env.Op {
	case OpHello:
		msg.Hello = &Hello{}
		target = msg.Hello
	case OpIdentified:
		msg.Identified = &Identified{}
		target = msg.Identified
	case OpRequestResponse:
		msg.Response = &RequestResponse{}
		target = msg.Response
	default:
		return msg, fmt.Errorf("unsupported op %d", env.Op)
	}
	if len(env.D) == 0 {
		return msg, nil
	}
	if err := json.Unmarshal(env.D, target); err != nil {
		return Message{}, fmt.Errorf("decode op %d payload: %w", env.Op, err)
	}
	return msg, nil
}

func encodeMessage(op OpCode, d any) ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Op: op, D: raw})
}
