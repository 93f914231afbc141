package obsws

import (
	"errors"
	"fmt"
)

// Error codes carried by CodedError.
const (
	CodeNotConnected             = "NOT_CONNECTED"
	CodeVersionMismatch          = "VERSION_MISMATCH"
	CodeAuthFailed               = "AUTH_FAILED"
	CodeTimeout                  = "TIMEOUT"
	CodeTimedOut                 = "TIMED_OUT"
	CodeInvalidResponse          = "INVALID_RESPONSE"
	CodeSceneNotFound            = "SCENE_NOT_FOUND"
	CodeSwitchAlreadyInProgress  = "SWITCH_ALREADY_IN_PROGRESS"
	CodeSwitchVerificationFailed = "SWITCH_VERIFICATION_FAILED"
	CodeSendFailure              = "SEND_FAILURE"
	CodeDialFailure              = "DIAL_FAILURE"
	CodeRequestFailed            = "REQUEST_FAILED"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// ErrorCode returns the code of the first CodedError in err's chain, or "".
func ErrorCode(err error) string {
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
