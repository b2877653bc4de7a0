package partclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// TransportError is every failure of a Part service call: the request could
// not be sent, timed out, returned a non-2xx status, or returned a body that
// did not decode. StatusCode is 0 when no response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "transport error"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if msg == "" {
		msg = "request failed"
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if strings.TrimSpace(e.Code) != "" {
		return fmt.Sprintf("%s: status=%d code=%s message=%s", e.Op, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("%s: status=%d message=%s", e.Op, e.StatusCode, msg)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the request ran out of time.
func (e *TransportError) Timeout() bool {
	return e != nil && errors.Is(e.Err, context.DeadlineExceeded)
}

// ServerMessage is the message to show a user: the service's own message
// when it sent one, otherwise a generic description.
func (e *TransportError) ServerMessage() string {
	if e == nil {
		return ""
	}
	if m := strings.TrimSpace(e.Message); m != "" {
		return m
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if t := http.StatusText(e.StatusCode); t != "" {
		return t
	}
	return "request failed"
}

func parseHTTPError(op string, status int, raw []byte) *TransportError {
	body := strings.TrimSpace(string(raw))
	out := &TransportError{Op: op, StatusCode: status, Body: body}

	var nested struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && strings.TrimSpace(nested.Error.Message) != "" {
		out.Message = strings.TrimSpace(nested.Error.Message)
		out.Code = strings.TrimSpace(nested.Error.Code)
		return out
	}

	var flat struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(raw, &flat); err == nil && strings.TrimSpace(flat.Message) != "" {
		out.Message = strings.TrimSpace(flat.Message)
		out.Code = strings.TrimSpace(flat.Code)
	}
	return out
}
