package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for gateway operations.
var (
	ErrNetwork = errors.New("network unavailable")
	ErrDecode  = errors.New("response decode failed")
)

// StatusError is a completed exchange with a non-2xx status.
type StatusError struct {
	Status int
	Detail string // server-provided "detail" message, if any
	Body   []byte
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
}

// Unauthorized reports whether the server rejected the credential.
func (e *StatusError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// IsUnauthorized reports whether err carries a 401 StatusError.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Unauthorized()
}

func newStatusError(status int, body []byte) *StatusError {
	se := &StatusError{Status: status, Body: body}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil && len(payload.Detail) > 0 {
		var detail string
		if json.Unmarshal(payload.Detail, &detail) == nil {
			se.Detail = detail
		}
	}
	return se
}
