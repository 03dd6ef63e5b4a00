package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is a non-2xx answer from the backend.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return e.Message
}

// newHTTPError picks the most specific message the body offers.
func newHTTPError(status int, body []byte) *HTTPError {
	msg := fmt.Sprintf("HTTP error! status: %d", status)

	var payload map[string]interface{}
	if json.Unmarshal(body, &payload) == nil {
		for _, key := range []string{"errorMessage", "message", "error"} {
			if s, ok := payload[key].(string); ok && s != "" {
				msg = s
				break
			}
		}
	}

	return &HTTPError{StatusCode: status, Message: msg, Body: body}
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode returns the backend status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
