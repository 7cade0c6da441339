package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNoPayload         = errors.New("transport: no payload")
	ErrUnsupportedScheme = errors.New("transport: unsupported origin scheme")
	ErrNoOriginURL       = errors.New("transport: origin url missing")
)

const (
	CodeNotFound    = "E_NOT_FOUND"    // asset or manifest missing on the origin
	CodeForbidden   = "E_FORBIDDEN"    // origin refused access
	CodeRateLimited = "E_RATE_LIMITED" // origin asked us to slow down
	CodeServerError = "E_SERVER_ERROR" // origin failed with a 5xx
	CodeNetwork     = "E_NETWORK"      // request never produced a response
	CodeUnknown     = "E_UNKNOWN_ERR"
)

// TransportError describes a failed request for a single path.
type TransportError struct {
	Code   string
	Status int
	Path   string
	// OriginCode is the E_* code an assetserver origin put in its error body.
	OriginCode string
	Message    string
	Err        error
}

// errorBody is the JSON envelope assetserver answers errors with.
type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("transport: %s %q (%d): %s", e.Code, e.Path, e.Status, msg)
	}
	return fmt.Sprintf("transport: %s %q: %s", e.Code, e.Path, msg)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a TransportError for a missing object.
func IsNotFound(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Code == CodeNotFound
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		return CodeForbidden
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	case status >= 500:
		return CodeServerError
	default:
		return CodeUnknown
	}
}

func statusError(path string, status int, body string) *TransportError {
	te := &TransportError{Code: codeForStatus(status), Status: status, Path: path}

	var eb errorBody
	if strings.HasPrefix(body, "{") && jsonUnmarshal([]byte(body), &eb) == nil && eb.Code != "" {
		te.OriginCode = eb.Code
		body = eb.Error
	}

	if len(body) > 256 {
		body = body[:256]
	}
	if body == "" {
		body = http.StatusText(status)
	}
	te.Message = body
	return te
}

func networkError(path string, err error) *TransportError {
	return &TransportError{Code: CodeNetwork, Path: path, Err: err}
}
