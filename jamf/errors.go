package jamf

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// ErrorKind classifies every failure returned by the client.
type ErrorKind int

const (
	// KindAuthentication means the token exchange failed; no token is cached.
	KindAuthentication ErrorKind = iota + 1
	// KindNetwork is a transport failure (DNS, refused connection, timeout).
	KindNetwork
	// KindProtocol is a non-2xx answer or a body that does not have the expected shape.
	KindProtocol
	// KindEncoding is invalid input handed to a request body encoder.
	KindEncoding
	// KindCanceled means the caller's context was canceled or its deadline passed.
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindNetwork:
		return "network"
	case KindProtocol:
		return "protocol"
	case KindEncoding:
		return "encoding"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. A *Error matches the sentinel of its kind.
var (
	ErrAuthentication = errors.New("jamf: authentication error")
	ErrNetwork        = errors.New("jamf: network error")
	ErrProtocol       = errors.New("jamf: protocol error")
	ErrEncoding       = errors.New("jamf: encoding error")
	ErrCanceled       = errors.New("jamf: request canceled")

	// ErrNotFound matches protocol errors carrying HTTP 404.
	ErrNotFound = errors.New("jamf: resource not found")
)

const bodyPreviewLimit = 200

// Error is the failure half of every client operation.
//
// StatusCode and Body are set when the server answered; Err holds the
// underlying cause (transport error, decode error, context error) when there is one.
type Error struct {
	Kind       ErrorKind
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := "jamf: " + e.Kind.String() + " error"
	if e.Method != "" || e.URL != "" {
		msg += fmt.Sprintf(": %s %s", e.Method, e.URL)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status=%d (%s)", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if len(e.Body) > 0 {
		msg += ", body=" + preview(e.Body)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.Kind == KindAuthentication
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrProtocol:
		return e.Kind == KindProtocol
	case ErrEncoding:
		return e.Kind == KindEncoding
	case ErrCanceled:
		return e.Kind == KindCanceled
	case ErrNotFound:
		return e.Kind == KindProtocol && e.StatusCode == http.StatusNotFound
	}
	return false
}

// KindOf returns the kind of a client error, or 0 when err was not produced by this package.
func KindOf(err error) ErrorKind {
	var jerr *Error
	if errors.As(err, &jerr) {
		return jerr.Kind
	}
	return 0
}

// StatusCode returns the HTTP status carried by a client error, or 0.
func StatusCode(err error) int {
	var jerr *Error
	if errors.As(err, &jerr) {
		return jerr.StatusCode
	}
	return 0
}

func protocolError(method, url string, status int, body []byte, format string, args ...interface{}) *Error {
	return &Error{
		Kind:       KindProtocol,
		Method:     method,
		URL:        url,
		StatusCode: status,
		Body:       body,
		Message:    fmt.Sprintf(format, args...),
	}
}

func encodingError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindEncoding, Message: fmt.Sprintf(format, args...)}
}

// transportError classifies an error from the HTTP layer: a failure after the
// caller's context ended is KindCanceled, the rest (client timeout included)
// is KindNetwork.
func transportError(ctx context.Context, method, url string, err error) *Error {
	kind := KindNetwork
	if ctx.Err() != nil {
		kind = KindCanceled
	}
	return &Error{
		Kind:   kind,
		Method: method,
		URL:    url,
		Err:    errors.Wrap(err, "request failed"),
	}
}

func canceledError(method, url string, err error) *Error {
	return &Error{Kind: KindCanceled, Method: method, URL: url, Err: err}
}

func authError(url string, status int, body []byte, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:       KindAuthentication,
		Method:     http.MethodPost,
		URL:        url,
		StatusCode: status,
		Body:       body,
		Message:    fmt.Sprintf(format, args...),
		Err:        cause,
	}
}

func preview(body []byte) string {
	if len(body) > bodyPreviewLimit {
		return string(body[:bodyPreviewLimit]) + "..."
	}
	return string(body)
}
