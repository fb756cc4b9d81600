package device

import "fmt"

// ErrorKind classifies why a fetch failed.
type ErrorKind int

const (
	// KindHTTPStatus means the device answered with a non-2xx status code.
	KindHTTPStatus ErrorKind = iota + 1

	// KindNetwork means the request never produced a usable response
	// (DNS failure, connection refused, timeout, truncated body).
	KindNetwork

	// KindMalformedBody means the body was not a JSON object with a numeric
	// temperature field.
	KindMalformedBody
)

// String returns the snake_case name of the kind, as used in JSON and metrics.
func (k ErrorKind) String() string {
	switch k {
	case KindHTTPStatus:
		return "http_status"
	case KindNetwork:
		return "network"
	case KindMalformedBody:
		return "malformed_body"
	default:
		return "unknown"
	}
}

// FetchError is returned by [Client.Fetch] for every failed fetch.
//
// Use errors.As to inspect it:
//
//	var fe *device.FetchError
//	if errors.As(err, &fe) && fe.Kind == device.KindHTTPStatus {
//	    log.Printf("device answered %d", fe.StatusCode)
//	}
type FetchError struct {
	// Kind is the failure class.
	Kind ErrorKind

	// StatusCode is the HTTP status for KindHTTPStatus, zero otherwise.
	StatusCode int

	// Err is the underlying cause, if any.
	Err error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("device returned HTTP status %d", e.StatusCode)
	case KindNetwork:
		return fmt.Sprintf("device unreachable: %v", e.Err)
	case KindMalformedBody:
		if e.Err != nil {
			return fmt.Sprintf("malformed response body: %v", e.Err)
		}
		return "malformed response body"
	default:
		return fmt.Sprintf("fetch failed: %v", e.Err)
	}
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

func httpStatusError(code int) *FetchError {
	return &FetchError{Kind: KindHTTPStatus, StatusCode: code}
}

func networkError(err error) *FetchError {
	return &FetchError{Kind: KindNetwork, Err: err}
}

func malformedBodyError(err error) *FetchError {
	return &FetchError{Kind: KindMalformedBody, Err: err}
}
