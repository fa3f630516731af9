package venue

import (
	"errors"
	"fmt"
)

var (
	ErrNetwork             = errors.New("network error")
	ErrMalformedJSON       = errors.New("malformed json")
	ErrMetadataUnavailable = errors.New("metadata unavailable")
	ErrUnknownAsset        = errors.New("unknown asset")
)

type HTTPStatusError struct {
	Code int
	Body string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
}

// VenueError is a whole-batch rejection ({"status":"err"}).
type VenueError struct {
	Msg string
}

func (e *VenueError) Error() string {
	return "venue error: " + e.Msg
}

// IsTransport reports whether err came from the wire rather than the venue.
func IsTransport(err error) bool {
	var httpErr *HTTPStatusError
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrMalformedJSON) ||
		errors.Is(err, ErrMetadataUnavailable) || errors.As(err, &httpErr)
}
