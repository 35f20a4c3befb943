package transport

import "fmt"

// SessionCreationError reports that the backend did not hand out a session.
// Chat stays disabled; the call is not retried.
type SessionCreationError struct {
	StatusCode int
	Err        error
}

func (e *SessionCreationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("create session: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("create session: %v", e.Err)
}

func (e *SessionCreationError) Unwrap() error { return e.Err }

// StreamParseError reports an inbound payload that is not valid JSON of the
// expected shape.
type StreamParseError struct {
	Payload string
	Err     error
}

func (e *StreamParseError) Error() string {
	return fmt.Sprintf("malformed stream payload %q: %v", truncate(e.Payload, 120), e.Err)
}

func (e *StreamParseError) Unwrap() error { return e.Err }

// StreamTransportError reports a connection-level failure: dial errors,
// non-2xx responses, or the peer closing before a final event.
type StreamTransportError struct {
	StatusCode int
	Err        error
}

func (e *StreamTransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("stream transport: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("stream transport: %v", e.Err)
}

func (e *StreamTransportError) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
