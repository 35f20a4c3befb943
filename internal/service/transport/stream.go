package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StreamRequest addresses one streamed exchange.
type StreamRequest struct {
	SessionID string
	UserID    string
	Message   string
}

// streamPayload is the wire shape of one event. Pointer fields distinguish
// an absent key from an empty string.
type streamPayload struct {
	Delta *string `json:"delta"`
	Final *string `json:"final"`
}

// Stream is a handle on one open event stream.
//
// Events arrive in the order the transport received them. After a Final or
// Error event, or after Cancel, nothing else is delivered and the Events
// channel is closed.
type Stream struct {
	events chan Event
	done   chan struct{}
	quit   chan struct{}

	cancelConn context.CancelFunc
	terminal   sync.Once
	quitOnce   sync.Once

	mu    sync.Mutex
	state StreamState

	logger zerolog.Logger
}

// OpenStream starts the request on a background goroutine and returns at
// once. Connection failures are reported as an Error event, never as a
// return value.
func (c *Client) OpenStream(ctx context.Context, r StreamRequest) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		events:     make(chan Event),
		done:       make(chan struct{}),
		quit:       make(chan struct{}),
		cancelConn: cancel,
		state:      StreamOpen,
		logger: log.With().
			Str("component", "transport").
			Str("session_id", r.SessionID).
			Str("user_id", r.UserID).
			Logger(),
	}

	go s.run(ctx, c.httpClient, c.streamURL(r))
	return s
}

// Events delivers normalized events until the stream is terminal.
func (s *Stream) Events() <-chan Event { return s.events }

// Done is closed once the stream reached a terminal state.
func (s *Stream) Done() <-chan struct{} { return s.done }

// State reports the current lifecycle state.
func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel abandons the stream and closes the connection. It is safe to call
// more than once and after the stream finished.
func (s *Stream) Cancel() {
	s.quitOnce.Do(func() { close(s.quit) })
	if s.terminate(StreamCancelled) {
		s.logger.Debug().Msg("stream cancelled")
	}
}

// terminate moves the stream into its terminal state and closes the
// connection. Only the first caller wins.
func (s *Stream) terminate(state StreamState) bool {
	won := false
	s.terminal.Do(func() {
		s.mu.Lock()
		s.state = state
		s.mu.Unlock()
		s.cancelConn()
		close(s.done)
		won = true
	})
	return won
}

func (s *Stream) run(ctx context.Context, hc *http.Client, target string) {
	defer close(s.events)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		s.fail(ctx, &StreamTransportError{Err: errors.Wrap(err, "build stream request")})
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := hc.Do(req)
	if err != nil {
		s.fail(ctx, &StreamTransportError{Err: errors.Wrap(err, "open stream")})
		return
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		s.fail(ctx, &StreamTransportError{StatusCode: resp.StatusCode, Err: statusError(resp)})
		return
	}

	s.logger.Debug().Msg("stream opened")

	reader := newSSEReader(resp.Body)
	for {
		ev, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errors.New("connection closed before final event")
			} else {
				err = errors.Wrap(err, "read stream")
			}
			s.fail(ctx, &StreamTransportError{Err: err})
			return
		}
		if ev.Type != defaultEventType {
			s.logger.Debug().Str("event", ev.Type).Msg("ignoring named event")
			continue
		}
		if !s.handle(ctx, ev.Data) {
			return
		}
	}
}

// handle normalizes one payload. It returns false once the stream is over.
func (s *Stream) handle(ctx context.Context, data string) bool {
	var payload streamPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		s.fail(ctx, &StreamParseError{Payload: data, Err: err})
		return false
	}

	if payload.Delta != nil && *payload.Delta != "" {
		if !s.emit(Event{Kind: EventDelta, Text: *payload.Delta}) {
			return false
		}
	}

	if payload.Final != nil {
		if s.terminate(StreamFinal) {
			s.logger.Debug().Int("length", len(*payload.Final)).Msg("stream finished")
			s.emit(Event{Kind: EventFinal, Text: *payload.Final})
		}
		return false
	}
	return true
}

// fail reports err unless the failure is just the consequence of a cancel.
func (s *Stream) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		s.Cancel()
		return
	}
	if !s.terminate(StreamErrored) {
		return
	}
	s.logger.Warn().Err(err).Msg("stream failed")
	s.emit(Event{Kind: EventError, Err: err})
}

// emit hands ev to the consumer unless the stream was cancelled first.
func (s *Stream) emit(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.quit:
		return false
	}
}
