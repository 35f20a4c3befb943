package transport

import "context"

// Callbacks is the three-callback form of a stream consumer. Nil callbacks
// are skipped.
type Callbacks struct {
	OnDelta func(delta string)
	OnFinal func(final string)
	OnError func(err error)
}

// Dispatch drains s into cb on the calling goroutine and returns the
// terminal state. Cancelling ctx cancels the stream.
func Dispatch(ctx context.Context, s *Stream, cb Callbacks) StreamState {
	for {
		select {
		case <-ctx.Done():
			s.Cancel()
			return s.State()
		case ev, ok := <-s.Events():
			if !ok {
				return s.State()
			}
			switch ev.Kind {
			case EventDelta:
				if cb.OnDelta != nil {
					cb.OnDelta(ev.Text)
				}
			case EventFinal:
				if cb.OnFinal != nil {
					cb.OnFinal(ev.Text)
				}
			case EventError:
				if cb.OnError != nil {
					cb.OnError(ev.Err)
				}
			}
		}
	}
}
