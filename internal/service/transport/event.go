package transport

// EventKind tags a normalized stream event.
type EventKind int

const (
	EventDelta EventKind = iota + 1
	EventFinal
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventFinal:
		return "final"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one normalized inbound event. Text is set for Delta and Final,
// Err for Error.
type Event struct {
	Kind EventKind
	Text string
	Err  error
}

// Terminal reports whether no event can follow this one.
func (e Event) Terminal() bool {
	return e.Kind == EventFinal || e.Kind == EventError
}

// StreamState is the lifecycle of one outstanding stream.
type StreamState int

const (
	StreamOpen StreamState = iota
	StreamFinal
	StreamErrored
	StreamCancelled
)

func (s StreamState) String() string {
	switch s {
	case StreamOpen:
		return "open"
	case StreamFinal:
		return "final"
	case StreamErrored:
		return "errored"
	case StreamCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
