package transport

import (
	"bufio"
	"io"
	"strings"
)

const defaultEventType = "message"

// sseEvent is one dispatched server-sent event.
type sseEvent struct {
	Type string
	ID   string
	Data string
}

// sseReader splits a text/event-stream body into events. Comments, retry
// hints and unknown fields are skipped.
type sseReader struct {
	r *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{r: bufio.NewReader(r)}
}

// Next blocks until a complete event is available. An event cut off by EOF
// is discarded and io.EOF returned.
func (s *sseReader) Next() (sseEvent, error) {
	var (
		eventType string
		id        string
		data      strings.Builder
		hasData   bool
	)

	for {
		line, err := s.r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return sseEvent{}, err
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		if line == "" {
			if !hasData {
				eventType = ""
				if err == io.EOF {
					return sseEvent{}, io.EOF
				}
				continue
			}
			if eventType == "" {
				eventType = defaultEventType
			}
			return sseEvent{Type: eventType, ID: id, Data: data.String()}, nil
		}

		if err == io.EOF {
			// Trailing line without its blank-line terminator.
			return sseEvent{}, io.EOF
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			eventType = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			id = value
		}
	}
}
