package chat

import "time"

// Role identifies who authored a transcript entry.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Status tracks where a message is in its streaming lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusFinal     Status = "final"
	StatusErrored   Status = "errored"
	StatusCancelled Status = "cancelled"
)

// Finalized reports whether the status is terminal.
func (s Status) Finalized() bool {
	switch s {
	case StatusFinal, StatusErrored, StatusCancelled:
		return true
	default:
		return false
	}
}

// Message is an immutable snapshot of one transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Status    Status    `json:"status"`
	Generated bool      `json:"generated,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Finalized reports whether the message will change again.
func (m Message) Finalized() bool {
	return m.Status.Finalized()
}

// FeedbackEligible reports whether the UI may attach a like/dislike tag.
func (m Message) FeedbackEligible() bool {
	return m.Role == RoleBot && m.Status == StatusFinal && m.Generated && m.Content != ""
}

// Feedback is a local sentiment tag on a bot answer.
type Feedback string

const (
	FeedbackUnset   Feedback = ""
	FeedbackLike    Feedback = "like"
	FeedbackDislike Feedback = "dislike"
)
