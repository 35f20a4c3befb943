// Package ui renders a conversation transcript for a line-oriented terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/zhouzirui/funda-chat/internal/model/chat"
	chatsvc "github.com/zhouzirui/funda-chat/internal/service/chat"
)

var (
	userStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	botStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	indexStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle   = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#AFAFAF"))
	feedbackStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("62")).Padding(0, 1)
)

// Renderer writes transcript lines to w.
type Renderer struct {
	w         io.Writer
	color     bool
	user      string
	assistant string

	// streaming state for the bot message currently being printed
	streamID string
	printed  string
}

// New creates a renderer. Colour is enabled only when w is a terminal.
func New(w io.Writer, user, assistant string) *Renderer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Renderer{w: w, color: color, user: user, assistant: assistant}
}

// SetColor forces colour on or off.
func (r *Renderer) SetColor(on bool) { r.color = on }

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

func (r *Renderer) label(m chat.Message) string {
	if m.Role == chat.RoleUser {
		return r.style(userStyle, r.user+":")
	}
	return r.style(botStyle, r.assistant+":")
}

// Line formats message number n (1-based) without a trailing newline.
func (r *Renderer) Line(n int, m chat.Message, f chat.Feedback) string {
	var b strings.Builder
	b.WriteString(r.style(indexStyle, fmt.Sprintf("[%d]", n)))
	b.WriteByte(' ')
	b.WriteString(r.label(m))
	b.WriteByte(' ')

	switch m.Status {
	case chat.StatusErrored:
		b.WriteString(r.style(errorStyle, m.Content))
	case chat.StatusCancelled:
		b.WriteString(m.Content)
		b.WriteByte(' ')
		b.WriteString(r.style(noticeStyle, "(cancelled)"))
	case chat.StatusPending:
		b.WriteString(r.style(noticeStyle, "..."))
	default:
		b.WriteString(m.Content)
	}

	if f != chat.FeedbackUnset {
		b.WriteByte(' ')
		b.WriteString(r.style(feedbackStyle, string(f)))
	}
	return b.String()
}

// Message prints message number n.
func (r *Renderer) Message(n int, m chat.Message, f chat.Feedback) {
	fmt.Fprintln(r.w, r.Line(n, m, f))
}

// History prints the whole transcript.
func (r *Renderer) History(t chatsvc.Transcript) {
	for i, m := range t.Messages() {
		r.Message(i+1, m, t.Feedback(m.ID))
	}
}

// Notice prints a dimmed informational line.
func (r *Renderer) Notice(format string, args ...any) {
	fmt.Fprintln(r.w, r.style(noticeStyle, fmt.Sprintf(format, args...)))
}

// Error prints a failure line.
func (r *Renderer) Error(err error) {
	fmt.Fprintln(r.w, r.style(errorStyle, "error: "+err.Error()))
}

// Observe follows the in-flight bot message of each snapshot and prints only
// the text not yet on screen. Use it as a controller observer.
func (r *Renderer) Observe(t chatsvc.Transcript) {
	id, busy := t.InFlight()
	if !busy {
		id = r.streamID
	}
	if id == "" {
		return
	}

	m, ok := t.Get(id)
	if !ok || m.Role != chat.RoleBot {
		return
	}

	if r.streamID != id {
		r.streamID, r.printed = id, ""
		fmt.Fprint(r.w, r.style(indexStyle, fmt.Sprintf("[%d]", t.Len()))+" "+r.label(m)+" ")
	}

	switch m.Status {
	case chat.StatusErrored:
		if r.printed != "" {
			fmt.Fprintln(r.w)
		}
		fmt.Fprintln(r.w, r.style(errorStyle, m.Content))
		r.streamID, r.printed = "", ""
		return
	case chat.StatusCancelled:
		r.write(m.Content)
		fmt.Fprintln(r.w, " "+r.style(noticeStyle, "(cancelled)"))
		r.streamID, r.printed = "", ""
		return
	}

	r.write(m.Content)
	if m.Finalized() {
		fmt.Fprintln(r.w)
		r.streamID, r.printed = "", ""
	}
}

// write prints the unseen suffix of content. Snapshots of one message only
// ever grow, so what is on screen is always a prefix.
func (r *Renderer) write(content string) {
	fmt.Fprint(r.w, strings.TrimPrefix(content, r.printed))
	r.printed = content
}
