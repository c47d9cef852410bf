package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/audiolibrelab/tapedeck/internal/audio"
	"github.com/audiolibrelab/tapedeck/internal/play"
	"github.com/audiolibrelab/tapedeck/internal/tape"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	counterStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	recordingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5F87"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	normalStyle = lipgloss.NewStyle()

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#777777"))

	editStyle = lipgloss.NewStyle().
			Underline(true)

	promptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF5F87")).
			Padding(0, 1)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))

	deckStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#555555")).
			Padding(0, 1)
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("tapedeck"))
	b.WriteString("\n\n")
	b.WriteString(deckStyle.Render(m.deckLine()))
	b.WriteString("\n\n")
	b.WriteString(m.listView())

	if id := m.snap.PendingDelete; id != "" {
		b.WriteString("\n")
		b.WriteString(promptStyle.Render(fmt.Sprintf("Delete %q? y to confirm, any other key keeps it", m.nameOf(id))))
		b.WriteString("\n")
	}

	if notice := m.notice(); notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(keys))
	return b.String()
}

func (m Model) deckLine() string {
	counter := counterStyle.Render(m.snap.ElapsedDisplay)

	switch {
	case m.snap.Status == audio.StatusRecording:
		return recordingStyle.Render("● REC") + counter
	case m.snap.Status == audio.StatusOpening:
		return mutedStyle.Render("… opening microphone")
	case m.snap.Playback == play.StatePlaying:
		pos := time.Duration(m.snap.Position * float64(time.Second))
		return "▶ " + m.nameOf(m.snap.Loaded) + counterStyle.Render(audio.FormatElapsed(int(pos/time.Second)))
	default:
		return "■" + counter
	}
}

func (m Model) listView() string {
	if len(m.snap.Recordings) == 0 {
		return mutedStyle.Render("No recordings yet. Press r to record.")
	}

	var b strings.Builder
	for _, rec := range m.snap.Recordings {
		selected := rec.ID == m.snap.Selected
		cursor := "  "
		style := normalStyle
		if selected {
			cursor = "> "
			style = selectedStyle
		}

		name := m.fieldView(rec, tape.FieldName, style)
		date := m.fieldView(rec, tape.FieldDate, mutedStyle)
		clock := m.fieldView(rec, tape.FieldTime, mutedStyle)
		length := mutedStyle.Render(audio.FormatElapsed(int(rec.Duration / time.Second)))

		fmt.Fprintf(&b, "%s%s  %s %s  %s\n", cursor, name, date, clock, length)
	}
	return b.String()
}

// fieldView swaps in the text input for the field being edited.
func (m Model) fieldView(rec tape.Recording, field tape.Field, style lipgloss.Style) string {
	if m.editing && m.snap.Editing != nil && m.snap.Editing.ID == rec.ID && m.snap.Editing.Field == field {
		return editStyle.Render(m.input.View())
	}
	value, _ := rec.Value(field)
	return style.Render(value)
}

func (m Model) nameOf(id string) string {
	for _, r := range m.snap.Recordings {
		if r.ID == id {
			return r.Name
		}
	}
	return ""
}

func (m Model) notice() string {
	if m.snap.Notice != "" {
		return m.snap.Notice
	}
	if m.err != nil {
		return m.err.Error()
	}
	return ""
}
