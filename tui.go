package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hark/hotkey"
	"hark/session"
)

// TUI message types
type SnapshotMsg struct{ Snapshot session.Snapshot }
type AudioLevelMsg struct{ Level float64 }
type copiedMsg struct{ err error }
type tickMsg time.Time

const (
	meterWidth   = 24
	noVoiceAfter = time.Second
	noVoiceLevel = 0.02
)

var (
	statusStyles = map[session.State]lipgloss.Style{
		session.Idle:         lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		session.Recording:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		session.Transcribing: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		session.Done:         lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		session.Failed:       lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true),
	}
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	copiedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	meterOnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
)

type tuiModel struct {
	snap   session.Snapshot
	handle func(session.Event)
	copy   func(string) error

	recStart      time.Time
	now           time.Time
	level, peak   float64
	width, height int
	count         int
	modeLine      string // "openai · gpt-4o-transcribe · en"
	deviceLine    string
	hotkeyLine    string
	copied        bool
	copyErr       error
}

func newTUIModel(handle func(session.Event), copyFn func(string) error) tuiModel {
	return tuiModel{
		snap:   session.Snapshot{State: session.Idle, Status: session.StatusIdle},
		handle: handle,
		copy:   copyFn,
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

// dispatch hands ev to the controller off the UI goroutine. Results come
// back as SnapshotMsg.
func (m tuiModel) dispatch(ev session.Event) tea.Cmd {
	handle := m.handle
	return func() tea.Msg {
		if handle != nil {
			handle(ev)
		}
		return nil
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ":
			if m.snap.State == session.Recording {
				return m, m.dispatch(session.Release)
			}
			// rejected by the controller while transcribing
			return m, m.dispatch(session.Press)
		case "c":
			text := m.snap.Text
			copyFn := m.copy
			return m, func() tea.Msg {
				if copyFn == nil {
					return copiedMsg{err: fmt.Errorf("clipboard not available")}
				}
				return copiedMsg{err: copyFn(text)}
			}
		}

	case tickMsg:
		m.now = time.Time(msg)
		return m, tuiTick()

	case SnapshotMsg:
		prev := m.snap.State
		m.snap = msg.Snapshot
		switch m.snap.State {
		case session.Recording:
			if prev != session.Recording {
				m.recStart = time.Now()
				m.now = m.recStart
				m.level, m.peak = 0, 0
			}
		case session.Done:
			m.count++
			m.copied, m.copyErr = false, nil
		default:
			m.level = 0
		}

	case AudioLevelMsg:
		if m.snap.State == session.Recording {
			m.level = m.level*0.6 + msg.Level*0.4
			m.peak = max(m.peak, msg.Level)
		}

	case copiedMsg:
		m.copied = msg.err == nil
		m.copyErr = msg.err
	}
	return m, nil
}

func (m tuiModel) recording() time.Duration {
	if m.snap.State != session.Recording || m.recStart.IsZero() {
		return 0
	}
	return m.now.Sub(m.recStart)
}

func (m tuiModel) statusLine() string {
	style := statusStyles[m.snap.State]
	switch m.snap.State {
	case session.Recording:
		return style.Render(fmt.Sprintf("● REC %.1fs", m.recording().Seconds()))
	case session.Transcribing:
		return style.Render("◌ " + m.snap.Status)
	case session.Failed:
		return style.Render("✗ " + m.snap.Status)
	case session.Done:
		return style.Render("✓ " + m.snap.Status)
	}
	return style.Render("○ " + m.snap.Status)
}

func renderMeter(level float64) string {
	n := int(level * 10 * meterWidth)
	n = min(max(n, 0), meterWidth)
	return meterOnStyle.Render(strings.Repeat("▮", n)) + dimStyle.Render(strings.Repeat("▯", meterWidth-n))
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var lines []string
	lines = append(lines, m.statusLine())
	if m.snap.State == session.Recording {
		lines = append(lines, renderMeter(m.level))
		if m.recording() > noVoiceAfter && m.peak < noVoiceLevel {
			lines = append(lines, warnStyle.Render("⚠ no voice detected"))
		}
	}
	for _, l := range []string{m.modeLine, m.deviceLine} {
		if l != "" {
			lines = append(lines, dimStyle.Render(l))
		}
	}
	lines = append(lines, "")

	panelWidth := max(m.width-4, 20)
	wrapWidth := max(panelWidth-4, 10)

	var body strings.Builder
	if m.snap.Text != "" {
		body.WriteString(dimStyle.Render(fmt.Sprintf("Last transcription (#%d)", m.count)) + "\n\n")
		wrapped := wrapText(m.snap.Text, wrapWidth)
		for i, line := range wrapped {
			body.WriteString(textStyle.Render(line))
			if i == len(wrapped)-1 {
				switch {
				case m.copied:
					body.WriteString(" " + copiedStyle.Render("[✓ copied]"))
				case m.copyErr != nil:
					body.WriteString(" " + warnStyle.Render("[copy failed: "+m.copyErr.Error()+"]"))
				}
			}
			if i < len(wrapped)-1 {
				body.WriteString("\n")
			}
		}
	} else {
		body.WriteString(dimStyle.Render("No transcriptions yet"))
	}
	lines = append(lines, panelStyle.Width(panelWidth).Render(body.String()), "")

	help := keyStyle.Render("space") + helpStyle.Render(" talk  ")
	if m.hotkeyLine != "" {
		help += keyStyle.Render(m.hotkeyLine) + helpStyle.Render(" hold  ")
	}
	help += keyStyle.Render("c") + helpStyle.Render(" copy  ") +
		keyStyle.Render("q") + helpStyle.Render(" quit")
	lines = append(lines, help, helpStyle.Render("hark "+version))

	return strings.Join(lines, "\n")
}

func hotkeyHelp(registered bool) string {
	if registered {
		return hotkey.Label
	}
	return ""
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len([]rune(line))+1+len([]rune(w)) > width {
				lines = append(lines, line)
				line = w
				continue
			}
			line += " " + w
		}
		lines = append(lines, line)
	}
	return lines
}
