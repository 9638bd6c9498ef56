// Package tui renders live download progress with bubbletea.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pagegrab/pagegrab/internal/engine"
	"github.com/pagegrab/pagegrab/internal/models"
)

// Messages
type (
	eventMsg engine.Event
	tickMsg  time.Time
	DoneMsg  struct{ Err error }
)

// Model is the main TUI model. It consumes the tracker's event stream and
// mirrors the task's stage, progress and segment counts on screen.
type Model struct {
	url    string
	events <-chan engine.Event
	cancel func()

	width  int
	height int
	frame  int

	stage     models.Stage
	progress  int
	message   string
	segment   int
	total     int
	size      int64
	startTime time.Time
	err       error
}

// NewModel creates a TUI model for one download. cancel is invoked when the
// user aborts; it may be nil.
func NewModel(url string, events <-chan engine.Event, cancel func()) *Model {
	return &Model{
		url:       url,
		events:    events,
		cancel:    cancel,
		stage:     models.StageParsing,
		startTime: time.Now(),
		width:     80,
		height:    24,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.listen(), tick())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case eventMsg:
		m.stage = msg.Stage
		m.progress = msg.Progress
		m.message = msg.Message
		m.segment = msg.Segment
		m.total = msg.TotalSegments
		if msg.Size > 0 {
			m.size = msg.Size
		}
		if m.stage == models.StageError {
			m.err = fmt.Errorf("%s", msg.Message)
		}
		if m.stage.Terminal() {
			return m, tea.Quit
		}
		return m, m.listen()

	case tickMsg:
		m.frame++
		return m, tick()

	case DoneMsg:
		if msg.Err != nil && m.err == nil {
			m.err = msg.Err
			m.stage = models.StageError
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) View() string {
	w := clamp(m.width-4, 60, 100)

	var b strings.Builder
	b.WriteString(m.viewHeader(w))
	b.WriteString("\n\n")
	b.WriteString(m.viewContent(w))

	return b.String()
}

func (m *Model) viewHeader(w int) string {
	title := titleStyle.Render("⚡ pagegrab")
	subtitle := dimStyle.Render(" - Page Video Downloader")

	urlLabel := labelStyle.Render("url:")
	urlValue := valueStyle.Render(truncate(m.url, w-12))

	return headerStyle.Width(w).Render(title + subtitle + "\n" + urlLabel + " " + urlValue)
}

func (m *Model) viewContent(w int) string {
	var b strings.Builder

	b.WriteString(m.renderProgress(w - 6))
	b.WriteString("\n\n")
	b.WriteString(m.renderStats())
	b.WriteString("\n\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.renderHelp())

	return contentStyle.Width(w).Render(b.String())
}

func (m *Model) renderProgress(w int) string {
	barWidth := clamp(w-20, 20, 80)
	filled := clamp(m.progress*barWidth/100, 0, barWidth)
	empty := barWidth - filled

	bar := progressActive.Render(strings.Repeat("█", filled)) +
		progressWait.Render(strings.Repeat("░", empty))

	out := bar + " " + statValueStyle.Render(fmt.Sprintf("%3d%%", m.progress))
	if m.total > 0 {
		out += dimStyle.Render(fmt.Sprintf(" (%d/%d segments)", m.segment, m.total))
	}
	return out
}

func (m *Model) renderStats() string {
	stats := []struct {
		label string
		value string
	}{
		{"Stage", m.stage.String()},
		{"Elapsed", formatDuration(time.Since(m.startTime))},
	}
	if m.size > 0 {
		stats = append(stats, struct{ label, value string }{"Size", formatBytes(m.size)})
	}

	var parts []string
	for _, s := range stats {
		parts = append(parts, statLabelStyle.Render(s.label+": ")+statValueStyle.Render(s.value))
	}
	return strings.Join(parts, "  ")
}

func (m *Model) renderStatus() string {
	switch m.stage {
	case models.StageCompleted:
		return successStyle.Render("✓ download complete!")
	case models.StageError:
		return errorStyle.Render(fmt.Sprintf("✗ error: %v", m.err))
	case models.StageCancelled:
		return warningStyle.Render("✗ cancelled")
	case models.StageMerging:
		return spinnerStyle.Render(spinner[m.frame%len(spinner)]) + warningStyle.Render(" "+m.message)
	default:
		msg := m.message
		if msg == "" {
			msg = m.stage.String() + "..."
		}
		return spinnerStyle.Render(spinner[m.frame%len(spinner)]) + dimStyle.Render(" "+msg)
	}
}

func (m *Model) renderHelp() string {
	return helpStyle.Render(
		keyHelpStyle.Render("q") + " quit  " +
			keyHelpStyle.Render("ctrl+c") + " cancel",
	)
}

func (m *Model) listen() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return DoneMsg{}
		}
		return eventMsg(ev)
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Helpers

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	min := d / time.Minute
	d -= min * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, min, s)
	}
	if min > 0 {
		return fmt.Sprintf("%dm%02ds", min, s)
	}
	return fmt.Sprintf("%ds", s)
}
