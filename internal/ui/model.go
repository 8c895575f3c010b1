package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/olivier-w/spectra/internal/player"
	"github.com/olivier-w/spectra/internal/spectrum"
	"github.com/olivier-w/spectra/internal/visualizer"
	"github.com/sirupsen/logrus"
)

// Ticker advances the visualizer by one frame.
type Ticker interface {
	Tick() spectrum.Status
}

// MusicController is the background track the UI drives.
type MusicController interface {
	TogglePause()
	SetPaused(paused bool)
	Paused() bool
	Position() time.Duration
	Duration() time.Duration
	Metadata() player.Metadata
}

// SFXPlayer plays a one-shot sound.
type SFXPlayer interface {
	Play() error
}

// Options configures the Model.
type Options struct {
	FPS         int
	ScopeHeight int
	Volumes     VolumePaths
	// Icons are the two header glyphs toggled with i.
	Icons [2]string
}

// Model is the Bubbletea model for the spectra TUI.
type Model struct {
	renderer Ticker
	scope    *visualizer.Scope
	music    MusicController
	sfx      SFXPlayer
	log      logrus.FieldLogger
	opts     Options

	panel    pausePanel
	status   spectrum.Status
	elapsed  time.Duration
	iconAlt  bool
	sfxErr   error
	width    int
	height   int
	quitting bool
}

// New wires the UI to a running renderer. mixer is used only to look up
// the pause panel VCAs.
func New(r Ticker, scope *visualizer.Scope, music MusicController, sfx SFXPlayer, mixer spectrum.Mixer, opts Options, log logrus.FieldLogger) Model {
	if opts.ScopeHeight <= 0 {
		opts.ScopeHeight = 8
	}
	if opts.Icons == ([2]string{}) {
		opts.Icons = [2]string{"♪", "♫"}
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	log = log.WithField("component", "ui")
	return Model{
		renderer: r,
		scope:    scope,
		music:    music,
		sfx:      sfx,
		log:      log,
		opts:     opts,
		panel:    newPausePanel(mixer, opts.Volumes, log),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(frameCmd(m.opts.FPS), tea.SetWindowTitle(windowTitle(m.title(), false)))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m.handleMsg(msg)
}

func (m Model) handleMsg(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case frameMsg:
		prev := m.status
		m.status = m.renderer.Tick()
		if m.status != prev {
			m.log.WithField("status", m.status).Debug("visualizer status changed")
		}
		if m.music != nil {
			m.elapsed = m.music.Position()
		}
		return m, frameCmd(m.opts.FPS)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if isQuit(msg) {
		m.quitting = true
		return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)
	}
	if isPanelToggle(msg) {
		return m.togglePanel()
	}

	if m.panel.open {
		switch msg.String() {
		case "tab", "down", "j":
			m.panel.move(1)
		case "shift+tab", "up", "k":
			m.panel.move(-1)
		case "left", "h":
			m.panel.nudge(-sliderStep)
		case "right", "l":
			m.panel.nudge(sliderStep)
		case "f":
			m.playSFX()
		}
		return m, nil
	}

	switch msg.String() {
	case " ":
		if m.music == nil {
			return m, nil
		}
		m.music.TogglePause()
		return m, tea.SetWindowTitle(windowTitle(m.title(), m.music.Paused()))
	case "f":
		m.playSFX()
	case "i":
		m.iconAlt = !m.iconAlt
	}
	return m, nil
}

// togglePanel opens the pause panel, pausing music and hiding the scope,
// or closes it and restores both.
func (m Model) togglePanel() (Model, tea.Cmd) {
	m.panel.open = !m.panel.open
	if m.scope != nil {
		m.scope.SetHidden(m.panel.open)
	}
	if m.music == nil {
		return m, nil
	}
	if m.panel.open {
		m.panel.wasPaused = m.music.Paused()
		m.music.SetPaused(true)
	} else {
		m.music.SetPaused(m.panel.wasPaused)
	}
	m.log.WithField("open", m.panel.open).Debug("pause panel toggled")
	return m, tea.SetWindowTitle(windowTitle(m.title(), m.music.Paused()))
}

func (m *Model) playSFX() {
	if m.sfx == nil {
		return
	}
	m.sfxErr = m.sfx.Play()
	if m.sfxErr != nil {
		m.log.WithError(m.sfxErr).Warn("playing sfx")
	}
}

func (m Model) title() string {
	if m.music == nil {
		return ""
	}
	return m.music.Metadata().Title
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	w := m.width
	if w < 30 {
		w = 60
	}
	inner := w - 4

	var b strings.Builder
	b.WriteString("\n")
	icon := m.opts.Icons[0]
	if m.iconAlt {
		icon = m.opts.Icons[1]
	}
	b.WriteString("  " + headerStyle.Render("spectra") + " " + icon + "\n\n")

	if m.music != nil {
		meta := m.music.Metadata()
		b.WriteString("  " + titleStyle.Render(meta.Title) + "\n")
		if by := meta.Byline(); by != "" {
			b.WriteString("  " + artistStyle.Render(by) + "\n")
		}
		b.WriteString("\n")
	}

	if m.panel.open {
		for _, line := range strings.Split(m.panel.view(inner), "\n") {
			b.WriteString("  " + line + "\n")
		}
	} else if m.scope != nil {
		style := scopeStyle
		if m.status == spectrum.StatusFault || m.status == spectrum.StatusMalformed {
			style = faultStyle
		}
		for _, line := range strings.Split(m.scope.View(inner, m.opts.ScopeHeight), "\n") {
			b.WriteString("  " + style.Render(line) + "\n")
		}
	}
	b.WriteString("\n")

	if m.music != nil {
		elapsed, total := formatDuration(m.elapsed), formatDuration(m.music.Duration())
		bar := renderProgressBar(m.elapsed.Seconds(), m.music.Duration().Seconds(), inner-len(elapsed)-len(total)-2)
		b.WriteString(fmt.Sprintf("  %s %s %s\n\n", timeStyle.Render(elapsed), bar, timeStyle.Render(total)))
	}

	b.WriteString("  " + statusStyle.Render(m.statusLine(inner)) + "\n")
	if m.sfxErr != nil {
		b.WriteString("  " + faultStyle.Render(fmt.Sprintf("sfx: %v", m.sfxErr)) + "\n")
	}
	b.WriteString("\n  " + helpStyle.Render(helpText(m.panel.open)) + "\n")
	return b.String()
}

func (m Model) statusLine(width int) string {
	left := "▶  playing"
	if m.music == nil {
		left = "■  no music"
	} else if m.music.Paused() {
		left = "❚❚ paused"
	}
	right := "viz " + m.status.String()
	return left + spaces(width-len([]rune(left))-len(right)) + right
}

func windowTitle(title string, paused bool) string {
	if title == "" {
		return "spectra"
	}
	if paused {
		return "⏸ " + title + " · spectra"
	}
	return "▶ " + title + " · spectra"
}
