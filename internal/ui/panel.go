package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/olivier-w/spectra/internal/spectrum"
	"github.com/sirupsen/logrus"
)

const sliderStep = 0.05

// VolumePaths names the VCAs the pause panel controls.
type VolumePaths struct {
	General string
	Music   string
	Sfx     string
}

type slider struct {
	label string
	path  string
	node  spectrum.Node
	value float64
	bar   progress.Model
}

// pausePanel holds one slider per VCA.
type pausePanel struct {
	open    bool
	focus   int
	sliders []slider
	log     logrus.FieldLogger
	// music state before the panel opened
	wasPaused bool
}

func newPausePanel(m spectrum.Mixer, paths VolumePaths, log logrus.FieldLogger) pausePanel {
	p := pausePanel{log: log}
	for _, s := range []struct{ label, path string }{
		{"General", paths.General},
		{"Music", paths.Music},
		{"Sfx", paths.Sfx},
	} {
		sl := slider{
			label: s.label,
			path:  s.path,
			value: 1,
			bar:   progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		}
		var node spectrum.Node
		err := spectrum.ErrNodeNotFound
		if m != nil {
			node, err = m.Node(s.path)
		}
		if err != nil {
			log.WithError(err).WithField("path", s.path).Warn("VCA not found")
		} else {
			sl.node = node
			if v, err := node.Volume(); err == nil {
				sl.value = v
			} else {
				log.WithError(err).WithField("path", s.path).Warn("reading VCA volume")
			}
		}
		p.sliders = append(p.sliders, sl)
	}
	return p
}

func (p *pausePanel) move(delta int) {
	n := len(p.sliders)
	if n == 0 {
		return
	}
	p.focus = ((p.focus+delta)%n + n) % n
}

// nudge shifts the focused slider and writes it through to its VCA.
func (p *pausePanel) nudge(delta float64) {
	if len(p.sliders) == 0 {
		return
	}
	s := &p.sliders[p.focus]
	s.value = mgl64.Clamp(s.value+delta, 0, 1)
	log := p.log.WithFields(logrus.Fields{"path": s.path, "volume": s.value})
	if s.node == nil {
		log.Warn("volume change dropped, VCA not found")
		return
	}
	if err := s.node.SetVolume(s.value); err != nil {
		log.WithError(err).Warn("setting VCA volume")
		return
	}
	log.Info("volume changed")
}

func (p pausePanel) view(width int) string {
	barWidth := max(width-labelStyle.GetWidth()-12, 10)
	lines := make([]string, 0, len(p.sliders))
	for i, s := range p.sliders {
		label := labelStyle.Render(s.label)
		marker := "  "
		if i == p.focus {
			label = focusLabelStyle.Render(s.label)
			marker = "› "
		}
		s.bar.Width = barWidth
		lines = append(lines, marker+label+" "+s.bar.ViewAs(s.value)+" "+renderPercent(s.value))
	}
	return panelStyle.Render("Paused\n\n" + strings.Join(lines, "\n"))
}
