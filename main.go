package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/olivier-w/spectra/internal/config"
	"github.com/olivier-w/spectra/internal/logging"
	"github.com/olivier-w/spectra/internal/player"
	"github.com/olivier-w/spectra/internal/spectrum"
	"github.com/olivier-w/spectra/internal/ui"
	"github.com/olivier-w/spectra/internal/visualizer"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log, closeLog, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	if cfg.Music != "" {
		if err := checkMediaFile(cfg.Music); err != nil {
			return err
		}
	}

	g, err := buildGraph(cfg, log)
	if err != nil {
		return err
	}

	out, err := player.NewOutput(g)
	if err != nil {
		return fmt.Errorf("opening audio output: %w", err)
	}
	defer out.Close()

	var music ui.MusicController
	if cfg.Music != "" {
		m, err := player.OpenMusic(cfg.Music, g, musicBus)
		if err != nil {
			return fmt.Errorf("opening music: %w", err)
		}
		defer m.Close()
		music = m
		log.WithField("title", m.Metadata().Title).Info("music started")
	}

	sfx, err := loadSFX(cfg, g)
	if err != nil {
		return err
	}

	anchor := spectrum.Fixed(cfg.Pose.SpectrumPose())
	scope := visualizer.NewScope(visualizer.Bounds{}, cfg.FPS)
	r, err := spectrum.New(cfg.Renderer(), g, scope, anchor, log)
	if err != nil {
		return err
	}
	lo, hi := r.Bounds()
	scope.SetBounds(visualizer.Bounds{MinX: lo[0], MaxX: hi[0], MinY: lo[1], MaxY: hi[1]})

	if err := r.Attach(); err != nil {
		log.WithError(err).Error("visualizer disabled")
	}
	defer r.Detach()

	model := ui.New(r, scope, music, sfx, g, ui.Options{
		FPS:         cfg.FPS,
		ScopeHeight: cfg.ScopeHeight,
		Volumes: ui.VolumePaths{
			General: cfg.Volumes.General,
			Music:   cfg.Volumes.Music,
			Sfx:     cfg.Volumes.Sfx,
		},
	}, log)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return err
	}
	log.Info("exiting")
	return nil
}
