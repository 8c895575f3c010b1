package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/olivier-w/spectra/internal/config"
	"github.com/olivier-w/spectra/internal/mixer"
	"github.com/olivier-w/spectra/internal/player"
	"github.com/sirupsen/logrus"
)

const (
	musicBus = "bus:/Music"
	sfxBus   = "bus:/Sfx"
)

// buildGraph lays out the mixer: Music and Sfx buses under master, one VCA
// per bus plus a General VCA over both.
func buildGraph(cfg *config.Config, log logrus.FieldLogger) (*mixer.Graph, error) {
	g := mixer.New(cfg.SampleRate, log)
	for _, name := range []string{"Music", "Sfx"} {
		if _, err := g.AddBus(name); err != nil {
			return nil, err
		}
	}
	vcas := []struct {
		path  string
		buses []string
	}{
		{cfg.Volumes.General, []string{musicBus, sfxBus}},
		{cfg.Volumes.Music, []string{musicBus}},
		{cfg.Volumes.Sfx, []string{sfxBus}},
	}
	for _, v := range vcas {
		name, ok := strings.CutPrefix(v.path, "vca:/")
		if !ok || name == "" {
			log.WithField("path", v.path).Warn("skipping VCA with unusable path")
			continue
		}
		if _, err := g.AddVCA(name, v.buses...); err != nil {
			return nil, fmt.Errorf("adding VCA %s: %w", v.path, err)
		}
	}
	return g, nil
}

func loadSFX(cfg *config.Config, g *mixer.Graph) (*player.SFX, error) {
	if cfg.SFX == "" {
		return player.Chime(g, sfxBus), nil
	}
	if err := checkMediaFile(cfg.SFX); err != nil {
		return nil, err
	}
	s, err := player.LoadSFX(cfg.SFX, g, sfxBus)
	if err != nil {
		return nil, fmt.Errorf("loading sfx: %w", err)
	}
	return s, nil
}

func checkMediaFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if ext := strings.ToLower(filepath.Ext(path)); !player.IsSupportedExt(ext) {
		return fmt.Errorf("unsupported format %s (supported: .mp3, .wav, .flac, .ogg)", ext)
	}
	return nil
}
