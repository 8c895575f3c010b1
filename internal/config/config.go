// Package config loads runtime settings from defaults, an optional config
// file, SPECTRA_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/olivier-w/spectra/internal/spectrum"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrHelp is returned by Load when -h or --help was given.
var ErrHelp = pflag.ErrHelp

// Config holds every runtime setting.
type Config struct {
	// Visualizer
	AnalysisPath string  `mapstructure:"analysis_path"`
	VolumePath   string  `mapstructure:"volume_path"`
	WindowSize   int     `mapstructure:"window_size"`
	Width        float64 `mapstructure:"width"`
	Height       float64 `mapstructure:"height"`
	Pose         Pose    `mapstructure:"pose"`

	// Audio
	Music      string  `mapstructure:"music"`
	SFX        string  `mapstructure:"sfx"`
	SampleRate int     `mapstructure:"sample_rate"`
	Volumes    Volumes `mapstructure:"volumes"`

	// Terminal
	FPS         int `mapstructure:"fps"`
	ScopeHeight int `mapstructure:"scope_height"`

	LogFile  string `mapstructure:"log_file"`
	LogLevel string `mapstructure:"log_level"`
}

// Pose places the plot in world space. Angles are in degrees.
type Pose struct {
	X, Y, Z          float64
	Yaw, Pitch, Roll float64
	ScaleX           float64 `mapstructure:"scale_x"`
	ScaleY           float64 `mapstructure:"scale_y"`
	ScaleZ           float64 `mapstructure:"scale_z"`
}

// Volumes names the VCAs exposed in the pause panel.
type Volumes struct {
	General string
	Music   string
	Sfx     string
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		AnalysisPath: "vca:/General",
		WindowSize:   1024,
		Width:        -20,
		Height:       0.2,
		Pose:         Pose{ScaleX: 1, ScaleY: 1, ScaleZ: 1},
		SampleRate:   48000,
		Volumes: Volumes{
			General: "vca:/General",
			Music:   "vca:/Music",
			Sfx:     "vca:/Sfx",
		},
		FPS:         30,
		ScopeHeight: 10,
		LogFile:     "spectra.log",
		LogLevel:    "info",
	}
}

// Load resolves the configuration for args (without the program name). A
// single positional argument names the music file.
func Load(args []string) (*Config, error) {
	d := Default()
	v := viper.New()
	setDefaults(v, d)

	fs := pflag.NewFlagSet("spectra", pflag.ContinueOnError)
	cfgFile := fs.StringP("config", "c", "", "config file (yaml, toml or json)")
	fs.String("music", d.Music, "background music file")
	fs.String("sfx", d.SFX, "sound effect file (default: synthesized chime)")
	fs.String("analysis-path", d.AnalysisPath, "mixer node to analyse")
	fs.String("volume-path", d.VolumePath, "mixer node whose volume gates the plot")
	fs.Int("window-size", d.WindowSize, "number of spectrum bins drawn")
	fs.Float64("width", d.Width, "plot width in world units")
	fs.Float64("height", d.Height, "plot height multiplier")
	fs.Int("fps", d.FPS, "frames per second")
	fs.Int("scope-height", d.ScopeHeight, "visualizer height in terminal rows")
	fs.String("log-file", d.LogFile, "log file, empty to discard")
	fs.String("log-level", d.LogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	for key, flag := range map[string]string{
		"music":         "music",
		"sfx":           "sfx",
		"analysis_path": "analysis-path",
		"volume_path":   "volume-path",
		"window_size":   "window-size",
		"width":         "width",
		"height":        "height",
		"fps":           "fps",
		"scope_height":  "scope-height",
		"log_file":      "log-file",
		"log_level":     "log-level",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	if rest := fs.Args(); len(rest) > 0 {
		v.Set("music", rest[0])
	}

	v.SetEnvPrefix("SPECTRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if *cfgFile != "" {
		v.SetConfigFile(*cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", *cfgFile, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("analysis_path", d.AnalysisPath)
	v.SetDefault("volume_path", d.VolumePath)
	v.SetDefault("window_size", d.WindowSize)
	v.SetDefault("width", d.Width)
	v.SetDefault("height", d.Height)
	v.SetDefault("pose.x", d.Pose.X)
	v.SetDefault("pose.y", d.Pose.Y)
	v.SetDefault("pose.z", d.Pose.Z)
	v.SetDefault("pose.yaw", d.Pose.Yaw)
	v.SetDefault("pose.pitch", d.Pose.Pitch)
	v.SetDefault("pose.roll", d.Pose.Roll)
	v.SetDefault("pose.scale_x", d.Pose.ScaleX)
	v.SetDefault("pose.scale_y", d.Pose.ScaleY)
	v.SetDefault("pose.scale_z", d.Pose.ScaleZ)
	v.SetDefault("music", d.Music)
	v.SetDefault("sfx", d.SFX)
	v.SetDefault("sample_rate", d.SampleRate)
	v.SetDefault("volumes.general", d.Volumes.General)
	v.SetDefault("volumes.music", d.Volumes.Music)
	v.SetDefault("volumes.sfx", d.Volumes.Sfx)
	v.SetDefault("fps", d.FPS)
	v.SetDefault("scope_height", d.ScopeHeight)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("log_level", d.LogLevel)
}

// Validate reports every setting that cannot be used.
func (c *Config) Validate() error {
	var errs []error
	if c.AnalysisPath == "" {
		errs = append(errs, errors.New("analysis_path must not be empty"))
	}
	if c.WindowSize <= 0 {
		errs = append(errs, fmt.Errorf("window_size must be positive, got %d", c.WindowSize))
	}
	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", c.FPS))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate))
	}
	if c.ScopeHeight <= 0 {
		errs = append(errs, fmt.Errorf("scope_height must be positive, got %d", c.ScopeHeight))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// Renderer returns the renderer settings.
func (c *Config) Renderer() spectrum.Config {
	return spectrum.Config{
		AnalysisPath: c.AnalysisPath,
		VolumePath:   c.VolumePath,
		WindowSize:   c.WindowSize,
		Width:        c.Width,
		Height:       c.Height,
	}
}

// SpectrumPose converts the configured pose to world space.
func (p Pose) SpectrumPose() spectrum.Pose {
	return spectrum.Pose{
		Position: mgl64.Vec3{p.X, p.Y, p.Z},
		Rotation: mgl64.AnglesToQuat(
			mgl64.DegToRad(p.Yaw),
			mgl64.DegToRad(p.Pitch),
			mgl64.DegToRad(p.Roll),
			mgl64.YXZ,
		),
		Scale: mgl64.Vec3{p.ScaleX, p.ScaleY, p.ScaleZ},
	}
}
