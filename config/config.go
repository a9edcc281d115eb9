// Package config loads moodscan.yaml. Every field has a default so a missing
// file is not an error.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const EnvPath = "MOODSCAN_CONFIG"

type Voice struct {
	Language         string        `yaml:"language"`
	SampleRate       int           `yaml:"sample_rate"`
	FFTSize          int           `yaml:"fft_size"`
	FrameInterval    time.Duration `yaml:"frame_interval"`
	History          int           `yaml:"history"`
	Confidence       float64       `yaml:"confidence"`
	NoSpeechRetry    time.Duration `yaml:"no_speech_retry"`
	EchoCancellation bool          `yaml:"echo_cancellation"`
	NoiseSuppression bool          `yaml:"noise_suppression"`
	AutoGainControl  bool          `yaml:"auto_gain"`
	Device           string        `yaml:"device"`
	SilenceWindow    time.Duration `yaml:"silence_window"`
	SilenceLevel     float64       `yaml:"silence_level"`
}

type Face struct {
	Interval            time.Duration `yaml:"interval"`
	Width               int           `yaml:"width"`
	Height              int           `yaml:"height"`
	Facing              string        `yaml:"facing"`
	History             int           `yaml:"history"`
	TickConfidence      float64       `yaml:"tick_confidence"`
	ModelSource         string        `yaml:"model_source"`
	FallbackModelSource string        `yaml:"fallback_model_source"`
	DetectTimeout       time.Duration `yaml:"detect_timeout"`
}

type Log struct {
	Path string `yaml:"path"`
}

type Metrics struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Voice   Voice   `yaml:"voice"`
	Face    Face    `yaml:"face"`
	Log     Log     `yaml:"log"`
	Metrics Metrics `yaml:"metrics"`
}

func Default() Config {
	return Config{
		Voice: Voice{
			Language:         "es-ES",
			SampleRate:       44100,
			FFTSize:          2048,
			FrameInterval:    16 * time.Millisecond,
			History:          100,
			Confidence:       0.85,
			NoSpeechRetry:    time.Second,
			EchoCancellation: true,
			NoiseSuppression: true,
			AutoGainControl:  true,
			SilenceWindow:    3 * time.Second,
			SilenceLevel:     0.02,
		},
		Face: Face{
			Interval:            500 * time.Millisecond,
			Width:               640,
			Height:              480,
			Facing:              "user",
			History:             10,
			TickConfidence:      0.8,
			ModelSource:         "http://127.0.0.1:8085",
			FallbackModelSource: "http://127.0.0.1:8086",
			DetectTimeout:       2 * time.Second,
		},
	}
}

// Load reads path over the defaults. An empty path falls back to
// MOODSCAN_CONFIG; a path that does not exist yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Voice.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("voice.sample_rate must be positive"))
	}
	if n := c.Voice.FFTSize; n < 32 || n > 32768 || n&(n-1) != 0 {
		errs = append(errs, fmt.Errorf("voice.fft_size %d must be a power of two in [32, 32768]", n))
	}
	if c.Voice.FrameInterval <= 0 || c.Face.Interval <= 0 {
		errs = append(errs, fmt.Errorf("tick intervals must be positive"))
	}
	if c.Voice.History <= 0 || c.Face.History <= 0 {
		errs = append(errs, fmt.Errorf("history caps must be positive"))
	}
	for name, v := range map[string]float64{
		"voice.confidence":     c.Voice.Confidence,
		"face.tick_confidence": c.Face.TickConfidence,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s %.2f outside [0, 1]", name, v))
		}
	}
	return errors.Join(errs...)
}
