package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/cbegin/orbitone/internal/lfo"
)

// EngineConfig holds the clock and scheduling settings.
type EngineConfig struct {
	SampleRate          int     `json:"sampleRate" yaml:"sampleRate"`
	LookaheadSec        float64 `json:"lookaheadSec" yaml:"lookaheadSec"`
	TickIntervalSec     float64 `json:"tickIntervalSec" yaml:"tickIntervalSec"`
	StartDelaySec       float64 `json:"startDelaySec" yaml:"startDelaySec"`
	MinRotationSec      float64 `json:"minRotationSec" yaml:"minRotationSec"`
	MaxRotationsPerTick int     `json:"maxRotationsPerTick" yaml:"maxRotationsPerTick"`
	ArcExtent           float64 `json:"arcExtent" yaml:"arcExtent"`
	FieldWidth          float64 `json:"fieldWidth" yaml:"fieldWidth"`
	FieldHeight         float64 `json:"fieldHeight" yaml:"fieldHeight"`
	EventBuffer         int     `json:"eventBuffer" yaml:"eventBuffer"`
}

// SynthConfig shapes every finalized note.
type SynthConfig struct {
	MinFreq            float64 `json:"minFreq" yaml:"minFreq"`
	MaxFreq            float64 `json:"maxFreq" yaml:"maxFreq"`
	PanLimit           float64 `json:"panLimit" yaml:"panLimit"`
	MinDuration        float64 `json:"minDuration" yaml:"minDuration"`
	NoteGain           float64 `json:"noteGain" yaml:"noteGain"`
	Release            float64 `json:"release" yaml:"release"`
	StopMargin         float64 `json:"stopMargin" yaml:"stopMargin"`
	AttackMin          float64 `json:"attackMin" yaml:"attackMin"`
	AttackScale        float64 `json:"attackScale" yaml:"attackScale"`
	AttackMaxFraction  float64 `json:"attackMaxFraction" yaml:"attackMaxFraction"`
	CutoffBase         float64 `json:"cutoffBase" yaml:"cutoffBase"`
	CutoffPanSpread    float64 `json:"cutoffPanSpread" yaml:"cutoffPanSpread"`
	CutoffBrightSpread float64 `json:"cutoffBrightSpread" yaml:"cutoffBrightSpread"`
	CutoffFloorRatio   float64 `json:"cutoffFloorRatio" yaml:"cutoffFloorRatio"`
	CutoffFloorMin     float64 `json:"cutoffFloorMin" yaml:"cutoffFloorMin"`
	MaxCompensation    float64 `json:"maxCompensation" yaml:"maxCompensation"`
	TailDelayMs        float64 `json:"tailDelayMs" yaml:"tailDelayMs"`
	TailFeedback       float64 `json:"tailFeedback" yaml:"tailFeedback"`
	TailSend           float64 `json:"tailSend" yaml:"tailSend"`
	TailFade           float64 `json:"tailFade" yaml:"tailFade"`
	TeardownFade       float64 `json:"teardownFade" yaml:"teardownFade"`
}

// LiveConfig shapes the sustained preview tone.
type LiveConfig struct {
	Gain          float64 `json:"gain" yaml:"gain"`
	Attack        float64 `json:"attack" yaml:"attack"`
	Fade          float64 `json:"fade" yaml:"fade"`
	CleanupMargin float64 `json:"cleanupMargin" yaml:"cleanupMargin"`
	VibratoHz     float64 `json:"vibratoHz" yaml:"vibratoHz"`
	VibratoCents  float64 `json:"vibratoCents" yaml:"vibratoCents"`
	VibratoWave   string  `json:"vibratoWave" yaml:"vibratoWave"` // sine, triangle or square
}

// MasterConfig configures the shared output pipeline.
type MasterConfig struct {
	ThresholdDB float64 `json:"thresholdDB" yaml:"thresholdDB"`
	Ratio       float64 `json:"ratio" yaml:"ratio"`
	AttackMs    float64 `json:"attackMs" yaml:"attackMs"`
	ReleaseMs   float64 `json:"releaseMs" yaml:"releaseMs"`
	Drive       float64 `json:"drive" yaml:"drive"`
	Trim        float64 `json:"trim" yaml:"trim"`
}

// Config is the main configuration structure
type Config struct {
	Engine EngineConfig `json:"engine" yaml:"engine"`
	Synth  SynthConfig  `json:"synth" yaml:"synth"`
	Live   LiveConfig   `json:"live" yaml:"live"`
	Master MasterConfig `json:"master" yaml:"master"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			SampleRate:          48000,
			LookaheadSec:        0.12,
			TickIntervalSec:     0.025,
			StartDelaySec:       0.05,
			MinRotationSec:      0.05,
			MaxRotationsPerTick: 4,
			ArcExtent:           360,
			FieldWidth:          1280,
			FieldHeight:         800,
			EventBuffer:         64,
		},
		Synth: SynthConfig{
			MinFreq:            40,
			MaxFreq:            5000,
			PanLimit:           0.8,
			MinDuration:        0.03,
			NoteGain:           0.22,
			Release:            0.08,
			StopMargin:         0.03,
			AttackMin:          0.004,
			AttackScale:        0.25,
			AttackMaxFraction:  0.3,
			CutoffBase:         300,
			CutoffPanSpread:    400,
			CutoffBrightSpread: 3200,
			CutoffFloorRatio:   0.005,
			CutoffFloorMin:     120,
			MaxCompensation:    2.2,
			TailDelayMs:        90,
			TailFeedback:       0.45,
			TailSend:           0.3,
			TailFade:           0.5,
			TeardownFade:       0.015,
		},
		Live: LiveConfig{
			Gain:          0.16,
			Attack:        0.06,
			Fade:          0.12,
			CleanupMargin: 0.05,
			VibratoHz:     4.5,
			VibratoCents:  6,
			VibratoWave:   "sine",
		},
		Master: MasterConfig{
			ThresholdDB: -10,
			Ratio:       12,
			AttackMs:    2,
			ReleaseMs:   120,
			Drive:       1.2,
			Trim:        0.9,
		},
	}
}

// Dir returns the config directory path
func Dir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "orbitone"), nil
}

// Path returns the full path to config.json
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config at path, or the default location when path is
// empty. A missing file yields the defaults; fields absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return DefaultConfig(), nil
		}
		path = p
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := unmarshal(path, data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, creating its directory.
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		path = p
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := marshal(path, c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// unmarshal picks the format from the file extension; anything that is not
// .yaml or .yml is read as JSON.
func unmarshal(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

func marshal(path string, cfg *Config) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(cfg)
	}
	return json.MarshalIndent(cfg, "", "  ")
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	e := c.Engine
	switch {
	case e.SampleRate <= 0:
		return fmt.Errorf("%w: engine.sampleRate must be positive", ErrInvalid)
	case e.LookaheadSec <= 0:
		return fmt.Errorf("%w: engine.lookaheadSec must be positive", ErrInvalid)
	case e.TickIntervalSec <= 0 || e.TickIntervalSec >= e.LookaheadSec:
		return fmt.Errorf("%w: engine.tickIntervalSec must be positive and shorter than the lookahead", ErrInvalid)
	case e.StartDelaySec < 0:
		return fmt.Errorf("%w: engine.startDelaySec must not be negative", ErrInvalid)
	case e.MaxRotationsPerTick < 1:
		return fmt.Errorf("%w: engine.maxRotationsPerTick must be at least 1", ErrInvalid)
	case e.ArcExtent <= 0:
		return fmt.Errorf("%w: engine.arcExtent must be positive", ErrInvalid)
	case e.FieldWidth <= 0 || e.FieldHeight <= 0:
		return fmt.Errorf("%w: engine field size must be positive", ErrInvalid)
	case e.EventBuffer < 0:
		return fmt.Errorf("%w: engine.eventBuffer must not be negative", ErrInvalid)
	}
	s := c.Synth
	switch {
	case s.MinFreq <= 0 || s.MaxFreq <= s.MinFreq:
		return fmt.Errorf("%w: synth frequency range is empty", ErrInvalid)
	case s.PanLimit < 0 || s.PanLimit > 1:
		return fmt.Errorf("%w: synth.panLimit must be within [0, 1]", ErrInvalid)
	case s.MinDuration <= 0 || s.Release <= 0 || s.StopMargin <= 0:
		return fmt.Errorf("%w: synth durations must be positive", ErrInvalid)
	case s.MaxCompensation < 1:
		return fmt.Errorf("%w: synth.maxCompensation must be at least 1", ErrInvalid)
	case s.TailFeedback < 0 || s.TailFeedback >= 1:
		return fmt.Errorf("%w: synth.tailFeedback must be within [0, 1)", ErrInvalid)
	}
	l := c.Live
	if l.Attack <= 0 || l.Fade <= 0 || l.CleanupMargin <= 0 {
		return fmt.Errorf("%w: live timings must be positive", ErrInvalid)
	}
	if _, ok := lfo.WaveByName(l.VibratoWave); !ok {
		return fmt.Errorf("%w: live.vibratoWave %q is not sine, triangle or square", ErrInvalid, l.VibratoWave)
	}
	m := c.Master
	if m.Ratio < 1 || m.Drive <= 0 || m.Trim <= 0 {
		return fmt.Errorf("%w: master ratio, drive and trim must be positive", ErrInvalid)
	}
	return nil
}
