// Package config loads runtime configuration from CLOSESTBODY_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ayusman/closestbody/internal/analysis"
)

// Prefix is prepended to every environment variable name.
const Prefix = "CLOSESTBODY_"

// Config is the full runtime configuration.
type Config struct {
	Analysis AnalysisConfig `envPrefix:"ANALYSIS_"`
	Camera   CameraConfig   `envPrefix:"CAMERA_"`
	Stream   StreamConfig   `envPrefix:"STREAM_"`
	HTTP     HTTPConfig     `envPrefix:"HTTP_"`
	Store    StoreConfig    `envPrefix:"STORE_"`
	Detector DetectorConfig `envPrefix:"DETECTOR_"`
	Output   OutputConfig   `envPrefix:"OUTPUT_"`
	Tray     TrayConfig     `envPrefix:"TRAY_"`
	Log      LogConfig      `envPrefix:"LOG_"`
}

// AnalysisConfig holds the region and engagement parameters.
type AnalysisConfig struct {
	HandWidth             int     `env:"HAND_WIDTH" envDefault:"64"`
	HandHeight            int     `env:"HAND_HEIGHT" envDefault:"64"`
	HeadWidth             int     `env:"HEAD_WIDTH" envDefault:"64"`
	HeadHeight            int     `env:"HEAD_HEIGHT" envDefault:"64"`
	PalmRatio             float64 `env:"PALM_RATIO" envDefault:"0.5"`
	ForearmThreshold      float64 `env:"FOREARM_THRESHOLD" envDefault:"10"`
	CalibrationLimbLength float64 `env:"CALIBRATION_LIMB_LENGTH" envDefault:"51"`
	Tolerance             float64 `env:"TOLERANCE" envDefault:"0.45"`
}

// CameraConfig selects the capture device and resolution.
type CameraConfig struct {
	DeviceID int `env:"DEVICE_ID" envDefault:"0"`
	Width    int `env:"WIDTH" envDefault:"320"`
	Height   int `env:"HEIGHT" envDefault:"240"`
	FPS      int `env:"FPS" envDefault:"15"`
}

// StreamConfig configures the binary TCP stream server.
type StreamConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Addr    string `env:"ADDR" envDefault:":9009"`
}

// HTTPConfig configures the web preview server.
type HTTPConfig struct {
	Enabled   bool   `env:"ENABLED" envDefault:"true"`
	Addr      string `env:"ADDR" envDefault:":8080"`
	StaticDir string `env:"STATIC_DIR"`
}

// StoreConfig configures frame recording.
type StoreConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"false"`
	Path    string `env:"PATH" envDefault:"closestbody.db"`
}

// DetectorConfig configures the pose service subprocess.
type DetectorConfig struct {
	Mock          bool          `env:"MOCK" envDefault:"false"`
	ScriptPath    string        `env:"SCRIPT_PATH"`
	PythonPath    string        `env:"PYTHON_PATH"`
	IdleTimeout   time.Duration `env:"IDLE_TIMEOUT" envDefault:"30s"`
	MinConfidence float64       `env:"MIN_CONFIDENCE" envDefault:"0.05"`
}

// OutputConfig controls the text block dump on stdout.
type OutputConfig struct {
	Text bool `env:"TEXT" envDefault:"false"`
}

// TrayConfig controls the system tray icon.
type TrayConfig struct {
	Enabled bool `env:"ENABLED" envDefault:"false"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	var cfg Config
	// defaults come from the struct tags; an empty environment cannot fail
	_ = env.ParseWithOptions(&cfg, env.Options{
		Prefix:      Prefix,
		Environment: map[string]string{},
	})
	return cfg
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	if err := c.AnalysisConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		errs = append(errs, fmt.Errorf("camera size %dx%d must be positive", c.Camera.Width, c.Camera.Height))
	}
	if c.Camera.FPS <= 0 {
		errs = append(errs, fmt.Errorf("camera fps %d must be positive", c.Camera.FPS))
	}
	if c.Stream.Enabled && c.Stream.Addr == "" {
		errs = append(errs, errors.New("stream address is required when the stream server is enabled"))
	}
	if c.Store.Enabled && c.Store.Path == "" {
		errs = append(errs, errors.New("store path is required when recording is enabled"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// AnalysisConfig maps the environment settings onto the analyzer's config.
func (c Config) AnalysisConfig() analysis.Config {
	a := c.Analysis
	return analysis.Config{
		HandSize:              analysis.Size{Width: a.HandWidth, Height: a.HandHeight},
		HeadSize:              analysis.Size{Width: a.HeadWidth, Height: a.HeadHeight},
		PalmRatio:             a.PalmRatio,
		ForearmThreshold:      a.ForearmThreshold,
		CalibrationLimbLength: a.CalibrationLimbLength,
		Tolerance:             a.Tolerance,
	}
}
