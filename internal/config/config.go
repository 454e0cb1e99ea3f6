// Package config loads daemon settings from defaults, an optional config
// file, a .env file, the environment and command-line flags, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/koding/multiconfig"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/gas-sensor/internal/status"
	"github.com/sweeney/gas-sensor/internal/store"
)

// EnvPrefix is prepended to every environment variable name,
// e.g. GASMETER_TRIGGER_LEVEL.
const EnvPrefix = "GASMETER"

// Sensor kinds.
const (
	SensorQMC5883L  = "qmc5883l"
	SensorSimulated = "simulated"
)

// Config holds all daemon settings.
type Config struct {
	ConfigFile string // optional TOML, JSON or YAML file
	EnvFile    string `default:".env"`
	LogLevel   string `default:"info"`

	// MQTT
	Broker      string `default:"tcp://localhost:1883" required:"true"`
	ClientID    string `default:"gas-sensor"`
	Username    string
	Password    string
	TopicPrefix string `default:"gasmeter"`
	BufferSize  int    `default:"100"`

	// Sensor
	SensorKind    string `default:"qmc5883l"`
	BusNumber     int    `default:"1"`
	SensorAddress int    `default:"13"` // 0x0D

	// Trigger
	TriggerLevel      int           `default:"-5000"`
	TriggerHysteresis int           `default:"700"`
	PollInterval      time.Duration `default:"1s"`

	// Temperature
	TemperatureInterval time.Duration `default:"5m"`
	TempScale           float64       `default:"0.008"`
	TempOffset          float64       `default:"20.3"`
	TempDelta           float64       `default:"0.1"`
	EwmaAlpha           float64       `default:"0.2"`

	// Consumption
	EnableConsumptionTracking bool
	LitresPerTick             float64 `default:"10"`

	// Persistence
	StoreKind string `default:"file"`
	StateFile string `default:"/var/lib/gas-sensor/gas_counter.json"`

	// Host
	HeartbeatInterval time.Duration `default:"15m"`
	HTTPAddr          string        `default:":8080"`
	IndicatorChip     string        `default:"gpiochip0"`
	IndicatorPin      int           `default:"-1"`
	EnableDebugDevice bool
	PrintReading      bool
}

// Load builds the configuration from args (normally os.Args[1:]).
func Load(args []string) (*Config, error) {
	if args == nil {
		args = []string{}
	}
	envFile := scanArg(args, "env-file")
	if envFile == "" {
		envFile = ".env"
	}
	// A missing .env file is normal.
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	loaders := []multiconfig.Loader{&multiconfig.TagLoader{}}

	configFile := scanArg(args, "config-file")
	if configFile == "" {
		configFile = os.Getenv(EnvPrefix + "_CONFIG_FILE")
	}
	if configFile != "" {
		fl, err := fileLoader(configFile)
		if err != nil {
			return nil, err
		}
		loaders = append(loaders, fl)
	}

	loaders = append(loaders,
		&multiconfig.EnvironmentLoader{Prefix: EnvPrefix, CamelCase: true},
		&multiconfig.FlagLoader{CamelCase: true, Args: args},
	)

	cfg := &Config{}
	if err := multiconfig.MultiLoader(loaders...).Load(cfg); err != nil {
		return nil, err
	}
	if err := multiconfig.MultiValidator(&multiconfig.RequiredValidator{}).Validate(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fileLoader(path string) (multiconfig.Loader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return &multiconfig.TOMLLoader{Path: path}, nil
	case ".json":
		return &multiconfig.JSONLoader{Path: path}, nil
	case ".yaml", ".yml":
		return &multiconfig.YAMLLoader{Path: path}, nil
	default:
		return nil, fmt.Errorf("config file %s: unsupported extension", path)
	}
}

// scanArg finds -name or --name in args without parsing the full flag set.
func scanArg(args []string, name string) string {
	for i, a := range args {
		trimmed := strings.TrimLeft(a, "-")
		if trimmed == a {
			continue
		}
		if v, ok := strings.CutPrefix(trimmed, name+"="); ok {
			return v
		}
		if trimmed == name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// Validate checks value ranges the loaders cannot express.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	if c.TriggerHysteresis < 0 {
		errs = append(errs, errors.New("trigger hysteresis must be >= 0"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be > 0"))
	}
	if c.TemperatureInterval <= 0 {
		errs = append(errs, errors.New("temperature interval must be > 0"))
	}
	if c.HeartbeatInterval < 0 {
		errs = append(errs, errors.New("heartbeat interval must be >= 0"))
	}
	if !(c.EwmaAlpha > 0 && c.EwmaAlpha <= 1) {
		errs = append(errs, errors.New("ewma alpha must be in (0, 1]"))
	}
	if c.TempDelta < 0 {
		errs = append(errs, errors.New("temperature delta must be >= 0"))
	}
	if !(c.LitresPerTick > 0) {
		errs = append(errs, errors.New("litres per tick must be > 0"))
	}
	if c.BufferSize <= 0 {
		errs = append(errs, errors.New("buffer size must be > 0"))
	}
	if c.BusNumber < 0 {
		errs = append(errs, errors.New("bus number must be >= 0"))
	}
	if c.SensorAddress < 0 || c.SensorAddress > 0x7F {
		errs = append(errs, errors.New("sensor address must be a 7-bit I2C address"))
	}
	switch c.SensorKind {
	case SensorQMC5883L, SensorSimulated:
	default:
		errs = append(errs, fmt.Errorf("unknown sensor kind %q", c.SensorKind))
	}
	switch c.StoreKind {
	case store.KindFile, store.KindSQLite:
		if c.StateFile == "" {
			errs = append(errs, errors.New("state file is required for the file and sqlite stores"))
		}
	case store.KindNone:
	default:
		errs = append(errs, fmt.Errorf("unknown store kind %q", c.StoreKind))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level. Validate has already checked it.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// StatusConfig returns the subset shown on the status page.
func (c *Config) StatusConfig() status.Config {
	return status.Config{
		PollMs:             c.PollInterval.Milliseconds(),
		TemperatureMs:      c.TemperatureInterval.Milliseconds(),
		HeartbeatMs:        c.HeartbeatInterval.Milliseconds(),
		TriggerCenter:      c.TriggerLevel,
		TriggerBand:        c.TriggerHysteresis,
		ConsumptionEnabled: c.EnableConsumptionTracking,
		LitresPerTick:      c.LitresPerTick,
		Store:              c.StoreKind,
		Broker:             c.Broker,
		HTTPAddr:           c.HTTPAddr,
	}
}
