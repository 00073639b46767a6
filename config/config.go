// Package config holds the engine settings and builds the project logger.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the engine configuration. Zero fields in a loaded file keep
// their defaults.
type Config struct {
	SampleRate         int           `yaml:"sample_rate" validate:"gte=8000,lte=192000"`
	BlockSize          int           `yaml:"block_size" validate:"gte=16,lte=8192"`
	QueueSize          int           `yaml:"queue_size" validate:"gte=32,lte=1048576"`
	OutputLatency      time.Duration `yaml:"output_latency" validate:"gt=0"`
	ProducerIdle       time.Duration `yaml:"producer_idle" validate:"gt=0"`
	TransferRetries    int           `yaml:"transfer_retries" validate:"gte=0,lte=64"`
	TransferRetryDelay time.Duration `yaml:"transfer_retry_delay" validate:"gte=0"`
	MasterGain         float64       `yaml:"master_gain" validate:"gte=0,lte=4"`
	MaxVoices          int           `yaml:"max_voices" validate:"gte=1,lte=256"`
	LogLevel           string        `yaml:"log_level" validate:"loglevel"`
	MetricsAddr        string        `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		_, err := logrus.ParseLevel(fl.Field().String())
		return err == nil
	})
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		SampleRate:         44100,
		BlockSize:          512,
		QueueSize:          16384,
		OutputLatency:      50 * time.Millisecond,
		ProducerIdle:       time.Millisecond,
		TransferRetries:    8,
		TransferRetryDelay: 250 * time.Microsecond,
		MasterGain:         1,
		MaxVoices:          32,
		LogLevel:           "info",
	}
}

// Parse reads a YAML configuration on top of the defaults and validates it.
func Parse(b []byte) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("could not parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads and validates the configuration file at path.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not read config: %w", err)
	}
	return Parse(b)
}

// Validate checks the field ranges and that the queue can hold two blocks.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.QueueSize < 2*c.BlockSize {
		return fmt.Errorf("invalid config: queue_size %d must be at least twice block_size %d", c.QueueSize, c.BlockSize)
	}
	return nil
}

// NewLogger returns a text logger writing to out at the given level.
func NewLogger(level string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log, nil
}
