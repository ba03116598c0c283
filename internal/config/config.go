// Package config holds the runtime configuration for myolink.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/myolink/internal/features"
	"github.com/banshee-data/myolink/internal/sensorlink"
)

type Config struct {
	Sensor   SensorConfig   `koanf:"sensor"`
	Model    ModelConfig    `koanf:"model"`
	Logs     LogsConfig     `koanf:"logs"`
	Actuator ActuatorConfig `koanf:"actuator"`
	Retry    RetryConfig    `koanf:"retry"`
	Labels   LabelsConfig   `koanf:"labels"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
}

type SensorConfig struct {
	Port     string `koanf:"port"`
	BaudRate int    `koanf:"baud_rate"`
	DataBits int    `koanf:"data_bits"`
	StopBits int    `koanf:"stop_bits"`
	Parity   string `koanf:"parity"`

	// WindowSize is the number of bytes that make up one sample window.
	WindowSize int `koanf:"window_size"`
	// SampleFormat is "unsigned" or "signed".
	SampleFormat string        `koanf:"sample_format"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
}

type ModelConfig struct {
	Path string `koanf:"path"`
}

type LogsConfig struct {
	TimingPath   string `koanf:"timing_path"`
	TrainingPath string `koanf:"training_path"`
	FlushEvery   int    `koanf:"flush_every"`
	// DBPath enables the SQLite cycle mirror when set.
	DBPath string `koanf:"db_path"`
}

// ActuatorConfig selects where commands go: "log", "serial" or "mqtt".
type ActuatorConfig struct {
	Sink        string        `koanf:"sink"`
	SerialPort  string        `koanf:"serial_port"`
	SerialBaud  int           `koanf:"serial_baud"`
	MQTTBroker  string        `koanf:"mqtt_broker"`
	MQTTTopic   string        `koanf:"mqtt_topic"`
	MQTTQoS     int           `koanf:"mqtt_qos"`
	MQTTTimeout time.Duration `koanf:"mqtt_timeout"`
}

type RetryConfig struct {
	MaxAttempts    int           `koanf:"max_attempts"`
	InitialBackoff time.Duration `koanf:"initial_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff"`
}

// LabelsConfig picks the ground truth recorded with each training row:
// "constant" records Constant for every window, "operator" reads labels
// from standard input.
type LabelsConfig struct {
	Source   string `koanf:"source"`
	Constant int    `koanf:"constant"`
}

type MetricsConfig struct {
	Listen string `koanf:"listen"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

const (
	SinkLog    = "log"
	SinkSerial = "serial"
	SinkMQTT   = "mqtt"

	LabelsConstant = "constant"
	LabelsOperator = "operator"

	MinWindowSize = 3
)

// Default returns a configuration with every optional field filled in.
// Sensor port and model path have no defaults.
func Default() Config {
	return Config{
		Sensor: SensorConfig{
			BaudRate:     sensorlink.DefaultBaudRate,
			DataBits:     8,
			StopBits:     1,
			Parity:       "none",
			WindowSize:   1024,
			SampleFormat: "unsigned",
			ReadTimeout:  time.Second,
		},
		Logs: LogsConfig{
			TimingPath:   "performance_log.csv",
			TrainingPath: "training_data.csv",
			FlushEvery:   32,
		},
		Actuator: ActuatorConfig{
			Sink:        SinkLog,
			SerialBaud:  sensorlink.DefaultBaudRate,
			MQTTTopic:   "myolink/actuator",
			MQTTQoS:     1,
			MQTTTimeout: 2 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:    5,
			InitialBackoff: 250 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
		},
		Labels: LabelsConfig{Source: LabelsConstant},
		Log:    LogConfig{Level: "info", Format: "console"},
	}
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	if c.Sensor.Port == "" {
		errs = append(errs, errors.New("sensor.port is required"))
	}
	if c.Sensor.BaudRate <= 0 {
		errs = append(errs, fmt.Errorf("sensor.baud_rate must be positive, got %d", c.Sensor.BaudRate))
	}
	if c.Sensor.WindowSize < MinWindowSize {
		errs = append(errs, fmt.Errorf("sensor.window_size must be at least %d, got %d", MinWindowSize, c.Sensor.WindowSize))
	}
	if _, err := features.DecoderFor(c.Sensor.SampleFormat); err != nil {
		errs = append(errs, fmt.Errorf("sensor.sample_format: %w", err))
	}
	if c.Sensor.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("sensor.read_timeout must not be negative, got %s", c.Sensor.ReadTimeout))
	}
	if _, err := c.PortOptions().SerialMode(); err != nil {
		errs = append(errs, fmt.Errorf("sensor: %w", err))
	}
	if c.Model.Path == "" {
		errs = append(errs, errors.New("model.path is required"))
	}
	if c.Logs.TimingPath == "" || c.Logs.TrainingPath == "" {
		errs = append(errs, errors.New("logs.timing_path and logs.training_path are required"))
	}

	switch c.Actuator.Sink {
	case SinkLog:
	case SinkSerial:
		if c.Actuator.SerialPort == "" {
			errs = append(errs, errors.New("actuator.serial_port is required for the serial sink"))
		}
	case SinkMQTT:
		if c.Actuator.MQTTBroker == "" {
			errs = append(errs, errors.New("actuator.mqtt_broker is required for the mqtt sink"))
		}
		if c.Actuator.MQTTQoS < 0 || c.Actuator.MQTTQoS > 2 {
			errs = append(errs, fmt.Errorf("actuator.mqtt_qos must be 0, 1 or 2, got %d", c.Actuator.MQTTQoS))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown actuator.sink %q", c.Actuator.Sink))
	}

	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must not be negative, got %d", c.Retry.MaxAttempts))
	}

	switch c.Labels.Source {
	case LabelsConstant, LabelsOperator:
	default:
		errs = append(errs, fmt.Errorf("unknown labels.source %q", c.Labels.Source))
	}
	return errors.Join(errs...)
}

// PortOptions returns the serial settings of the sensor link.
func (c *Config) PortOptions() sensorlink.PortOptions {
	return sensorlink.PortOptions{
		BaudRate: c.Sensor.BaudRate,
		DataBits: c.Sensor.DataBits,
		StopBits: c.Sensor.StopBits,
		Parity:   c.Sensor.Parity,
	}
}
