package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// InputConfig holds the locations of the two inputs of a run.
// A location is a local path or an s3://bucket/key URI.
type InputConfig struct {
	Lookup   string `yaml:"lookup"`
	FlowLogs string `yaml:"flow_logs"`
}

// OutputConfig holds the location of the CSV report and the optional metrics textfile.
type OutputConfig struct {
	Report      string `yaml:"report"`
	MetricsFile string `yaml:"metrics_file"`
}

// AWSConfig configures the S3 client used for s3:// locations.
type AWSConfig struct {
	Region   string `yaml:"region"`
	Profile  string `yaml:"profile"`
	Endpoint string `yaml:"endpoint"`
}

// ClickHouseConfig holds the connection details for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NATSConfig holds the connection details for the NATS publisher.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// SQLiteConfig holds the path of the run history database.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// JSONConfig holds the path of the JSON summary file.
type JSONConfig struct {
	Path string `yaml:"path"`
}

// WriterDef defines an optional report sink.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	JSON       JSONConfig       `yaml:"json"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	NATS       NATSConfig       `yaml:"nats"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
}

// SinksConfig lists the optional sinks written after the CSV report.
type SinksConfig struct {
	FailOnError bool        `yaml:"fail_on_error"`
	Writers     []WriterDef `yaml:"writers"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Input  InputConfig  `yaml:"input"`
	Output OutputConfig `yaml:"output"`
	AWS    AWSConfig    `yaml:"aws"`
	Sinks  SinksConfig  `yaml:"sinks"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			Lookup:   "lookup.csv",
			FlowLogs: "flow_logs.txt",
		},
		Output: OutputConfig{
			Report: "output.csv",
		},
	}
}

// LoadConfig reads the configuration from a YAML file on top of Default.
func LoadConfig(filePath string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration describes a runnable pipeline.
func (c *Config) Validate() error {
	var errs []error
	if c.Input.Lookup == "" {
		errs = append(errs, errors.New("input.lookup must be set"))
	}
	if c.Input.FlowLogs == "" {
		errs = append(errs, errors.New("input.flow_logs must be set"))
	}
	if c.Output.Report == "" {
		errs = append(errs, errors.New("output.report must be set"))
	}
	for i, w := range c.Sinks.Writers {
		if !w.Enabled {
			continue
		}
		switch w.Type {
		case "json":
			if w.JSON.Path == "" {
				errs = append(errs, fmt.Errorf("sinks.writers[%d]: json.path must be set", i))
			}
		case "clickhouse":
			if w.ClickHouse.Host == "" {
				errs = append(errs, fmt.Errorf("sinks.writers[%d]: clickhouse.host must be set", i))
			}
		case "nats":
			if w.NATS.URL == "" || w.NATS.Subject == "" {
				errs = append(errs, fmt.Errorf("sinks.writers[%d]: nats.url and nats.subject must be set", i))
			}
		case "sqlite":
			if w.SQLite.Path == "" {
				errs = append(errs, fmt.Errorf("sinks.writers[%d]: sqlite.path must be set", i))
			}
		default:
			errs = append(errs, fmt.Errorf("sinks.writers[%d]: unknown writer type '%s'", i, w.Type))
		}
	}
	return errors.Join(errs...)
}
