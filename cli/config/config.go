package config

import (
	"fmt"
	"time"
)

// Config represents a camrelay.yaml configuration file.
// All values are optional and act as defaults for command flags.
// CLI flags always override config values.
type Config struct {
	Source    string          `yaml:"source"`
	LogLevel  string          `yaml:"log_level"`
	Listen    ListenConfig    `yaml:"listen"`
	Assembler AssemblerConfig `yaml:"assembler"`
	Output    OutputConfig    `yaml:"output"`
	Storage   StorageConfig   `yaml:"storage"`
	Adapter   AdapterConfig   `yaml:"adapter"`
}

// ListenConfig holds UDP listener defaults.
type ListenConfig struct {
	Addr            string   `yaml:"addr"`
	MaxDatagramSize int      `yaml:"max_datagram_size"`
	ReadTimeout     Duration `yaml:"read_timeout"`
}

// AssemblerConfig holds fragment matching defaults.
type AssemblerConfig struct {
	MatchStream bool `yaml:"match_stream"`
}

// OutputConfig selects where completed images go.
type OutputConfig struct {
	// Kind is one of "stdout", "dir" or "lode".
	Kind string `yaml:"kind"`
	Dir  string `yaml:"dir"`
	// BatchImages and BatchBytes buffer images before writing (0 disables).
	BatchImages int   `yaml:"batch_images"`
	BatchBytes  int64 `yaml:"batch_bytes"`
}

// StorageConfig holds Lode storage defaults.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds notification adapter defaults.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
	// QueueSize bounds pending notifications (0 uses the dispatcher default).
	QueueSize int `yaml:"queue_size,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
