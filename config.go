package weft

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config controls a Runtime. The zero value is not usable; start from
// DefaultConfig or LoadConfig.
type Config struct {
	// Debug enables trace/info/debug logging. Notices, warnings and errors
	// are always logged.
	Debug bool `yaml:"debug"`

	// DebugCategories limits debug output to the named subsystems
	// (sched, fiber, channel, loop, timer, io). Empty means none.
	DebugCategories []LogCategory `yaml:"debug_categories"`

	// MaxStackBytes is the per-fiber stack limit, checked at every
	// suspension point. A fiber that exceeds it dies with
	// ErrStackOverflow. Zero disables the check.
	MaxStackBytes int `yaml:"max_stack_bytes"`

	// MaxPollMillis caps how long a single event-loop poll may block.
	// Zero means a poll blocks until the nearest deadline, or
	// indefinitely when only descriptors are pending.
	MaxPollMillis int `yaml:"max_poll_millis"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Debug:         false,
		MaxStackBytes: 8 << 20,
		MaxPollMillis: 0,
	}
}

// LoadConfig reads a YAML config file. Fields absent from the file keep
// their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("weft: reading config: %w", err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("weft: parsing config %s: %w", path, err)
	}
	if config.MaxStackBytes < 0 {
		return nil, fmt.Errorf("weft: config %s: max_stack_bytes must not be negative", path)
	}
	if config.MaxPollMillis < 0 {
		return nil, fmt.Errorf("weft: config %s: max_poll_millis must not be negative", path)
	}
	return config, nil
}
