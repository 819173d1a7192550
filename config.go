package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigEnv names the environment variable holding the config path.
const ConfigEnv = "TODOCOPY_CONFIG"

// Config is the optional runner configuration. It is read from exactly
// one file, named by --config or TODOCOPY_CONFIG; there is no discovery.
type Config struct {
	// Properties seed the property store before the script runs.
	Properties map[string]string `yaml:"properties"`

	// Tags seed the tag store; built-in tags may be overridden.
	Tags map[string]string `yaml:"tags"`

	Prompt PromptConfig `yaml:"prompt"`
	Log    LogConfig    `yaml:"log"`
}

type PromptConfig struct {
	// Mode is "terminal" (default) or "batch".
	Mode string `yaml:"mode"`
	// Answer is the batch reply to confirmations; default "y".
	Answer string `yaml:"answer"`
}

type LogConfig struct {
	// Level is a slog level name: debug, info, warn or error.
	Level string `yaml:"level"`
}

// configPath returns flagValue, or the environment setting when the flag
// is empty.
func configPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(ConfigEnv)
}

// LoadConfig reads the YAML config at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrap(err, CodeConfig, path)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, wrap(err, CodeConfig, path)
	}
	return &cfg, nil
}

// Apply seeds rc from the config. Command-line switches are applied
// afterwards and win.
func (c *Config) Apply(rc *RunContext) {
	for key, value := range c.Properties {
		rc.Props.Set(key, value)
	}
	for name, value := range c.Tags {
		rc.Tags.Set(name, value)
	}
	if c.Prompt.Mode != "" && rc.Options.Batch == "" {
		rc.Prompt = newPromptProvider(c.Prompt.Mode, c.Prompt.Answer, os.Stdin, rc.Stdout)
	}
	if c.Log.Level != "" && !rc.Options.Verbose {
		rc.Logger = newLogger(rc.Stderr, parseLevel(c.Log.Level))
	}
}
