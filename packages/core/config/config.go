package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
	"github.com/abdul-hamid-achik/hurlstack/packages/rewrite"
	"github.com/abdul-hamid-achik/hurlstack/packages/tlsconfig"
)

// Config represents the hurlstack configuration. Timeout is the connect
// and read timeout in milliseconds, Headers are sent with every request
// unless the request sets them, and RateLimit caps connections per second
// with 0 meaning unlimited.
type Config struct {
	Timeout     int               `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	Transport   string            `json:"transport,omitempty" yaml:"transport,omitempty" toml:"transport,omitempty"`
	Proxy       string            `json:"proxy,omitempty" yaml:"proxy,omitempty" toml:"proxy,omitempty"`
	ValidateSSL *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty" toml:"validateSSL,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" toml:"headers,omitempty"`
	RateLimit   float64           `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty" toml:"rateLimit,omitempty"`
	TLS         tlsconfig.Files   `json:"tls,omitempty" yaml:"tls,omitempty" toml:"tls,omitempty"`
	Rewrite     rewrite.Rules     `json:"rewrite,omitempty" yaml:"rewrite,omitempty" toml:"rewrite,omitempty"`
	Verbose     *bool             `json:"verbose,omitempty" yaml:"verbose,omitempty" toml:"verbose,omitempty"`
	NoColor     *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty" toml:"noColor,omitempty"`
}

// BoolPtr returns a pointer to a bool value
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// TimeoutDuration returns the request timeout as a time.Duration
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// ConfigFilenames contains the possible config file names, in search order
var ConfigFilenames = []string{
	".hurlstack.json",
	"hurlstack.json",
	".hurlstack.yaml",
	".hurlstack.yml",
	".hurlstack.toml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory.
// It returns the defaults when none exists.
func FindAndLoadConfig(dir string) (*Config, error) {
	path, ok := FindConfigFile(dir)
	if !ok {
		return DefaultConfig(), nil
	}
	return loadConfigFromFile(path)
}

// FindConfigFile returns the first config file present in dir.
func FindConfigFile(dir string) (string, bool) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, true
		}
	}
	return "", false
}

type format int

const (
	formatJSON format = iota
	formatYAML
	formatTOML
)

// formatOf picks the encoding from the file extension. Unknown extensions
// are JSON.
func formatOf(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	case ".toml":
		return formatTOML
	default:
		return formatJSON
	}
}

// loadConfigFromFile loads configuration from a specific file over the defaults
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeResource, err, "read config %s", path)
	}

	config := DefaultConfig()
	switch formatOf(path) {
	case formatYAML:
		err = yaml.Unmarshal(data, config)
	case formatTOML:
		err = toml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, err, "parse config %s", path)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that cannot be caught by decoding alone
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return errdef.New(errdef.CodeParse, "timeout must not be negative: %d", c.Timeout)
	}
	if c.RateLimit < 0 {
		return errdef.New(errdef.CodeParse, "rateLimit must not be negative: %v", c.RateLimit)
	}
	switch c.Transport {
	case "", TransportDefault, TransportH2:
	default:
		return errdef.New(errdef.CodeParse, "unknown transport %q (want %q or %q)", c.Transport, TransportDefault, TransportH2)
	}
	return nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.Transport != "" {
		result.Transport = other.Transport
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}

	// Boolean flags - only override if explicitly set in other config
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	if !other.TLS.Empty() || other.TLS.RootMode != "" {
		result.TLS = other.TLS
	}

	if len(other.Rewrite.Block) > 0 {
		result.Rewrite.Block = append(append([]string(nil), c.Rewrite.Block...), other.Rewrite.Block...)
	}
	if len(other.Rewrite.Replace) > 0 {
		replace := make(map[string]string, len(c.Rewrite.Replace)+len(other.Rewrite.Replace))
		for k, v := range c.Rewrite.Replace {
			replace[k] = v
		}
		for k, v := range other.Rewrite.Replace {
			replace[k] = v
		}
		result.Rewrite.Replace = replace
	}

	return &result
}

// SaveConfig saves the configuration to a file. Files ending in .yaml or
// .yml are written as YAML, .toml as TOML, everything else as JSON.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	switch formatOf(path) {
	case formatYAML:
		data, err = yaml.Marshal(c)
	case formatTOML:
		data, err = toml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return errdef.Wrap(errdef.CodeParse, err, "encode config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errdef.Wrap(errdef.CodeResource, err, "write config %s", path)
	}
	return nil
}
