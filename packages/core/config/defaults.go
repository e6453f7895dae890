package config

const (
	TransportDefault = "default"
	TransportH2      = "h2"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:     2500, // matches http.DefaultTimeout
		Transport:   TransportDefault,
		Proxy:       "",
		ValidateSSL: BoolPtr(true),
		Headers:     nil,
		RateLimit:   0,
		Verbose:     BoolPtr(false),
		NoColor:     BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.Timeout == defaults.Timeout &&
		c.Transport == defaults.Transport &&
		c.Proxy == defaults.Proxy &&
		c.GetValidateSSL() == defaults.GetValidateSSL() &&
		len(c.Headers) == 0 &&
		c.RateLimit == defaults.RateLimit &&
		c.TLS.Empty() &&
		c.Rewrite.Empty() &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor()
}
