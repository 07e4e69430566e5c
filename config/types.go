package config

// Config represents the complete configuration structure
type Config struct {
	Mirth   MirthConfig   `mapstructure:"mirth"`
	Filter  FilterConfig  `mapstructure:"filter"`
	Safety  SafetyConfig  `mapstructure:"safety"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// MirthConfig holds Mirth Connect connection details
type MirthConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// VerifySSL enables TLS certificate verification. Mirth ships with a
	// self-signed certificate, so this defaults to off.
	VerifySSL bool `mapstructure:"verify_ssl"`
	// Timeout is the HTTP request timeout in seconds.
	Timeout int `mapstructure:"timeout"`
}

// FilterConfig contains filter expression settings
type FilterConfig struct {
	DefaultExpression string            `mapstructure:"default_expression"`
	Presets           map[string]string `mapstructure:"presets"`
}

// SafetyConfig contains safety-related settings
type SafetyConfig struct {
	DryRun      bool `mapstructure:"dry_run"`
	ConfirmSend bool `mapstructure:"confirm_send"`
	ShowDetails bool `mapstructure:"show_details"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}
