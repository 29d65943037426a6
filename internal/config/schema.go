package config

// Config holds bindery configuration.
// Stored at: ~/.bindery/config.yaml
type Config struct {
	Server      ServerCfg      `mapstructure:"server" yaml:"server"`
	Jobs        JobsCfg        `mapstructure:"jobs" yaml:"jobs"`
	Images      ImagesCfg      `mapstructure:"images" yaml:"images"`
	Ghostwriter GhostwriterCfg `mapstructure:"ghostwriter" yaml:"ghostwriter"`
}

// ServerCfg configures the HTTP API server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// JobsCfg configures the job controller.
type JobsCfg struct {
	Workers   int `mapstructure:"workers" yaml:"workers"`       // concurrent pipeline workers
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"` // dispatch channel capacity
	// MaxDegradedImages fails a job when more than this many images
	// degrade to caption-only placeholders. Zero disables the check.
	MaxDegradedImages int `mapstructure:"max_degraded_images" yaml:"max_degraded_images"`
}

// ImagesCfg configures image normalization.
type ImagesCfg struct {
	MaxEdge int `mapstructure:"max_edge" yaml:"max_edge"` // longest-edge pixel limit
}

// GhostwriterCfg configures the content producer backend.
type GhostwriterCfg struct {
	Backend    string `mapstructure:"backend" yaml:"backend"` // "mock" or "openai"
	Model      string `mapstructure:"model" yaml:"model"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	MaxRetries int    `mapstructure:"max_retries" yaml:"max_retries"`
}
