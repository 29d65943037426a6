package config

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: 8585,
		},
		Jobs: JobsCfg{
			Workers:           2,
			QueueSize:         64,
			MaxDegradedImages: 0,
		},
		Images: ImagesCfg{
			MaxEdge: 2000,
		},
		Ghostwriter: GhostwriterCfg{
			Backend:    "mock",
			Model:      "gpt-4o",
			APIKey:     "${OPENAI_API_KEY}",
			MaxRetries: 3,
		},
	}
}
