package config

import "github.com/hyperjump/tameru/internal/chunker"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Cache.Root == "" {
		cfg.Cache.Root = "/usr/local/var/tameru/cache"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Chunker.MinTokens == 0 {
		cfg.Chunker.MinTokens = chunker.DefaultMinTokens
	}
	if cfg.Chunker.MaxTokens == 0 {
		cfg.Chunker.MaxTokens = chunker.DefaultMaxTokens
	}
	if cfg.Registry.DatabasePath == "" {
		cfg.Registry.DatabasePath = "/usr/local/var/tameru/registry.db"
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
