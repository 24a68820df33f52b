// Package config provides configuration parsing and validation for obtree.
package config

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Tree: TreeConfig{
			Degree: 0,
		},
		Storage: StorageConfig{
			Backend:     BackendFile,
			Dir:         "./obtree-data",
			CacheSize:   4096,
			PebbleCache: "64MB",
			SyncOnWrite: false,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9464",
		},
	}
}
