// Package config provides configuration parsing and validation for obtree.
package config

// Config holds the complete obtree configuration.
type Config struct {
	Tree    TreeConfig    `yaml:"tree"`
	Storage StorageConfig `yaml:"storage"`
	Logging LogConfig     `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// TreeConfig holds B-tree shape configuration.
type TreeConfig struct {
	// Degree is the minimum degree t. Zero adopts the degree of an existing
	// tree, or the default for a new one.
	Degree int `yaml:"degree"`
}

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendPebble = "pebble"
)

// StorageConfig holds node storage configuration.
type StorageConfig struct {
	Backend     string `yaml:"backend"`
	Dir         string `yaml:"dir"`
	CacheSize   int    `yaml:"cacheSize"`
	PebbleCache string `yaml:"pebbleCache"`
	SyncOnWrite bool   `yaml:"syncOnWrite"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig holds Prometheus exporter configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}
