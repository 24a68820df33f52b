package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	t.Run("storage defaults", func(t *testing.T) {
		if config.Storage.Backend != BackendFile {
			t.Errorf("expected backend %q, got %q", BackendFile, config.Storage.Backend)
		}
		if config.Storage.CacheSize != 4096 {
			t.Errorf("expected cache size 4096, got %d", config.Storage.CacheSize)
		}
		if config.Storage.PebbleCacheBytes() != 64_000_000 {
			t.Errorf("expected pebble cache 64MB, got %d", config.Storage.PebbleCacheBytes())
		}
	})

	t.Run("logging defaults", func(t *testing.T) {
		if config.Logging.Level != "info" {
			t.Errorf("expected log level 'info', got %q", config.Logging.Level)
		}
		if config.Logging.Output != "stderr" {
			t.Errorf("expected log output 'stderr', got %q", config.Logging.Output)
		}
	})

	t.Run("defaults are valid", func(t *testing.T) {
		if errs := ValidateConfig(config); len(errs) != 0 {
			t.Errorf("expected no validation errors, got %v", errs)
		}
	})
}

func TestParseConfig(t *testing.T) {
	data := []byte(`
tree:
  degree: 16
storage:
  backend: pebble
  dir: /data/tree
  syncOnWrite: true
logging:
  format: json
metrics:
  enabled: true
  address: "127.0.0.1:9100"
`)

	config, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if config.Tree.Degree != 16 {
		t.Errorf("expected degree 16, got %d", config.Tree.Degree)
	}
	if config.Storage.Backend != BackendPebble {
		t.Errorf("expected backend pebble, got %q", config.Storage.Backend)
	}
	if !config.Storage.SyncOnWrite {
		t.Error("expected syncOnWrite to be true")
	}
	if config.Storage.CacheSize != 4096 {
		t.Errorf("expected default cache size to survive, got %d", config.Storage.CacheSize)
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected default level to survive, got %q", config.Logging.Level)
	}
	if config.Metrics.Address != "127.0.0.1:9100" {
		t.Errorf("expected metrics address, got %q", config.Metrics.Address)
	}
}

func TestParseConfigEmpty(t *testing.T) {
	config, err := ParseConfig(nil)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if config.Storage.Dir != DefaultConfig().Storage.Dir {
		t.Errorf("expected default dir, got %q", config.Storage.Dir)
	}
}

func TestParseConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "storage:\n  bogus: 1\n"},
		{"wrong type", "tree:\n  degree: many\n"},
		{"malformed", "tree: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalidYAML) {
				t.Errorf("expected ErrInvalidYAML, got %v", err)
			}
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("OBTREE_TEST_DIR", "/srv/tree")
	t.Setenv("OBTREE_TEST_EMPTY", "")

	tests := []struct {
		input    string
		expected string
	}{
		{"dir: ${OBTREE_TEST_DIR}", "dir: /srv/tree"},
		{"dir: ${OBTREE_TEST_DIR:-/tmp}", "dir: /srv/tree"},
		{"dir: ${OBTREE_TEST_EMPTY:-/tmp}", "dir: /tmp"},
		{"dir: ${OBTREE_TEST_UNSET}", "dir: "},
		{"dir: plain", "dir: plain"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := string(substituteEnvVars([]byte(tt.input)))
			if got != tt.expected {
				t.Errorf("substituteEnvVars(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "obtree.yaml")
	t.Setenv("OBTREE_TEST_BACKEND", "memory")
	if err := os.WriteFile(path, []byte("storage:\n  backend: ${OBTREE_TEST_BACKEND}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Storage.Backend != BackendMemory {
		t.Errorf("expected memory backend, got %q", config.Storage.Backend)
	}

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"degree too small", func(c *Config) { c.Tree.Degree = 1 }, "tree.degree"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"missing dir", func(c *Config) { c.Storage.Dir = "" }, "storage.dir"},
		{"negative cache", func(c *Config) { c.Storage.CacheSize = -1 }, "storage.cacheSize"},
		{"bad pebble cache", func(c *Config) { c.Storage.PebbleCache = "lots" }, "storage.pebbleCache"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"relative log file", func(c *Config) { c.Logging.Output = "logs/obtree.log" }, "logging.output"},
		{"bad metrics address", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Address = "nope" }, "metrics.address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)

			errs := ValidateConfig(config)
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %v", errs)
			}
			var verr ValidationError
			if !errors.As(errs[0], &verr) {
				t.Fatalf("expected ValidationError, got %T", errs[0])
			}
			if verr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}

	t.Run("memory needs no dir", func(t *testing.T) {
		config := DefaultConfig()
		config.Storage.Backend = BackendMemory
		config.Storage.Dir = ""
		if errs := ValidateConfig(config); len(errs) != 0 {
			t.Errorf("expected no errors, got %v", errs)
		}
	})
}

func TestMarshalRoundTripsThroughParse(t *testing.T) {
	config := DefaultConfig()
	config.Tree.Degree = 8

	data, err := Marshal(config)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), "degree: 8") {
		t.Errorf("expected degree in output, got:\n%s", data)
	}

	parsed, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if *parsed != *config {
		t.Errorf("parsed config differs: %+v vs %+v", parsed, config)
	}
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr string
	}{
		{":9464", ""},
		{"127.0.0.1:9100", ""},
		{"nope", "invalid address format"},
		{"localhost:", "port is required"},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := validateAddress(tt.addr)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
