// Package config provides configuration parsing and validation for obtree.
//
// # Overview
//
// Configuration is read from a YAML file. Every setting has a default, so a
// file only needs the keys it changes:
//
//	tree:
//	  degree: 64
//	storage:
//	  backend: pebble        # memory, file or pebble
//	  dir: ${OBTREE_DIR:-/var/lib/obtree}
//	  cacheSize: 4096        # decoded nodes cached by the file backend
//	  pebbleCache: 64MB
//	  syncOnWrite: false
//	logging:
//	  level: info
//	  format: json
//	  output: stderr
//	metrics:
//	  enabled: true
//	  address: ":9464"
//
// # Environment Variables
//
// ${VAR} is replaced by the variable's value and ${VAR:-default} falls back
// to default when VAR is unset or empty. Substitution happens on the raw
// text before YAML parsing.
//
// # Validation
//
//	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
//	    for _, err := range errs {
//	        fmt.Println(err) // e.g. "storage.backend: must be memory, file, or pebble"
//	    }
//	}
package config
