// Package logging provides structured logging for obtree.
//
// # Overview
//
// The package wraps zerolog behind a small key-value Logger interface so the
// storage layers never depend on a concrete logging library:
//
//   - Four log levels (debug, info, warn, error)
//   - Text and JSON output formats
//   - Field-based contextual logging
//
// # Creating a Logger
//
//	logger := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "/var/log/obtree/obtree.log",
//	})
//
// For testing, use a no-op logger:
//
//	logger := logging.NewNop()
//
// # Structured Logging
//
//	logger.Info("tree opened", "root", root, "count", n)
//
//	treeLogger := logger.WithComponent("btree").WithFields("degree", 64)
//	treeLogger.Debug("root split", "height", 3)
//
// Output (JSON format):
//
//	{"level":"debug","component":"btree","degree":64,"height":3,"time":"2026-10-15T10:30:00Z","message":"root split"}
package logging
