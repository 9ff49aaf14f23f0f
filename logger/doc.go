// Package logger provides structured logging on top of zerolog.
//
// # Configuration
//
//	logger:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.New(&cfg, "feedserver").WithComponent("memtable")
//	log.Info("table created", logger.Fields("table", "test"))
package logger
