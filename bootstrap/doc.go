// Package bootstrap runs the lifecycle of changefeed binaries.
//
// An App validates its typed config, builds the logger, starts registered
// components in order and runs OnStart, OnConfigure and OnReady hooks. Run
// then blocks until SIGINT or SIGTERM, while RunTask runs a finite task.
// Shutdown runs OnStop hooks and stops components in reverse order within
// the graceful timeout.
package bootstrap
