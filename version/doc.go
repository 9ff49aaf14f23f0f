// Package version reports the build version of changefeed binaries. It is
// the default service version and is included in the /health response.
package version
