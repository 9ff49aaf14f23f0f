// Package component defines the lifecycle interface shared by the parts of a
// changefeed service and a Registry that starts them in order, stops them in
// reverse and aggregates their health.
package component
