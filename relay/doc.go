// Package relay republishes a table's changefeed onto a transport.
//
// A Relay opens a feed in push mode and hands every delivery, as a payload
// envelope, to a Publisher in order. It is a component.Component, so a
// service starts and stops relays with the rest of its components.
package relay
