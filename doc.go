// Package rcb4 provides control of Kondo RCB-4 servo controllers over a
// serial link.
//
// This is a Go implementation compatible with the RCB-4 mini command set,
// allowing you to discover KRS servos on the ICS bus, read joint angles, and
// stream motion frames from your own programs.
//
// # Installation
//
//	go install github.com/708yamaguchi/rcb4/cmd/rcb4ctl@latest
//
// # Usage
//
// First, scan the bus to find the controller and its servos:
//
//	rcb4ctl scan --save
//
// Then watch the joints live:
//
//	rcb4ctl monitor
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/rcb4ctl: CLI with scan, monitor, and motion commands
//   - cmd/rcb4-watch: headless joint angle stream for logging and piping
//   - pkg/rcb4: board transport, servo discovery, motion, and parameters
//   - pkg/monitor: fixed-rate joint state poller
package rcb4
