// Package oocana provides dataflow execution machinery: manifests
// describe graphs of blocks, and the scheduler runs them across
// executors coordinated over an MQTT bus.
//
// The data model is in package 'manifest', the runner in 'scheduler',
// and the command-line tool in `cmd/oocana`.
package oocana
