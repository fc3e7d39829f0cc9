// Package display owns the popup windows of thord.
//
// The Manager keeps one reserved OSD slot and a fixed pool of note slots
// that stack from a screen corner. Messages that find no free note slot
// wait in a bounded Queue. Pixels are produced by a Backend; the manager
// only computes geometry, drives the map/unmap handshake and arms the
// per-slot timers.
//
// A Manager is not safe for concurrent use. It is owned by the daemon loop
// goroutine; backends and timers reach it only through the EventSink
// methods and the event bridge.
package display
