// Package daemon runs thord: the event loop that accepts client
// connections, renders or queues their messages, and reacts to signals,
// slot timers, config changes and display server loss.
//
// All daemon state is owned by the goroutine running Daemon.Run. Other
// goroutines (the socket acceptor, the D-Bus front-end, timers, the file
// watcher and the display thread) only hand over decoded messages or post
// bridge events.
package daemon
