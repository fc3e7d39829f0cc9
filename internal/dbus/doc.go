// Package dbus implements the org.freedesktop.Notifications D-Bus interface
// as an optional front-end. Incoming Notify calls are converted to note
// messages and handed to the daemon loop through the event bridge, so they
// are rendered exactly like messages read from the socket.
package dbus
