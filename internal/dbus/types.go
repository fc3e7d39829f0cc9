package dbus

import (
	"github.com/godbus/dbus/v5"
)

// CloseReason represents the reason for closing a notification.
// These values are defined by the freedesktop.org notification specification.
type CloseReason uint32

const (
	// CloseReasonExpired indicates the notification expired (timeout reached).
	CloseReasonExpired CloseReason = 1
	// CloseReasonDismissed indicates the user dismissed the notification.
	CloseReasonDismissed CloseReason = 2
	// CloseReasonClosed indicates the notification was closed via CloseNotification.
	CloseReasonClosed CloseReason = 3
	// CloseReasonUndefined is reserved by freedesktop.org.
	CloseReasonUndefined CloseReason = 4
)

// String returns the string representation of the close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseReasonExpired:
		return "expired"
	case CloseReasonDismissed:
		return "dismissed"
	case CloseReasonClosed:
		return "closed"
	case CloseReasonUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// Notification holds the arguments of one Notify call.
type Notification struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs; not rendered
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

// ImagePath extracts the image-path hint.
func (n *Notification) ImagePath() string {
	return stringHint(n.Hints, "image-path", "image_path")
}

// Progress extracts the value hint used for progress bars.
// Returns -1 if not present, otherwise the value clamped to 0-100.
func (n *Notification) Progress() int {
	v, ok := n.Hints["value"]
	if !ok {
		return -1
	}
	var p int
	switch val := v.Value().(type) {
	case int32:
		p = int(val)
	case uint32:
		p = int(val)
	case int64:
		p = int(val)
	case int:
		p = val
	case byte:
		p = int(val)
	default:
		return -1
	}
	return min(max(p, 0), 100)
}

// SuppressSound returns true if the suppress-sound hint is set.
func (n *Notification) SuppressSound() bool {
	if v, ok := n.Hints["suppress-sound"]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}
	return false
}

// stringHint returns the first of keys present as a string hint.
func stringHint(hints map[string]dbus.Variant, keys ...string) string {
	for _, k := range keys {
		if v, ok := hints[k]; ok {
			if s, ok := v.Value().(string); ok {
				return s
			}
		}
	}
	return ""
}

// ServerCapabilities lists the capabilities advertised by thord.
var ServerCapabilities = []string{
	"body",        // Support body text
	"body-markup", // <b>, <i> and <u> in the body
	"icon-static", // Support static icons
}

// ServerInfo contains information about the notification server.
type ServerInfo struct {
	Name        string
	Vendor      string
	Version     string
	SpecVersion string
}

// DefaultServerInfo returns the default server information.
func DefaultServerInfo() ServerInfo {
	return ServerInfo{
		Name:        "thord",
		Vendor:      "thor",
		Version:     "dev",
		SpecVersion: "1.2",
	}
}
