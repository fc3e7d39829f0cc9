package dbus

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmylchreest/thor/internal/proto"
)

// ToMessage converts a notification into a note message. A positive
// defaultTimeout is used when the sender leaves the timeout to the server;
// otherwise the note timeout of the daemon applies.
func ToMessage(n *Notification, defaultTimeout time.Duration) *proto.Message {
	var text string
	switch {
	case n.Summary != "" && n.Body != "":
		text = "<b>" + escapeMarkup(n.Summary) + "</b>\n" + n.Body
	case n.Summary != "":
		text = "<b>" + escapeMarkup(n.Summary) + "</b>"
	default:
		text = n.Body
	}

	flags := proto.FlagIsNote
	progress := n.Progress()
	if progress < 0 {
		flags |= proto.FlagNoBar
	}

	var images []string
	for _, candidate := range []string{n.ImagePath(), n.AppIcon} {
		if p := localPath(candidate); p != "" {
			images = append(images, p)
		}
	}

	msg := proto.NewMessage(flags, text, images...)
	msg.Silent = n.SuppressSound()
	if progress >= 0 {
		msg.SetBar(uint32(progress), 100)
	}
	if n.ExpireTimeout > 0 {
		msg.Timeout = float64(n.ExpireTimeout) / 1000
	} else if defaultTimeout > 0 {
		msg.Timeout = defaultTimeout.Seconds()
	}
	return msg
}

// localPath returns the file path named by an absolute path or file:// URI.
// Icon theme names are not resolved.
func localPath(s string) string {
	if strings.HasPrefix(s, "file://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = u.Path
	}
	if !filepath.IsAbs(s) {
		return ""
	}
	return filepath.Clean(s)
}

// escapeMarkup makes s render literally in popup markup.
func escapeMarkup(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "<", `\<`, "\n", " ")
	return r.Replace(s)
}
