package daemon

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jmylchreest/thor/internal/proto"
)

// NotificationLevel indicates the severity of an internal notice.
type NotificationLevel int

const (
	// NotificationLevelInfo is for informational notices.
	NotificationLevelInfo NotificationLevel = iota
	// NotificationLevelWarning is for problems the daemon recovered from.
	NotificationLevelWarning
)

func (l NotificationLevel) String() string {
	if l == NotificationLevelWarning {
		return "warning"
	}
	return "info"
}

// noticeTimeout is how long a notice stays on screen.
const noticeTimeout = 3 * time.Second

// InternalNotifier shows notices about the daemon itself on the OSD.
// Each key is rate limited on its own so a flapping config file cannot
// flood the screen.
type InternalNotifier struct {
	mu     sync.Mutex
	logger *slog.Logger

	show        func(msg *proto.Message)
	limiters    map[string]*rate.Limiter
	minInterval time.Duration
	enabled     bool
}

// NewInternalNotifier creates a notifier handing its messages to show.
func NewInternalNotifier(show func(msg *proto.Message), logger *slog.Logger) *InternalNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &InternalNotifier{
		logger:      logger,
		show:        show,
		limiters:    make(map[string]*rate.Limiter),
		minInterval: 5 * time.Second,
		enabled:     true,
	}
}

// SetEnabled enables or disables notices.
func (n *InternalNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// setMinInterval sets the minimum interval between notices with the same key.
func (n *InternalNotifier) setMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
	clear(n.limiters)
}

// Notify shows a notice unless one with the same key was shown recently.
// It reports whether the notice was shown.
func (n *InternalNotifier) Notify(key, summary, body string, level NotificationLevel) bool {
	n.mu.Lock()
	if !n.enabled || n.show == nil {
		n.mu.Unlock()
		return false
	}
	lim, ok := n.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(n.minInterval), 1)
		n.limiters[key] = lim
	}
	allowed := lim.Allow()
	show := n.show
	n.mu.Unlock()

	if !allowed {
		n.logger.Debug("internal notice rate-limited", "key", key, "summary", summary)
		return false
	}

	text := "<b>" + escapeText(summary) + "</b>"
	if body != "" {
		text += "\n" + escapeText(body)
	}
	msg := proto.NewMessage(proto.FlagNoImage|proto.FlagNoBar, text)
	msg.Timeout = noticeTimeout.Seconds()

	n.logger.Debug("showing internal notice", "key", key, "level", level, "msg_id", msg.ID)
	show(msg)
	return true
}

// NotifyConfigReloaded reports a successful reload.
func (n *InternalNotifier) NotifyConfigReloaded(full bool) {
	body := "Settings applied."
	if full {
		body = "Display restarted with the new settings."
	}
	n.Notify("config-reload", "Configuration reloaded", body, NotificationLevelInfo)
}

// NotifyConfigError reports problems found while loading the config.
func (n *InternalNotifier) NotifyConfigError(problems []error) {
	n.Notify("config-error", "Configuration problems", summarize(problems), NotificationLevelWarning)
}

// NotifyThemeError reports problems found while loading a theme.
func (n *InternalNotifier) NotifyThemeError(name string, problems []error) {
	n.Notify("theme-error:"+name, "Theme '"+name+"' has problems", summarize(problems), NotificationLevelWarning)
}

// NotifyRestartNeeded reports a setting that only applies after a restart.
func (n *InternalNotifier) NotifyRestartNeeded(setting string) {
	n.Notify("restart:"+setting, "Restart required", setting+" changes apply after restarting thord.", NotificationLevelWarning)
}

func summarize(problems []error) string {
	switch len(problems) {
	case 0:
		return ""
	case 1:
		return problems[0].Error()
	default:
		return problems[0].Error() + " (and " + strconv.Itoa(len(problems)-1) + " more)"
	}
}

// escapeText makes s render literally in popup markup.
func escapeText(s string) string {
	return strings.NewReplacer(`\`, `\\`, "<", `\<`, "\n", " ").Replace(s)
}

// dropLimiter rate limits one kind of drop warning and counts what it
// swallowed. It is only used from the loop goroutine.
type dropLimiter struct {
	logger     *slog.Logger
	limiter    *rate.Limiter
	suppressed int
}

func newDropLimiter(logger *slog.Logger) *dropLimiter {
	return &dropLimiter{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (l *dropLimiter) log(level slog.Level, msg string, args ...any) {
	if !l.limiter.Allow() {
		l.suppressed++
		return
	}
	if l.suppressed > 0 {
		args = append(args, "suppressed", l.suppressed)
		l.suppressed = 0
	}
	l.logger.Log(context.Background(), level, msg, args...)
}
