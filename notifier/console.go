package notifier

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// ConsoleNotifier writes notifications to stdout/stderr, splitting by
// severity: Error and Critical go to stderr, everything else to stdout.
// Notifications below MinSeverity are dropped.
type ConsoleNotifier struct {
	mu            sync.Mutex
	stdout        io.Writer
	stderr        io.Writer
	minSeverity   Severity
	showTimestamp bool
	showTags      bool
}

// Option configures a ConsoleNotifier.
type Option func(*ConsoleNotifier)

// WithMinSeverity sets the drop threshold. Default SeverityDebug (show
// everything).
func WithMinSeverity(s Severity) Option {
	return func(c *ConsoleNotifier) { c.minSeverity = s }
}

// WithStreams overrides the default os.Stdout/os.Stderr pair.
func WithStreams(stdout, stderr io.Writer) Option {
	return func(c *ConsoleNotifier) {
		if stdout != nil {
			c.stdout = stdout
		}
		if stderr != nil {
			c.stderr = stderr
		}
	}
}

// WithTimestamp toggles the leading timestamp. Default on; tests that
// want deterministic output should pass false.
func WithTimestamp(show bool) Option {
	return func(c *ConsoleNotifier) { c.showTimestamp = show }
}

// WithTags toggles the trailing "#tag" list. Default on.
func WithTags(show bool) Option {
	return func(c *ConsoleNotifier) { c.showTags = show }
}

// NewConsoleNotifier builds a ConsoleNotifier with the given options.
func NewConsoleNotifier(opts ...Option) *ConsoleNotifier {
	c := &ConsoleNotifier{
		stdout:        os.Stdout,
		stderr:        os.Stderr,
		minSeverity:   SeverityDebug,
		showTimestamp: true,
		showTags:      true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send formats and writes notification, returning false without writing
// if its severity is below the configured threshold.
func (c *ConsoleNotifier) Send(_ context.Context, notification Notification) (bool, error) {
	if notification.Severity < c.minSeverity {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stream := c.stdout
	if notification.Severity >= SeverityError {
		stream = c.stderr
	}
	_, err := fmt.Fprintln(stream, c.format(notification))
	return err == nil, err
}

func (c *ConsoleNotifier) format(notification Notification) string {
	var parts []string
	if c.showTimestamp && !notification.Timestamp.IsZero() {
		parts = append(parts, "["+notification.Timestamp.UTC().Format("2006-01-02 15:04:05")+"]")
	}
	parts = append(parts, "["+notification.Severity.String()+"]")
	parts = append(parts, notification.Title+":", notification.Message)
	if c.showTags && len(notification.Tags) > 0 {
		tagged := make([]string, len(notification.Tags))
		for i, tag := range notification.Tags {
			tagged[i] = "#" + tag
		}
		parts = append(parts, "("+strings.Join(tagged, " ")+")")
	}
	return strings.Join(parts, " ")
}
