// Package daemon provides the default Logger implementation: a colorized,
// structured console writer, adapted from the retrieved daemon's own
// logging/daemon package (ConsoleWriter + TextFormatter) down to the
// smaller domain/logging.Logger surface this engine declares (no
// LogEvent/Writer split, no config-driven writer factory — just prefix
// chaining and leveled console output).
package daemon

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	domainlogging "github.com/danbao/testring-sub000/internal/domain/logging"
)

// ANSI color codes per level, matching the retrieved daemon's scheme.
const (
	colorReset = "\033[0m"
	colorDebug = "\033[36m" // cyan
	colorInfo  = "\033[32m" // green
	colorWarn  = "\033[33m" // yellow
	colorError = "\033[31m" // red
)

const timestampFormat = "2006-01-02T15:04:05Z07:00"

// ConsoleLogger writes leveled, prefixed log lines to stdout/stderr: debug
// and info to stdout, warn and error to stderr, colorized when the target
// is a terminal.
type ConsoleLogger struct {
	mu     *sync.Mutex
	stdout io.Writer
	stderr io.Writer
	color  bool
	prefix string
}

// New creates a ConsoleLogger with auto-detected color support against the
// real stdout/stderr.
func New() *ConsoleLogger {
	return NewWithOptions(os.Stdout, os.Stderr, isTerminal(os.Stdout))
}

// NewWithOptions creates a ConsoleLogger against explicit writers, for tests
// or for redirecting daemon output.
func NewWithOptions(stdout, stderr io.Writer, color bool) *ConsoleLogger {
	return &ConsoleLogger{mu: &sync.Mutex{}, stdout: stdout, stderr: stderr, color: color}
}

// WithPrefix returns a logger that prepends prefix to every message,
// sharing the same underlying writers and mutex so concurrent use by a
// parent and its prefixed children stays serialized.
func (l *ConsoleLogger) WithPrefix(prefix string) domainlogging.Logger {
	joined := prefix
	if l.prefix != "" {
		joined = l.prefix + "." + prefix
	}
	return &ConsoleLogger{mu: l.mu, stdout: l.stdout, stderr: l.stderr, color: l.color, prefix: joined}
}

func (l *ConsoleLogger) Debug(msg string, fields ...domainlogging.Field) {
	l.write("DEBUG", colorDebug, l.stdout, msg, fields)
}

func (l *ConsoleLogger) Info(msg string, fields ...domainlogging.Field) {
	l.write("INFO", colorInfo, l.stdout, msg, fields)
}

func (l *ConsoleLogger) Warn(msg string, fields ...domainlogging.Field) {
	l.write("WARN", colorWarn, l.stderr, msg, fields)
}

func (l *ConsoleLogger) Error(msg string, fields ...domainlogging.Field) {
	l.write("ERROR", colorError, l.stderr, msg, fields)
}

func (l *ConsoleLogger) write(level, color string, out io.Writer, msg string, fields []domainlogging.Field) {
	line := format(level, l.prefix, msg, fields)
	if l.color {
		line = color + line + colorReset
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(out, line)
}

func format(level, prefix, msg string, fields []domainlogging.Field) string {
	var sb strings.Builder
	sb.WriteString(time.Now().Format(timestampFormat))
	sb.WriteByte(' ')
	sb.WriteByte('[')
	sb.WriteString(level)
	sb.WriteString("] ")
	if prefix != "" {
		sb.WriteString(prefix)
		sb.WriteByte(' ')
	}
	sb.WriteString(msg)
	if len(fields) > 0 {
		sb.WriteByte(' ')
		writeFields(&sb, fields)
	}
	return sb.String()
}

func writeFields(sb *strings.Builder, fields []domainlogging.Field) {
	sorted := make([]domainlogging.Field, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	for i, f := range sorted {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(f.Key)
		sb.WriteByte('=')
		fmt.Fprintf(sb, "%v", f.Value)
	}
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Nop logger, re-exported for callers that want this package's
// construction API but no output; domain/logging.Nop{} is the same thing.
func Nop() domainlogging.Logger { return domainlogging.Nop{} }

var _ domainlogging.Logger = (*ConsoleLogger)(nil)
