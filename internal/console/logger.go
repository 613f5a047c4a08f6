// Package console writes gulp-style build logs to a terminal.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Options controls how a Logger renders.
type Options struct {
	Verbose   bool // Print Debugf lines
	Quiet     bool // Only print errors
	UseColors bool // Force colors on
}

// Logger prints timestamped lines. It is safe for concurrent use since
// parallel tasks share one Logger.
type Logger struct {
	mu        sync.Mutex
	w         io.Writer
	useColors bool
	verbose   bool
	quiet     bool
	now       func() time.Time
}

// New creates a logger writing to w.
func New(w io.Writer, opts Options) *Logger {
	return &Logger{
		w:         w,
		useColors: ShouldUseColors(opts.UseColors),
		verbose:   opts.Verbose,
		quiet:     opts.Quiet,
		now:       time.Now,
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return &Logger{w: io.Discard, now: time.Now}
}

// ShouldUseColors determines if colors should be enabled
func ShouldUseColors(force bool) bool {
	// Explicit flag wins
	if force {
		return true
	}

	// Check for FORCE_COLOR environment variable (GitHub Actions, etc.)
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}

	if os.Getenv("NO_COLOR") != "" {
		return false
	}

	// Auto-detect TTY
	if fileInfo, err := os.Stdout.Stat(); err == nil && (fileInfo.Mode()&os.ModeCharDevice) != 0 {
		return true
	}

	return false
}

// UseColors returns whether colors are enabled
func (l *Logger) UseColors() bool {
	return l.useColors
}

// Starting logs the beginning of a task.
func (l *Logger) Starting(task string) {
	if l.quiet {
		return
	}
	l.line(fmt.Sprintf("Starting '%s'...", RenderStyle(StyleCyan, task, l.useColors)))
}

// Finished logs the successful end of a task.
func (l *Logger) Finished(task string, d time.Duration) {
	if l.quiet {
		return
	}
	l.line(fmt.Sprintf("Finished '%s' after %s",
		RenderStyle(StyleCyan, task, l.useColors),
		RenderStyle(StyleMagenta, FormatDuration(d), l.useColors)))
}

// Failed logs a task that ended with an error. A nil err prints only the
// summary line, for groups whose failing member was already reported.
func (l *Logger) Failed(task string, d time.Duration, err error) {
	l.line(fmt.Sprintf("'%s' %s after %s",
		RenderStyle(StyleCyan, task, l.useColors),
		RenderStyle(StyleRed, "errored", l.useColors),
		RenderStyle(StyleMagenta, FormatDuration(d), l.useColors)))
	if err != nil {
		l.line(RenderStyle(StyleRed, err.Error(), l.useColors))
	}
}

// Infof logs an informational line.
func (l *Logger) Infof(format string, args ...any) {
	if l.quiet {
		return
	}
	l.line(fmt.Sprintf(format, args...))
}

// Debugf logs only in verbose mode.
func (l *Logger) Debugf(format string, args ...any) {
	if !l.verbose || l.quiet {
		return
	}
	l.line(RenderStyle(StyleGray, fmt.Sprintf(format, args...), l.useColors))
}

// Warnf logs a warning.
func (l *Logger) Warnf(format string, args ...any) {
	if l.quiet {
		return
	}
	l.line(RenderStyle(StyleYellow, fmt.Sprintf(format, args...), l.useColors))
}

// Errorf logs an error. Errors are printed even in quiet mode.
func (l *Logger) Errorf(format string, args ...any) {
	l.line(RenderStyle(StyleRed, fmt.Sprintf(format, args...), l.useColors))
}

// Notice prints a highlighted title followed by a yellow hint, framed by rules.
func (l *Logger) Notice(title, hint string) {
	if l.quiet {
		return
	}
	rule := "----------------------------------------------------------------------------------"

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "\n  %s\n  %s\n  %s\n  %s\n",
		RenderStyle(StyleNotice, title, l.useColors),
		rule,
		RenderStyle(StyleYellow, hint, l.useColors),
		rule)
}

func (l *Logger) line(msg string) {
	stamp := "[" + l.now().Format("15:04:05") + "]"

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s %s\n", RenderStyle(StyleGray, stamp, l.useColors), msg)
}

// FormatDuration renders d the way gulp does: "850 μs", "12 ms", "1.4 s".
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%d μs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%d ms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.1f s", d.Seconds())
	}
}
