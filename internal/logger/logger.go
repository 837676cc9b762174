// Package logger provides leveled logging for docwatch.
// Debug, Info and Warn messages are printed to stderr only when verbose
// mode is enabled via the --verbose flag. Error and Failure messages are
// always printed: they report per-source failures and integrity problems
// that must never be silent.
package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// errCorruption is matched by Failure to escalate integrity failures.
// Set by SetCorruptionSentinel to avoid an import of the domain package.
var errCorruption error

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// SetCorruptionSentinel registers the error that Failure reports as CORRUPTION.
func SetCorruptionSentinel(err error) {
	mu.Lock()
	defer mu.Unlock()
	errCorruption = err
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "[DEBUG] "+format+"\n", args...)
	}
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "[INFO] "+format+"\n", args...)
	}
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "[WARN] "+format+"\n", args...)
	}
}

// Error prints an error message regardless of verbose mode.
func Error(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	fmt.Fprintf(output, "[ERROR] "+format+"\n", args...)
}

// Failure reports a per-source failure with its stage, source identity
// and cause, plus optional key/value pairs. Integrity failures are
// labelled CORRUPTION.
func Failure(stage, sourceID string, err error, kv ...any) {
	mu.RLock()
	defer mu.RUnlock()

	level := "ERROR"
	if errCorruption != nil && errors.Is(err, errCorruption) {
		level = "CORRUPTION"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] stage=%s source=%s", level, stage, quote(sourceID))
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&sb, " %v=%s", kv[i], quote(fmt.Sprint(kv[i+1])))
	}
	fmt.Fprintf(&sb, " cause=%s\n", quote(fmt.Sprint(err)))
	io.WriteString(output, sb.String()) //nolint:errcheck
}

// quote wraps values containing spaces or quotes.
func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
