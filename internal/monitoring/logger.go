package monitoring

import (
	"fmt"
	"log"
	"strings"
	"sync"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Field is one labelled value in a diagnostics block.
type Field struct {
	Key   string
	Value interface{}
}

// F builds a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// LogDiagnostics writes a multi-line block: a header line followed by one
// "  key: value" line per field. Multi-line values (stack traces) are
// indented so the block stays readable in journald output.
func LogDiagnostics(header string, fields ...Field) {
	var b strings.Builder
	b.WriteString(header)
	for _, f := range fields {
		v := fmt.Sprint(f.Value)
		v = strings.ReplaceAll(strings.TrimRight(v, "\n"), "\n", "\n    ")
		fmt.Fprintf(&b, "\n  %s: %s", f.Key, v)
	}
	Logf("%s", b.String())
}

// Recorder captures log lines in memory. Install it with SetLogger(r.Logf).
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

// Logf formats and stores one line.
func (r *Recorder) Logf(format string, v ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, v...))
}

// Lines returns a copy of the captured lines.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Contains reports whether any captured line contains substr.
func (r *Recorder) Contains(substr string) bool {
	for _, l := range r.Lines() {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}
