package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
)

// lineHandler writes one line per log entry:
//
//	2026-01-02 15:04:05 W message key=value ...
type lineHandler struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// newLogger returns a logger that writes entries at or above level to w.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return &log.Logger{
		Handler: &lineHandler{w: w, now: time.Now},
		Level:   level,
	}
}

// HandleLog implements the log.Handler interface.
func (h *lineHandler) HandleLog(e *log.Entry) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %.1s %s", h.now().Format(time.DateTime), strings.ToUpper(e.Level.String()), e.Message)

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields[name])
	}

	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := io.WriteString(h.w, b.String())

	return err
}
