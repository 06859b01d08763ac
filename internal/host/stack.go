package host

import (
	"fmt"
	"runtime"
	"strings"
)

func callers(skip int) []runtime.Frame {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	iter := runtime.CallersFrames(pcs[:n])

	var frames []runtime.Frame
	for {
		frame, more := iter.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			frames = append(frames, frame)
		}
		if !more {
			break
		}
	}
	return frames
}

// formatStack renders frames one per line as "at function (file:line:col)".
// Go frames carry no column, so it is always 0.
func formatStack(message string, frames []runtime.Frame) string {
	var b strings.Builder
	b.WriteString(message)
	for _, f := range frames {
		fn := f.Function
		if fn == "" {
			fn = "?"
		}
		fmt.Fprintf(&b, "\n    at %s (%s:%d:0)", fn, f.File, f.Line)
	}
	return b.String()
}
