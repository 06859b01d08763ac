package flush

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
)

// MaxStackFrames bounds the frames kept from one stack trace.
const MaxStackFrames = 10

var locationPattern = regexp.MustCompile(`^(.+):(\d+):(\d+)$`)

// ParseStack extracts at most MaxStackFrames frames from a textual stack, in
// order. Lines that do not start with "at" are not frames.
func ParseStack(stack string) []domain.StackFrame {
	frames := []domain.StackFrame{}
	for _, line := range strings.Split(stack, "\n") {
		frame, ok := parseStackLine(line)
		if !ok {
			continue
		}
		frames = append(frames, frame)
		if len(frames) >= MaxStackFrames {
			break
		}
	}
	return frames
}

func parseStackLine(line string) (domain.StackFrame, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "at") {
		return domain.StackFrame{}, false
	}

	tokens := strings.Fields(line)
	var frame domain.StackFrame
	if len(tokens) == 3 {
		frame.FunctionName = tokens[1]
	}

	location := strings.TrimSuffix(strings.TrimPrefix(tokens[len(tokens)-1], "("), ")")
	m := locationPattern.FindStringSubmatch(location)
	if m == nil {
		return frame, true
	}

	lineno, err := strconv.Atoi(m[2])
	if err != nil {
		return domain.StackFrame{}, true
	}
	colno, err := strconv.Atoi(m[3])
	if err != nil {
		return domain.StackFrame{}, true
	}
	frame.Filename = m[1]
	frame.Lineno = lineno
	frame.Colno = colno
	return frame, true
}
