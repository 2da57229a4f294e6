package locator

import (
	"regexp"
	"strconv"
	"strings"
)

// FrameMarker is the pseudo-filename Python gives code passed with -c (or
// exec'd from a string). Only frames carrying it point into the submitted
// code; frames in library files are ignored.
const FrameMarker = "<string>"

var lineNumberRe = regexp.MustCompile(`line (\d+)`)

// Fallback attributes a failure from the traceback alone: the innermost
// (last) frame inside the submitted code wins. It returns [1] when no such
// frame exists. It never calls out and is deterministic.
func Fallback(trace string) []int {
	if line, ok := lastFrameLine(trace); ok {
		return []int{line}
	}
	return []int{1}
}

func lastFrameLine(trace string) (int, bool) {
	lines := strings.Split(trace, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if !strings.Contains(line, FrameMarker) || !strings.Contains(line, "line") {
			continue
		}
		m := lineNumberRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			// line 0 is not a 1-based source line and overlong digit
			// runs overflow Atoi; either way try the next outer frame
			continue
		}
		return n, true
	}
	return 0, false
}
