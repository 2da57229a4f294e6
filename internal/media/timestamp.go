package media

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	// H:MM:SS or HH:MM:SS, minutes and seconds 00-59
	hmsRe = regexp.MustCompile(`(?:^|[^\d:])(\d{1,2}):([0-5]\d):([0-5]\d)(?:$|[^\d:])`)
	// MM:SS, for models that drop a zero hour; not part of a longer
	// colon-separated run
	msRe = regexp.MustCompile(`(?:^|[^\d:])([0-5]?\d):([0-5]\d)(?:$|[^\d:])`)
)

// ExtractTimestamp finds the first timestamp in a model response and
// normalises it to HH:MM:SS.
func ExtractTimestamp(text string) (string, bool) {
	if m := hmsRe.FindStringSubmatch(text); m != nil {
		return format(m[1], m[2], m[3]), true
	}
	if m := msRe.FindStringSubmatch(text); m != nil {
		return format("0", m[1], m[2]), true
	}
	return "", false
}

func format(h, m, s string) string {
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	ss, _ := strconv.Atoi(s)
	return fmt.Sprintf("%02d:%02d:%02d", hh, mm, ss)
}
