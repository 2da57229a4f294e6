package media

import (
	"net/url"
	"regexp"
	"strings"
)

// YouTube video ids are 11 characters from the URL-safe base64 alphabet.
var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// pathPrefixes are the path shapes that carry the id as the next segment.
var pathPrefixes = []string{"/embed/", "/shorts/", "/live/", "/v/", "/e/"}

// ParseVideoID extracts a YouTube video id from the common URL shapes:
//
//	https://www.youtube.com/watch?v=ID (also m., music. and extra params)
//	https://youtu.be/ID?t=42
//	https://www.youtube.com/embed/ID, /shorts/ID, /live/ID, /v/ID
//	https://www.youtube-nocookie.com/embed/ID
//	ID (a bare 11-character id)
//
// It returns false for anything else; callers then pass the original URL
// through untouched and let the downloader decide.
func ParseVideoID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if videoIDRe.MatchString(raw) {
		return raw, true
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtu.be":
		return validID(firstSegment(u.Path))
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if u.Path == "/watch" {
			return validID(u.Query().Get("v"))
		}
		for _, prefix := range pathPrefixes {
			if strings.HasPrefix(u.Path, prefix) {
				return validID(firstSegment(strings.TrimPrefix(u.Path, prefix)))
			}
		}
	}
	return "", false
}

// CanonicalURL rewrites any recognised video reference to the plain watch
// URL, dropping playlist and timing parameters. Unrecognised input is
// returned unchanged.
func CanonicalURL(raw string) string {
	id, ok := ParseVideoID(raw)
	if !ok {
		return raw
	}
	return "https://www.youtube.com/watch?v=" + id
}

func firstSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}

func validID(id string) (string, bool) {
	if videoIDRe.MatchString(id) {
		return id, true
	}
	return "", false
}
