// Package videoid extracts canonical video identifiers from URL strings.
//
// A video identifier is an opaque 11-character token ([A-Za-z0-9_-]).
// Extraction tries the known URL shapes in a fixed order and returns the
// first capture. A non-matching input is a normal outcome, not an error.
package videoid

import "regexp"

// The four known URL shapes for a video, in match priority order:
// watch page query parameter, shortened link, short-form video, embed.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]{11})(?:[&#]|$)`),
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})(?:[?&#/]|$)`),
	regexp.MustCompile(`/shorts/([A-Za-z0-9_-]{11})(?:[?&#/]|$)`),
	regexp.MustCompile(`/embed/([A-Za-z0-9_-]{11})(?:[?&#/]|$)`),
}

var idShape = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// FromURL returns the video identifier encoded in rawURL, or "" when the
// input is empty or matches none of the known shapes.
func FromURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	for _, p := range patterns {
		if m := p.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}

// Valid reports whether s has the shape of a video identifier.
func Valid(s string) bool {
	return idShape.MatchString(s)
}
