package videoid

import "testing"

func TestFromURL_KnownShapes(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"watch", "https://www.youtube.com/watch?v=abcEFghiJKL", "abcEFghiJKL"},
		{"watch relative", "/watch?v=abcEFghiJKL", "abcEFghiJKL"},
		{"watch extra params", "/watch?v=abcEFghiJKL&t=120s", "abcEFghiJKL"},
		{"watch second param", "/watch?list=PL123&v=abcEFghiJKL", "abcEFghiJKL"},
		{"short link", "https://youtu.be/abcEFghiJKL", "abcEFghiJKL"},
		{"short link with query", "https://youtu.be/abcEFghiJKL?si=xyz", "abcEFghiJKL"},
		{"shorts", "https://www.youtube.com/shorts/abcEFghiJKL", "abcEFghiJKL"},
		{"shorts relative", "/shorts/abcEFghiJKL", "abcEFghiJKL"},
		{"embed", "https://www.youtube.com/embed/abcEFghiJKL", "abcEFghiJKL"},
		{"underscore and dash", "/watch?v=a_c-Fgh1JK9", "a_c-Fgh1JK9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromURL(tt.url); got != tt.want {
				t.Errorf("FromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestFromURL_NoMatch(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"channel page", "https://www.youtube.com/@GothamChess"},
		{"playlist only", "/playlist?list=PL123"},
		{"token too short", "/watch?v=abcEFghiJK"},
		{"token too long trailing", "/watch?v=abcEFghiJKLM"},
		{"invalid characters", "/watch?v=abcEFghiJ!L"},
		{"unrelated site", "https://example.com/page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromURL(tt.url); got != "" {
				t.Errorf("FromURL(%q) = %q, want empty", tt.url, got)
			}
		})
	}
}

func TestValid(t *testing.T) {
	if !Valid("abcEFghiJKL") {
		t.Error("Valid: expected true for well-formed id")
	}
	if Valid("short") || Valid("abcEFghiJKLM") || Valid("abc EFghiJK") {
		t.Error("Valid: expected false for malformed ids")
	}
}
