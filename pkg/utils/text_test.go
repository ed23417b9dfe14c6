package utils

import "testing"

func TestTruncate(t *testing.T) {
	tests := []struct {
		s      string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello world", 5, "hello..."},
		{"hello", 0, "hello"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.s, tt.maxLen); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
		}
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a  b\tc\nd", "a b c d"},
		{"  leading and trailing  ", "leading and trailing"},
		{"", ""},
		{"\n\t ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeWhitespace(tt.in); got != tt.want {
			t.Errorf("NormalizeWhitespace(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizedLen(t *testing.T) {
	if got := NormalizedLen("a  b"); got != 3 {
		t.Errorf("NormalizedLen = %d, want 3", got)
	}
	if got := NormalizedLen("   "); got != 0 {
		t.Errorf("NormalizedLen = %d, want 0", got)
	}
}
