package export

import (
	"strings"
	"testing"
)

func TestSanitizeName_ControlChars(t *testing.T) {
	got := SanitizeName(" A\nB\rC\tD\x00 ", 100)
	if strings.ContainsAny(got, "\n\r\t\x00") {
		t.Fatalf("sanitize output contains control chars: %q", got)
	}
	if got != "ABCD" {
		t.Fatalf("SanitizeName = %q, want %q", got, "ABCD")
	}
}

func TestSanitizeName_HostileRunes(t *testing.T) {
	got := SanitizeName(`a/b\c:d*e?f"g<h>i|j`, 100)
	if strings.ContainsAny(got, `/\:*?"<>|`) {
		t.Fatalf("sanitize output contains hostile runes: %q", got)
	}
}

func TestSanitizeName_KeepsFriendlyPunctuation(t *testing.T) {
	got := SanitizeName("Final Cut v2.1 (draft), take-3_ok", 100)
	if got != "Final Cut v2.1 (draft), take-3_ok" {
		t.Fatalf("SanitizeName mangled friendly input: %q", got)
	}
}

func TestSanitizeName_Truncates(t *testing.T) {
	got := SanitizeName(strings.Repeat("x", 300), 64)
	if len([]rune(got)) != 64 {
		t.Fatalf("SanitizeName length = %d, want 64", len([]rune(got)))
	}
}

func TestSanitizeName_TrimsWhitespace(t *testing.T) {
	if got := SanitizeName("   padded   ", 100); got != "padded" {
		t.Fatalf("SanitizeName = %q, want %q", got, "padded")
	}
}
