package query

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSnippetFromFileHighlightsFirstMatch(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "body.txt"), []byte("Rust systems."), 0644); err != nil {
		t.Fatalf("write body.txt: %v", err)
	}

	snippet, err := snippetFromFile(dir, "body.txt", []string{"rust"})
	if err != nil {
		t.Fatalf("snippetFromFile: %v", err)
	}
	if snippet == nil {
		t.Fatal("expected non-nil snippet")
	}
	if !strings.Contains(*snippet, "<em>Rust</em>") {
		t.Errorf("snippet = %q, want to contain <em>Rust</em>", *snippet)
	}
}

func TestSnippetFromFileRuneBoundarySafe(t *testing.T) {
	dir := t.TempDir()
	// A body heavy with multi-byte runes positioned exactly at the window
	// edges; a byte-offset slice here would panic mid-rune.
	body := strings.Repeat("日本語のテキスト", 40) + " match " + strings.Repeat("日本語のテキスト", 40)
	if err := os.WriteFile(filepath.Join(dir, "body.txt"), []byte(body), 0644); err != nil {
		t.Fatalf("write body.txt: %v", err)
	}

	snippet, err := snippetFromFile(dir, "body.txt", []string{"match"})
	if err != nil {
		t.Fatalf("snippetFromFile: %v", err)
	}
	if snippet == nil {
		t.Fatal("expected non-nil snippet")
	}
	if !strings.Contains(*snippet, "<em>match</em>") {
		t.Errorf("snippet = %q, want to contain <em>match</em>", *snippet)
	}
}

func TestSnippetFromFileNoMatchFallsBackToLeadingWindow(t *testing.T) {
	dir := t.TempDir()
	body := "completely unrelated content with no overlap"
	if err := os.WriteFile(filepath.Join(dir, "body.txt"), []byte(body), 0644); err != nil {
		t.Fatalf("write body.txt: %v", err)
	}

	snippet, err := snippetFromFile(dir, "body.txt", []string{"zzzzqqqq"})
	if err != nil {
		t.Fatalf("snippetFromFile: %v", err)
	}
	if snippet == nil {
		t.Fatal("expected non-nil snippet")
	}
	if !strings.HasPrefix(*snippet, "completely") {
		t.Errorf("snippet = %q, want prefix of original body", *snippet)
	}
}

func TestSnippetFromFileEmptyBody(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "body.txt"), []byte(""), 0644); err != nil {
		t.Fatalf("write body.txt: %v", err)
	}

	snippet, err := snippetFromFile(dir, "body.txt", []string{"anything"})
	if err != nil {
		t.Fatalf("snippetFromFile: %v", err)
	}
	if snippet != nil {
		t.Errorf("expected nil snippet for empty body, got %q", *snippet)
	}
}

func TestRawQueryTermsSplitsOnWhitespace(t *testing.T) {
	terms := RawQueryTerms("  rust   programming  ")
	if len(terms) != 2 || terms[0] != "rust" || terms[1] != "programming" {
		t.Errorf("terms = %v, want [rust programming]", terms)
	}
}
