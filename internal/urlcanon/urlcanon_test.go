package urlcanon

import "testing"

func TestCanonicalizeStripsTrackingAndSorts(t *testing.T) {
	got, err := Canonicalize("HTTPS://Example.COM/a/?utm_source=x&b=2&a=1#frag")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://example.com/a?a=1&b=2"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	once, err := Canonicalize("HTTPS://Example.COM/a/?utm_source=x&b=2&a=1#frag")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, err := Canonicalize(once)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if once != twice {
		t.Errorf("canonicalize not idempotent: %q vs %q", once, twice)
	}
}

func TestCanonicalizeEquivalentInputs(t *testing.T) {
	a, _ := Canonicalize("HTTPS://Example.COM/a/?utm_source=x&b=2&a=1#frag")
	b, _ := Canonicalize("https://example.com/a?a=1&b=2")
	if a != b {
		t.Errorf("expected equal canonical urls, got %q and %q", a, b)
	}
}

func TestCanonicalizePreservesRootSlash(t *testing.T) {
	got, err := Canonicalize("https://example.com/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://example.com/" {
		t.Errorf("got %q, want root slash preserved", got)
	}
}

func TestCanonicalizeDefaultsScheme(t *testing.T) {
	got, err := Canonicalize("example.com/path")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://example.com/path" {
		t.Errorf("got %q", got)
	}
}

func TestDomain(t *testing.T) {
	if got := Domain("https://example.com/a"); got != "example.com" {
		t.Errorf("got %q", got)
	}
}
