package transform_test

import (
	"errors"
	"testing"

	"github.com/charq/charq/internal/transform"
)

func TestCountCharsASCII(t *testing.T) {
	n, err := transform.CountChars("hello", 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Fatalf("expected 5, got %d", n)
	}
}

func TestCountCharsMultibyte(t *testing.T) {
	// Each of these runs is one code point despite being multiple bytes
	// in UTF-8, which is exactly the distinction a byte-counting
	// implementation would get wrong.
	n, err := transform.CountChars("héllo 世界", 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 8 {
		t.Fatalf("expected 8 code points, got %d", n)
	}
}

func TestCountCharsAlwaysFaults(t *testing.T) {
	_, err := transform.CountChars("x", 1)
	if !errors.Is(err, transform.ErrInjectedFault) {
		t.Fatalf("expected ErrInjectedFault, got %v", err)
	}
}

func TestCountCharsNeverFaults(t *testing.T) {
	for i := 0; i < 20; i++ {
		if _, err := transform.CountChars("x", 0); err != nil {
			t.Fatalf("expected no fault at rate 0, got %v", err)
		}
	}
}
