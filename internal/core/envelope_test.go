package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	got, err := NormalizeName("  Rent ")
	if err != nil || got != "Rent" {
		t.Fatalf("expected Rent, got %q (err=%v)", got, err)
	}

	bads := []string{"", "   ", strings.Repeat("x", MaxNameLength+1)}
	for i, name := range bads {
		if _, err := NormalizeName(name); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}

	// Multi-byte names are measured in characters.
	if _, err := NormalizeName(strings.Repeat("é", MaxNameLength)); err != nil {
		t.Fatalf("expected ok for %d runes, got %v", MaxNameLength, err)
	}
}

func TestErrorKinds(t *testing.T) {
	err := NewError(KindNotFound, "delete envelope", "envelope 7 not found")
	wrapped := fmt.Errorf("handler: %w", err)

	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("expected wrapped error to match ErrNotFound")
	}
	if errors.Is(wrapped, ErrInsufficientFunds) {
		t.Fatalf("kinds must not cross-match")
	}
	if KindOf(wrapped) != KindNotFound {
		t.Fatalf("KindOf = %q, want %q", KindOf(wrapped), KindNotFound)
	}
	if KindOf(errors.New("boom")) != "" {
		t.Fatalf("uncategorized errors have no kind")
	}
	if err.Error() != "delete envelope: envelope 7 not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
