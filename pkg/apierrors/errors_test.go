package apierrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesWrappedKind(t *testing.T) {
	err := Wrap(KindNotFound, "company not found", ErrNotFound)
	if !Is(err, KindNotFound) {
		t.Errorf("Is(err, KindNotFound) = false, want true")
	}
	if Is(err, KindConflict) {
		t.Errorf("Is(err, KindConflict) = true, want false")
	}
}

func TestIsUnwrapsThroughFmtErrorf(t *testing.T) {
	inner := New(KindConflict, "active video already set")
	wrapped := fmt.Errorf("set active video: %w", inner)
	if !Is(wrapped, KindConflict) {
		t.Errorf("Is() did not see through fmt.Errorf wrapping")
	}
}

func TestKindOfReturnsInvariantForUntaggedError(t *testing.T) {
	if got := KindOf(errors.New("plain error")); got != KindInvariant {
		t.Errorf("KindOf(plain error) = %v, want %v", got, KindInvariant)
	}
}

func TestKindOfReturnsTaggedKind(t *testing.T) {
	err := New(KindCredentialExpired, "token expired")
	if got := KindOf(err); got != KindCredentialExpired {
		t.Errorf("KindOf() = %v, want %v", got, KindCredentialExpired)
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(KindPermanentStorage, "upload failed", errors.New("disk full"))
	want := "upload failed: disk full"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestErrorMessageWithoutCause(t *testing.T) {
	err := New(KindInput, "title is required")
	if err.Error() != "title is required" {
		t.Errorf("Error() = %q, want %q", err.Error(), "title is required")
	}
}
