package domain

import (
	"errors"
	"testing"
)

func TestError_Is_ComparesByKind(t *testing.T) {
	err := New(KindNotFound, "session xyz not found", nil)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Error("expected errors.Is to match by Kind regardless of Message")
	}
	if errors.Is(err, ErrConflict) {
		t.Error("different Kind must not match")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("network timeout")
	err := New(KindStorage, "write failed", cause)
	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the wrapped cause")
	}
}

func TestKindOf_DefaultsToInternal(t *testing.T) {
	if got := KindOf(errors.New("plain error")); got != KindInternal {
		t.Errorf("KindOf(plain error) = %s, want %s", got, KindInternal)
	}
	if got := KindOf(New(KindConflict, "x", nil)); got != KindConflict {
		t.Errorf("KindOf(domain error) = %s, want %s", got, KindConflict)
	}
}

func TestKind_HTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:     400,
		KindMissingChunks:  400,
		KindDigestMismatch: 400,
		KindStructural:     400,
		KindNotFound:       404,
		KindConflict:       409,
		KindBackpressure:   503,
		KindStorage:        500,
		KindInternal:       500,
	}
	for kind, want := range cases {
		if got := kind.HTTPStatus(); got != want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", kind, got, want)
		}
	}
}

func TestWithDetails_ReturnsSameErrorForChaining(t *testing.T) {
	err := New(KindMissingChunks, "chunks missing", nil).WithDetails(map[string]any{"missingChunks": []int{1, 2}})
	if err.Details == nil {
		t.Fatal("expected Details to be set")
	}
	missing, ok := err.Details["missingChunks"].([]int)
	if !ok || len(missing) != 2 {
		t.Errorf("unexpected Details: %v", err.Details)
	}
}
