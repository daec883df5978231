package testfixtures

import (
	"slices"
	"testing"
)

func TestIDGeneratorIsSequential(t *testing.T) {
	t.Parallel()

	gen := NewIDGenerator("booking")
	next := gen.NextFunc()

	if first, second := gen.Next(), next(); first != "booking-001" || second != "booking-002" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if got := gen.Issued(); !slices.Equal(got, []string{"booking-001", "booking-002"}) {
		t.Fatalf("unexpected issued ids: %v", got)
	}
}

func TestIDGeneratorDefaults(t *testing.T) {
	t.Parallel()

	if got := NewIDGenerator("").Next(); got != "id-001" {
		t.Fatalf("expected id-001, got %q", got)
	}
	var gen *IDGenerator
	if got := gen.NextFunc()(); got != "" {
		t.Fatalf("expected empty id from a nil generator, got %q", got)
	}
}
