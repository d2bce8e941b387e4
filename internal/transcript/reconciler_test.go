package transcript

import (
	"testing"
)

func TestReconcilerFirstChunkPassesThrough(t *testing.T) {
	r := NewReconciler()

	got := r.Reconcile("the cat sat on the mat")
	if got != "the cat sat on the mat" {
		t.Errorf("Reconcile = %q, want full first chunk", got)
	}

	if r.Trailing() != "on the mat" {
		t.Errorf("Trailing() = %q, want %q", r.Trailing(), "on the mat")
	}
}

func TestReconcilerStripsOverlappedPrefix(t *testing.T) {
	r := NewReconciler()

	r.Reconcile("the cat sat on the mat")

	got := r.Reconcile("on the mat and purred loudly")
	if got != "and purred loudly" {
		t.Errorf("Reconcile = %q, want %q", got, "and purred loudly")
	}

	if r.Trailing() != "and purred loudly" {
		t.Errorf("Trailing() = %q, want %q", r.Trailing(), "and purred loudly")
	}
}

func TestReconcilerFullyRedundantChunk(t *testing.T) {
	r := NewReconciler()

	r.Reconcile("the cat sat on the mat")

	got := r.Reconcile("on the mat")
	if got != "" {
		t.Errorf("Reconcile of a fully redundant chunk = %q, want empty", got)
	}

	// The trailing words survive so the next chunk still reconciles.
	if r.Trailing() != "on the mat" {
		t.Errorf("Trailing() = %q, want %q", r.Trailing(), "on the mat")
	}

	got = r.Reconcile("on the mat by the fire")
	if got != "by the fire" {
		t.Errorf("Reconcile after redundant chunk = %q, want %q", got, "by the fire")
	}
}

func TestReconcilerNoMatchKeepsText(t *testing.T) {
	r := NewReconciler()

	r.Reconcile("the cat sat on the mat")

	got := r.Reconcile("a completely different sentence")
	if got != "a completely different sentence" {
		t.Errorf("Reconcile = %q, want unmodified text", got)
	}
}

func TestReconcilerWordBoundary(t *testing.T) {
	r := NewReconciler()

	r.Reconcile("he sat on the mat")

	// "on the mat" is not a word-boundary prefix of "on the mattress".
	got := r.Reconcile("on the mattress upstairs")
	if got != "on the mattress upstairs" {
		t.Errorf("Reconcile = %q, want unstripped text", got)
	}
}

func TestReconcilerShortText(t *testing.T) {
	r := NewReconciler()

	got := r.Reconcile("hello")
	if got != "hello" {
		t.Errorf("Reconcile = %q, want %q", got, "hello")
	}

	// Fewer words than the trailing window: all of them are kept.
	if r.Trailing() != "hello" {
		t.Errorf("Trailing() = %q, want %q", r.Trailing(), "hello")
	}
}

func TestReconcilerEmptyAndWhitespace(t *testing.T) {
	r := NewReconciler()

	if got := r.Reconcile(""); got != "" {
		t.Errorf("Reconcile(\"\") = %q, want empty", got)
	}

	if got := r.Reconcile("   "); got != "" {
		t.Errorf("Reconcile of whitespace = %q, want empty", got)
	}

	// Neither call may poison the trailing state.
	if r.Trailing() != "" {
		t.Errorf("Trailing() = %q after empty input, want empty", r.Trailing())
	}
}

func TestReconcilerReset(t *testing.T) {
	r := NewReconciler()

	r.Reconcile("the cat sat on the mat")
	r.Reset()

	got := r.Reconcile("on the mat")
	if got != "on the mat" {
		t.Errorf("Reconcile after Reset = %q, want unstripped text", got)
	}
}
