package identity

import "testing"

// P1: auth round-trip.
func TestP1AuthRoundTrip(t *testing.T) {
	a := New("alice", "pw").Mask()
	if !a.MatchPass("alice", "pw") {
		t.Fatal("expected match on correct pass")
	}
	if a.MatchPass("alice", "wrong") {
		t.Fatal("expected mismatch on wrong pass")
	}
	if a.MatchPass("bob", "pw") {
		t.Fatal("expected mismatch on wrong name")
	}
}

func TestMaskIdempotent(t *testing.T) {
	a := New("alice", "pw").Mask()
	b := a.Mask()
	if a != b {
		t.Fatalf("mask not idempotent: %+v vs %+v", a, b)
	}
	if !a.IsMasked() || !b.IsMasked() {
		t.Fatal("expected masked")
	}
}

func TestMatchPassOnPlainAuthor(t *testing.T) {
	a := New("alice", "pw")
	if a.IsMasked() {
		t.Fatal("expected plain author")
	}
	if !a.MatchPass("alice", "pw") {
		t.Fatal("expected match against plaintext author")
	}
}

func TestEncodePass(t *testing.T) {
	a := New("alice", "pw")
	short := a.EncodePass(8)
	if len(short) != 8 {
		t.Fatalf("expected length 8, got %d", len(short))
	}
	full := a.EncodePass(1000)
	if len(full) != 64 {
		t.Fatalf("expected full blake3-256 hex length 64, got %d", len(full))
	}
}
