package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestCanonicalPairIsOrderInsensitive(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	a1, b1 := CanonicalPair(a, b)
	a2, b2 := CanonicalPair(b, a)

	if a1 != a2 || b1 != b2 {
		t.Fatalf("pair depends on argument order: (%s,%s) vs (%s,%s)", a1, b1, a2, b2)
	}
	if a1.String() > b1.String() {
		t.Fatalf("pair not sorted: %s > %s", a1, b1)
	}
}

func TestProspectiveRefCanonicalizes(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	r1 := ProspectiveRef(a, b)
	r2 := ProspectiveRef(b, a)

	if r1.Persisted() || r2.Persisted() {
		t.Fatal("prospective refs must not be persisted")
	}

	x1, y1 := r1.Pair()
	x2, y2 := r2.Pair()
	if x1 != x2 || y1 != y2 {
		t.Fatal("prospective refs for the same pair should agree")
	}
}

func TestConversationOther(t *testing.T) {
	a, b := CanonicalPair(uuid.New(), uuid.New())
	conv := Conversation{ID: uuid.New(), UserAID: a, UserBID: b}

	if got := conv.Other(a); got != b {
		t.Fatalf("Other(a) = %s, want %s", got, b)
	}
	if got := conv.Other(b); got != a {
		t.Fatalf("Other(b) = %s, want %s", got, a)
	}
	if !conv.HasParticipant(a) || conv.HasParticipant(uuid.New()) {
		t.Fatal("participant check wrong")
	}
}
