package service

import (
	"context"
	"testing"
)

func TestBlockSelf(t *testing.T) {
	alice := testUser("alice")
	store := newTestStore(t, alice)
	svc := NewBlockService(store.Blocks(), store.Users())

	if err := svc.Block(context.Background(), alice.ID, alice.ID); err != ErrCannotBlockSelf {
		t.Fatalf("expected ErrCannotBlockSelf, got %v", err)
	}
}

func TestBlockUnknownUser(t *testing.T) {
	alice, ghost := testUser("alice"), testUser("ghost")
	store := newTestStore(t, alice)
	svc := NewBlockService(store.Blocks(), store.Users())

	if err := svc.Block(context.Background(), alice.ID, ghost.ID); err != ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestBlockIdempotentAndListed(t *testing.T) {
	alice, bob := testUser("alice"), testUser("bob")
	store := newTestStore(t, alice, bob)
	svc := NewBlockService(store.Blocks(), store.Users())
	ctx := context.Background()

	if err := svc.Block(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("block: %v", err)
	}
	if err := svc.Block(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("repeat block should be a no-op, got %v", err)
	}

	blocked, err := svc.ListBlocked(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(blocked) != 1 || blocked[0].ID != bob.ID {
		t.Fatalf("unexpected block list: %+v", blocked)
	}

	// Unblock is idempotent too.
	if err := svc.Unblock(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if err := svc.Unblock(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("repeat unblock should be a no-op, got %v", err)
	}
	if got, _ := svc.IsBlocked(ctx, alice.ID, bob.ID); got {
		t.Fatal("block should be gone")
	}
}
