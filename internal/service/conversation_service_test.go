package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/creatorsgardenofficial/garden-messaging/internal/domain"
	"github.com/creatorsgardenofficial/garden-messaging/internal/repository/memory"
)

func newTestStore(t *testing.T, users ...domain.User) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	for _, u := range users {
		store.AddUser(u)
	}
	return store
}

func testUser(username string) domain.User {
	return domain.User{
		ID:          uuid.New(),
		Username:    username,
		DisplayName: username,
		Status:      domain.StatusActive,
	}
}

func newConvService(store *memory.Store) *ConversationService {
	return NewConversationService(store.Conversations(), store.Messages(), store.Users(), store.Blocks(), nil)
}

func TestResolveSelf(t *testing.T) {
	alice := testUser("alice")
	store := newTestStore(t, alice)
	svc := newConvService(store)

	if _, err := svc.Resolve(context.Background(), alice.ID, alice.ID); err != ErrInvalidParticipant {
		t.Fatalf("expected ErrInvalidParticipant, got %v", err)
	}
}

func TestResolveDoesNotPersist(t *testing.T) {
	alice, bob := testUser("alice"), testUser("bob")
	store := newTestStore(t, alice, bob)
	svc := newConvService(store)
	ctx := context.Background()

	res, err := svc.Resolve(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Ref.Persisted() {
		t.Fatal("expected a prospective ref for a pair with no messages")
	}
	if res.Conversation != nil {
		t.Fatal("expected nil conversation before first send")
	}

	convs, err := svc.ListConversations(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(convs) != 0 {
		t.Fatalf("resolve should not create conversations, listing has %d", len(convs))
	}
}

func TestSendMaterializesOnce(t *testing.T) {
	alice, bob := testUser("alice"), testUser("bob")
	store := newTestStore(t, alice, bob)
	svc := newConvService(store)
	ctx := context.Background()

	res, err := svc.Resolve(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	first, err := svc.SendMessage(ctx, alice.ID, res.Ref, "hey")
	if err != nil {
		t.Fatalf("first send: %v", err)
	}

	// Resolving from the other side must find the same conversation.
	back, err := svc.Resolve(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("resolve from other side: %v", err)
	}
	if !back.Ref.Persisted() {
		t.Fatal("expected a persisted ref after first send")
	}
	if back.Ref.ID() != first.ConversationID {
		t.Fatalf("pair resolved to a different conversation: %s vs %s", back.Ref.ID(), first.ConversationID)
	}

	reply, err := svc.SendMessage(ctx, bob.ID, back.Ref, "hi back")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply.ConversationID != first.ConversationID {
		t.Fatalf("reply landed in a different conversation")
	}
}

func TestConcurrentFirstSendCollapses(t *testing.T) {
	alice, bob := testUser("alice"), testUser("bob")
	store := newTestStore(t, alice, bob)
	svc := newConvService(store)
	ctx := context.Background()

	refA := domain.ProspectiveRef(alice.ID, bob.ID)
	refB := domain.ProspectiveRef(bob.ID, alice.ID)

	var wg sync.WaitGroup
	var msgA, msgB *domain.Message
	var errA, errB error

	wg.Add(2)
	go func() {
		defer wg.Done()
		msgA, errA = svc.SendMessage(ctx, alice.ID, refA, "from alice")
	}()
	go func() {
		defer wg.Done()
		msgB, errB = svc.SendMessage(ctx, bob.ID, refB, "from bob")
	}()
	wg.Wait()

	if errA != nil || errB != nil {
		t.Fatalf("sends failed: %v / %v", errA, errB)
	}
	if msgA.ConversationID != msgB.ConversationID {
		t.Fatalf("racing first sends produced two conversations: %s and %s", msgA.ConversationID, msgB.ConversationID)
	}
}

func TestBlockStopsBothDirections(t *testing.T) {
	alice, bob := testUser("alice"), testUser("bob")
	store := newTestStore(t, alice, bob)
	svc := newConvService(store)
	blocks := NewBlockService(store.Blocks(), store.Users())
	ctx := context.Background()

	first, err := svc.SendMessage(ctx, alice.ID, domain.ProspectiveRef(alice.ID, bob.ID), "before block")
	if err != nil {
		t.Fatalf("send before block: %v", err)
	}

	if err := blocks.Block(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("block: %v", err)
	}

	// Resolving from either side is vetoed while the block stands.
	if _, err := svc.Resolve(ctx, alice.ID, bob.ID); err != ErrBlocked {
		t.Fatalf("blocker resolve: expected ErrBlocked, got %v", err)
	}
	if _, err := svc.Resolve(ctx, bob.ID, alice.ID); err != ErrBlocked {
		t.Fatalf("blocked resolve: expected ErrBlocked, got %v", err)
	}

	ref := domain.PersistedRef(first.ConversationID)
	if _, err := svc.SendMessage(ctx, alice.ID, ref, "blocker sends"); err != ErrBlocked {
		t.Fatalf("blocker send: expected ErrBlocked, got %v", err)
	}
	if _, err := svc.SendMessage(ctx, bob.ID, ref, "blocked sends"); err != ErrBlocked {
		t.Fatalf("blocked send: expected ErrBlocked, got %v", err)
	}

	// The relation is directed: only alice holds a block.
	if got, _ := blocks.IsBlocked(ctx, alice.ID, bob.ID); !got {
		t.Fatal("alice should hold a block against bob")
	}
	if got, _ := blocks.IsBlocked(ctx, bob.ID, alice.ID); got {
		t.Fatal("bob should not hold a block against alice")
	}

	// The conversation disappears from the blocker's listing only.
	aliceConvs, err := svc.ListConversations(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list alice: %v", err)
	}
	if len(aliceConvs) != 0 {
		t.Fatalf("blocker's listing should hide the conversation, has %d", len(aliceConvs))
	}
	bobConvs, err := svc.ListConversations(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list bob: %v", err)
	}
	if len(bobConvs) != 1 {
		t.Fatalf("blocked side keeps the conversation, has %d", len(bobConvs))
	}

	// Unblocking restores messaging.
	if err := blocks.Unblock(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if _, err := svc.SendMessage(ctx, bob.ID, ref, "after unblock"); err != nil {
		t.Fatalf("send after unblock: %v", err)
	}
}

func TestEditAndDeleteRequireAuthorship(t *testing.T) {
	alice, bob := testUser("alice"), testUser("bob")
	store := newTestStore(t, alice, bob)
	svc := newConvService(store)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, alice.ID, domain.ProspectiveRef(alice.ID, bob.ID), "original")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := svc.EditMessage(ctx, bob.ID, msg.ID, "hijacked"); err != ErrNotMessageSender {
		t.Fatalf("edit by receiver: expected ErrNotMessageSender, got %v", err)
	}
	if err := svc.DeleteMessage(ctx, bob.ID, msg.ID); err != ErrNotMessageSender {
		t.Fatalf("delete by receiver: expected ErrNotMessageSender, got %v", err)
	}

	edited, err := svc.EditMessage(ctx, alice.ID, msg.ID, "fixed")
	if err != nil {
		t.Fatalf("edit by author: %v", err)
	}
	if edited.Content != "fixed" {
		t.Fatalf("content not updated: %q", edited.Content)
	}
	if edited.UpdatedAt == nil {
		t.Fatal("edit should stamp updated_at")
	}

	if err := svc.DeleteMessage(ctx, alice.ID, msg.ID); err != nil {
		t.Fatalf("delete by author: %v", err)
	}
	if _, err := svc.EditMessage(ctx, alice.ID, msg.ID, "gone"); err != ErrMessageNotFound {
		t.Fatalf("edit after delete: expected ErrMessageNotFound, got %v", err)
	}
}

func TestUnreadLifecycle(t *testing.T) {
	u1, u2 := testUser("u1"), testUser("u2")
	store := newTestStore(t, u1, u2)
	svc := newConvService(store)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, u1.ID, domain.ProspectiveRef(u1.ID, u2.ID), "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	unreadOf := func(userID uuid.UUID) int {
		t.Helper()
		convs, err := svc.ListConversations(ctx, userID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(convs) != 1 {
			t.Fatalf("expected 1 conversation, got %d", len(convs))
		}
		return convs[0].UnreadCount
	}

	if got := unreadOf(u2.ID); got != 1 {
		t.Fatalf("receiver unread = %d, want 1", got)
	}
	if got := unreadOf(u1.ID); got != 0 {
		t.Fatalf("sender unread = %d, want 0", got)
	}

	if err := svc.MarkRead(ctx, u2.ID, msg.ConversationID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if got := unreadOf(u2.ID); got != 0 {
		t.Fatalf("unread after mark read = %d, want 0", got)
	}

	if _, err := svc.SendMessage(ctx, u2.ID, domain.PersistedRef(msg.ConversationID), "reply"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if got := unreadOf(u1.ID); got != 1 {
		t.Fatalf("u1 unread after reply = %d, want 1", got)
	}
}

func TestListMessagesRequiresParticipant(t *testing.T) {
	alice, bob, eve := testUser("alice"), testUser("bob"), testUser("eve")
	store := newTestStore(t, alice, bob, eve)
	svc := newConvService(store)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, alice.ID, domain.ProspectiveRef(alice.ID, bob.ID), "secret")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := svc.ListMessages(ctx, eve.ID, msg.ConversationID, nil, 50); err != ErrNotParticipant {
		t.Fatalf("outsider listing: expected ErrNotParticipant, got %v", err)
	}
	if err := svc.MarkRead(ctx, eve.ID, msg.ConversationID); err != ErrNotParticipant {
		t.Fatalf("outsider mark read: expected ErrNotParticipant, got %v", err)
	}
}

func TestListMessagesPagination(t *testing.T) {
	alice, bob := testUser("alice"), testUser("bob")
	store := newTestStore(t, alice, bob)
	svc := newConvService(store)
	ctx := context.Background()

	first, err := svc.SendMessage(ctx, alice.ID, domain.ProspectiveRef(alice.ID, bob.ID), "msg 0")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	ref := domain.PersistedRef(first.ConversationID)
	for i := 1; i < 5; i++ {
		time.Sleep(time.Millisecond)
		if _, err := svc.SendMessage(ctx, alice.ID, ref, "more"); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	page, err := svc.ListMessages(ctx, bob.ID, first.ConversationID, nil, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Messages) != 3 {
		t.Fatalf("page size = %d, want 3", len(page.Messages))
	}
	if !page.HasMore {
		t.Fatal("expected more pages")
	}

	cursor := page.Messages[0].ID
	rest, err := svc.ListMessages(ctx, bob.ID, first.ConversationID, &cursor, 3)
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(rest.Messages) != 2 {
		t.Fatalf("second page size = %d, want 2", len(rest.Messages))
	}
	if rest.HasMore {
		t.Fatal("expected no more pages")
	}
}
