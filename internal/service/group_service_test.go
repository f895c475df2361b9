package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/creatorsgardenofficial/garden-messaging/internal/domain"
	"github.com/creatorsgardenofficial/garden-messaging/internal/repository/memory"
)

func testUserWithPublicID(username, publicID string) domain.User {
	u := testUser(username)
	u.PublicID = &publicID
	return u
}

func newGroupService(store *memory.Store) *GroupService {
	return NewGroupService(store.Groups(), store.GroupMessages(), store.Users(), nil)
}

func TestCreateGroupResolvesMembers(t *testing.T) {
	owner := testUserWithPublicID("owner", "pub-owner")
	friend := testUserWithPublicID("friend", "pub-friend")
	store := newTestStore(t, owner, friend)
	svc := newGroupService(store)
	ctx := context.Background()

	group, err := svc.Create(ctx, owner.ID, CreateGroupInput{
		Name: "creators",
		// Misses and duplicates are dropped, the owner's own id is
		// ignored as an invitee.
		MemberPublicIDs: []string{"pub-friend", "pub-friend", "pub-owner", "no-such-user"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(group.ParticipantIDs) != 2 {
		t.Fatalf("participants = %d, want 2", len(group.ParticipantIDs))
	}
	if !group.HasParticipant(owner.ID) || !group.HasParticipant(friend.ID) {
		t.Fatal("both owner and friend should be participants")
	}
}

func TestCreateGroupRejectsEmptyMembership(t *testing.T) {
	owner := testUserWithPublicID("owner", "pub-owner")
	store := newTestStore(t, owner)
	svc := newGroupService(store)
	ctx := context.Background()

	_, err := svc.Create(ctx, owner.ID, CreateGroupInput{
		Name:            "just me",
		MemberPublicIDs: []string{"nobody", "pub-owner"},
	})
	if err != ErrEmptyMembership {
		t.Fatalf("expected ErrEmptyMembership, got %v", err)
	}

	if _, err := svc.Create(ctx, owner.ID, CreateGroupInput{Name: "   "}); err != ErrEmptyGroupName {
		t.Fatalf("expected ErrEmptyGroupName, got %v", err)
	}
}

func TestAddParticipantIdempotent(t *testing.T) {
	owner := testUserWithPublicID("owner", "pub-owner")
	friend := testUserWithPublicID("friend", "pub-friend")
	late := testUser("late")
	store := newTestStore(t, owner, friend, late)
	svc := newGroupService(store)
	ctx := context.Background()

	group, err := svc.Create(ctx, owner.ID, CreateGroupInput{
		Name:            "creators",
		MemberPublicIDs: []string{"pub-friend"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.AddParticipant(ctx, group.ID, owner.ID, late.ID); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.AddParticipant(ctx, group.ID, owner.ID, late.ID); err != nil {
		t.Fatalf("re-add should be a no-op, got %v", err)
	}

	got, err := svc.GetByID(ctx, owner.ID, group.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.ParticipantIDs) != 3 {
		t.Fatalf("participants = %d, want 3", len(got.ParticipantIDs))
	}

	// Non-members cannot add.
	outsider := testUser("outsider")
	store.AddUser(outsider)
	if err := svc.AddParticipant(ctx, group.ID, outsider.ID, outsider.ID); err != ErrNotAMember {
		t.Fatalf("outsider add: expected ErrNotAMember, got %v", err)
	}
}

func TestLeaveGroup(t *testing.T) {
	owner := testUserWithPublicID("owner", "pub-owner")
	friend := testUserWithPublicID("friend", "pub-friend")
	store := newTestStore(t, owner, friend)
	svc := newGroupService(store)
	ctx := context.Background()

	group, err := svc.Create(ctx, owner.ID, CreateGroupInput{
		Name:            "creators",
		MemberPublicIDs: []string{"pub-friend"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Leave(ctx, group.ID, friend.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	// Leaving again is a no-op.
	if err := svc.Leave(ctx, group.ID, friend.ID); err != nil {
		t.Fatalf("second leave: %v", err)
	}

	if _, err := svc.SendMessage(ctx, group.ID, friend.ID, "still here?"); err != ErrNotAMember {
		t.Fatalf("send after leave: expected ErrNotAMember, got %v", err)
	}

	// Everyone can leave; the group survives with no participants.
	if err := svc.Leave(ctx, group.ID, owner.ID); err != nil {
		t.Fatalf("owner leave: %v", err)
	}
	if _, err := svc.GetByID(ctx, owner.ID, group.ID); err != ErrNotAMember {
		t.Fatalf("get after leave: expected ErrNotAMember, got %v", err)
	}
}

func TestGroupMessageReadTracking(t *testing.T) {
	owner := testUserWithPublicID("owner", "pub-owner")
	friend := testUserWithPublicID("friend", "pub-friend")
	store := newTestStore(t, owner, friend)
	svc := newGroupService(store)
	ctx := context.Background()

	group, err := svc.Create(ctx, owner.ID, CreateGroupInput{
		Name:            "creators",
		MemberPublicIDs: []string{"pub-friend"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	msg, err := svc.SendMessage(ctx, group.ID, owner.ID, "hello all")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !msg.ReadByUser(owner.ID) {
		t.Fatal("sender should start in the read set")
	}
	if msg.ReadByUser(friend.ID) {
		t.Fatal("other participants start unread")
	}

	unreadOf := func(userID uuid.UUID) int {
		t.Helper()
		groups, err := svc.ListGroups(ctx, userID)
		if err != nil {
			t.Fatalf("list groups: %v", err)
		}
		if len(groups) != 1 {
			t.Fatalf("expected 1 group, got %d", len(groups))
		}
		return groups[0].UnreadCount
	}

	if got := unreadOf(friend.ID); got != 1 {
		t.Fatalf("friend unread = %d, want 1", got)
	}
	if got := unreadOf(owner.ID); got != 0 {
		t.Fatalf("owner unread = %d, want 0", got)
	}

	if err := svc.MarkRead(ctx, group.ID, friend.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if got := unreadOf(friend.ID); got != 0 {
		t.Fatalf("friend unread after mark read = %d, want 0", got)
	}
}

func TestGroupMessageAuthorship(t *testing.T) {
	owner := testUserWithPublicID("owner", "pub-owner")
	friend := testUserWithPublicID("friend", "pub-friend")
	store := newTestStore(t, owner, friend)
	svc := newGroupService(store)
	ctx := context.Background()

	group, err := svc.Create(ctx, owner.ID, CreateGroupInput{
		Name:            "creators",
		MemberPublicIDs: []string{"pub-friend"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	msg, err := svc.SendMessage(ctx, group.ID, owner.ID, "original")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := svc.EditMessage(ctx, friend.ID, msg.ID, "hijacked"); err != ErrNotGroupMessageSender {
		t.Fatalf("edit by non-author: expected ErrNotGroupMessageSender, got %v", err)
	}
	if err := svc.DeleteMessage(ctx, friend.ID, msg.ID); err != ErrNotGroupMessageSender {
		t.Fatalf("delete by non-author: expected ErrNotGroupMessageSender, got %v", err)
	}

	edited, err := svc.EditMessage(ctx, owner.ID, msg.ID, "fixed")
	if err != nil {
		t.Fatalf("edit by author: %v", err)
	}
	if edited.Content != "fixed" {
		t.Fatalf("content not updated: %q", edited.Content)
	}

	if err := svc.DeleteMessage(ctx, owner.ID, msg.ID); err != nil {
		t.Fatalf("delete by author: %v", err)
	}
	if _, err := svc.EditMessage(ctx, owner.ID, msg.ID, "gone"); err != ErrGroupMessageNotFound {
		t.Fatalf("edit after delete: expected ErrGroupMessageNotFound, got %v", err)
	}
}

func TestListGroupMessagesRequiresMembership(t *testing.T) {
	owner := testUserWithPublicID("owner", "pub-owner")
	friend := testUserWithPublicID("friend", "pub-friend")
	outsider := testUser("outsider")
	store := newTestStore(t, owner, friend, outsider)
	svc := newGroupService(store)
	ctx := context.Background()

	group, err := svc.Create(ctx, owner.ID, CreateGroupInput{
		Name:            "creators",
		MemberPublicIDs: []string{"pub-friend"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.ListMessages(ctx, outsider.ID, group.ID, nil, 50); err != ErrNotAMember {
		t.Fatalf("outsider list: expected ErrNotAMember, got %v", err)
	}
	if err := svc.MarkRead(ctx, group.ID, outsider.ID); err != ErrNotAMember {
		t.Fatalf("outsider mark read: expected ErrNotAMember, got %v", err)
	}
}
