package sqlite

import "time"

// gorm models for the single-node sqlite backend. Ids are uuid strings;
// the group message read-set is a join table since sqlite has no array
// columns.

type User struct {
	ID          string `gorm:"primaryKey"`
	Username    string `gorm:"size:50;uniqueIndex;not null"`
	DisplayName string `gorm:"size:100;not null"`
	PublicID    *string `gorm:"size:50;uniqueIndex"`
	Status      string `gorm:"size:20;not null;default:active"`
	CreatedAt   time.Time
}

type Conversation struct {
	ID            string `gorm:"primaryKey"`
	UserAID       string `gorm:"not null;uniqueIndex:idx_conversation_pair"`
	UserBID       string `gorm:"not null;uniqueIndex:idx_conversation_pair"`
	CreatedAt     time.Time
	LastMessageAt *time.Time
}

type Message struct {
	ID             string `gorm:"primaryKey"`
	ConversationID string `gorm:"not null;index:idx_message_conversation"`
	SenderID       string `gorm:"not null"`
	ReceiverID     string `gorm:"not null"`
	Content        string `gorm:"not null"`
	Read           bool   `gorm:"not null;default:false"`
	CreatedAt      time.Time `gorm:"index:idx_message_conversation"`
	UpdatedAt      *time.Time
}

type GroupChat struct {
	ID            string `gorm:"primaryKey"`
	Name          string `gorm:"size:100;not null"`
	Description   *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastMessageAt *time.Time
}

type GroupMember struct {
	GroupChatID string `gorm:"primaryKey"`
	UserID      string `gorm:"primaryKey;index"`
	JoinedAt    time.Time
}

type GroupMessage struct {
	ID             string `gorm:"primaryKey"`
	GroupChatID    string `gorm:"not null;index:idx_group_message_group"`
	SenderID       string `gorm:"not null"`
	SenderUsername string `gorm:"size:50;not null"`
	Content        string `gorm:"not null"`
	CreatedAt      time.Time `gorm:"index:idx_group_message_group"`
	UpdatedAt      *time.Time
}

type GroupMessageRead struct {
	GroupMessageID string `gorm:"primaryKey"`
	UserID         string `gorm:"primaryKey;index"`
}

type BlockRelation struct {
	UserID        string `gorm:"primaryKey"`
	BlockedUserID string `gorm:"primaryKey"`
	CreatedAt     time.Time
}
