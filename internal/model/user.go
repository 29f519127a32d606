// internal/model/user.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is owned by the REST layer. The realtime service only reads identity
// fields and writes LastSeen.
type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	FirstName string     `gorm:"type:varchar(100)" json:"firstName"`
	LastName  string     `gorm:"type:varchar(100)" json:"lastName"`
	Email     string     `gorm:"type:varchar(255);index" json:"email"`
	Image     string     `gorm:"type:text" json:"image,omitempty"`
	LastSeen  *time.Time `json:"lastSeen,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (User) TableName() string {
	return "users"
}

// UserContact is one direction of a DM contact relationship.
type UserContact struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"userId"`
	ContactID uuid.UUID `gorm:"type:uuid;primaryKey" json:"contactId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (UserContact) TableName() string {
	return "user_contacts"
}

type PushToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	Token     string    `gorm:"type:text;not null;uniqueIndex" json:"token"`
	Platform  string    `gorm:"type:varchar(20)" json:"platform,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (t *PushToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (PushToken) TableName() string {
	return "push_tokens"
}
