// Package testdb opens throwaway in-memory SQLite databases for tests.
package testdb

import (
	"fmt"
	"testing"
	"time"

	"chat-realtime-service/internal/database"
	"chat-realtime-service/internal/model"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a migrated database private to the calling test.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	// shared cache keeps every pooled connection on the same in-memory database
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// CreateUser inserts a user with the given first name.
func CreateUser(t testing.TB, db *gorm.DB, firstName string) *model.User {
	t.Helper()
	user := &model.User{
		FirstName: firstName,
		LastName:  "Tester",
		Email:     fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

// AddPushToken registers a push token for the user.
func AddPushToken(t testing.TB, db *gorm.DB, userID uuid.UUID, token string) {
	t.Helper()
	if err := db.Create(&model.PushToken{UserID: userID, Token: token}).Error; err != nil {
		t.Fatalf("failed to create push token: %v", err)
	}
}

// CreateChannel inserts a channel with the given admin and members.
func CreateChannel(t testing.TB, db *gorm.DB, name string, adminID uuid.UUID, memberIDs ...uuid.UUID) *model.Channel {
	t.Helper()
	channel := &model.Channel{Name: name, AdminID: adminID}
	for _, id := range memberIDs {
		channel.Members = append(channel.Members, model.ChannelMember{UserID: id})
	}
	if err := db.Create(channel).Error; err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}
	return channel
}
