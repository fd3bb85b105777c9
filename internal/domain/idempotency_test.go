package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestIdempotency_Migration_UniqueIndex_AndReadback(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasTable(&Idempotency{}) {
		t.Fatalf("expected table %q", Idempotency{}.TableName())
	}
	if !m.HasIndex(&Idempotency{}, "ux_route_user_key") {
		t.Fatalf("expected composite index ux_route_user_key")
	}

	now := time.Now().UTC()
	rec := &Idempotency{
		ID:        "id-1",
		Route:     "/api/chat_v1.1",
		UserID:    "u1",
		Key:       "k1",
		Status:    200,
		Response:  datatypes.JSON(`{"reply":"hola"}`),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}

	var got Idempotency
	if err := db.First(&got, "id = ?", "id-1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.Route != rec.Route || got.UserID != "u1" || got.Key != "k1" || got.Status != 200 {
		t.Fatalf("unexpected row: %+v", got)
	}
	if string(got.Response) != `{"reply":"hola"}` {
		t.Fatalf("response roundtrip mismatch: %s", got.Response)
	}

	dup := *rec
	dup.ID = "id-2"
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected UNIQUE violation on (route, user_id, key)")
	}

	other := *rec
	other.ID = "id-3"
	other.UserID = "u2"
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("same key for another user should be accepted: %v", err)
	}
}
