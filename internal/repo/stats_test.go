package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-send-pacer/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func seedPlan(t *testing.T, db *gorm.DB, id, clientID string, created, updated time.Time) {
	t.Helper()
	p := &domain.Plan{
		ID:                 id,
		ClientID:           clientID,
		ChannelClass:       domain.ChannelRegulated,
		Priority:           domain.PriorityLow,
		RecipientCount:     10,
		AccountIDs:         []string{"A"},
		FinalRatePerMinute: 36,
		FinalDelayMs:       1667,
		FinalCompletionMin: 1,
		CreatedAt:          created,
		UpdatedAt:          updated,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed plan %s: %v", id, err)
	}
	// Pin UpdatedAt; autoUpdateTime overrides it on create.
	if err := db.Model(&domain.Plan{}).Where("id = ?", id).UpdateColumn("updated_at", updated).Error; err != nil {
		t.Fatalf("pin updated_at: %v", err)
	}
}

func TestPlansStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if _, _, err := PlansStats(context.Background(), db, "c1"); err == nil {
		t.Fatalf("expected error due to missing plans table")
	}
}

func TestPlansStats_ZeroRows(t *testing.T) {
	db := newTestDB(t, &domain.Plan{})
	count, maxAt, err := PlansStats(context.Background(), db, "c1")
	if err != nil {
		t.Fatalf("PlansStats error: %v", err)
	}
	if count != 0 || maxAt != nil {
		t.Fatalf("expected (0, nil), got (%d, %v)", count, maxAt)
	}
}

func TestPlansStats_Success_FilterAndMax(t *testing.T) {
	db := newTestDB(t, &domain.Plan{})

	t1 := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC) // max for c1
	t3 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)   // other client
	seedPlan(t, db, "p1", "c1", t1, t1)
	seedPlan(t, db, "p2", "c1", t1, t2)
	seedPlan(t, db, "p3", "c2", t3, t3)

	count, maxAt, err := PlansStats(context.Background(), db, "c1")
	if err != nil {
		t.Fatalf("PlansStats error: %v", err)
	}
	if count != 2 {
		t.Fatalf("count=%d, want 2", count)
	}
	if maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("maxUpdatedAt=%v, want %v", maxAt, t2)
	}
}
