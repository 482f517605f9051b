package store

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pysugar/cursor-auth-keeper/internal/db/models"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Account{}, &models.Setting{}, &models.Threshold{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return New(db)
}

func TestUpsert_SameIDIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	first := models.Account{ID: "acc-1", Email: "a@example.com", Membership: "free_trial"}
	if err := s.Upsert(&first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second := models.Account{ID: "acc-1", Email: "a@example.com", Membership: "pro", Quota: "500"}
	if err := s.Upsert(&second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	all, err := s.GetAll()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 record, got %d", len(all))
	}
	if all[0].Membership != "pro" || all[0].Quota != "500" {
		t.Fatalf("expected second call's fields, got %+v", all[0])
	}
}

func TestUpsert_AdoptsIDForExistingEmail(t *testing.T) {
	s := newTestStore(t)

	original := models.Account{ID: "original-id", Email: "a@example.com"}
	if err := s.Upsert(&original); err != nil {
		t.Fatalf("seed upsert: %v", err)
	}

	incoming := models.Account{ID: "other-id", Email: "a@example.com", Membership: "pro"}
	// ID "other-id" matches nothing, so the email match must lend its ID.
	if err := s.Upsert(&incoming); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if incoming.ID != "original-id" {
		t.Fatalf("expected adopted ID original-id, got %s", incoming.ID)
	}

	all, _ := s.GetAll()
	if len(all) != 1 {
		t.Fatalf("expected 1 record, got %d", len(all))
	}
	if all[0].ID != "original-id" || all[0].Membership != "pro" {
		t.Fatalf("expected merged record under original ID, got %+v", all[0])
	}
}

func TestUpsert_GeneratesIDForNewRecord(t *testing.T) {
	s := newTestStore(t)

	account := models.Account{Email: "new@example.com"}
	if err := s.Upsert(&account); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if account.ID == "" {
		t.Fatal("expected a generated ID")
	}
	if account.CreatedAt == "" || account.LastLogin == "" {
		t.Fatalf("expected timestamps to be filled, got %+v", account)
	}
}

func TestRemove_ClearsCurrentPointer(t *testing.T) {
	s := newTestStore(t)

	a := models.Account{ID: "a", Email: "a@example.com"}
	b := models.Account{ID: "b", Email: "b@example.com"}
	if err := s.Upsert(&a); err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	if err := s.Upsert(&b); err != nil {
		t.Fatalf("upsert b: %v", err)
	}
	if err := s.SetCurrent("a"); err != nil {
		t.Fatalf("set current: %v", err)
	}

	if err := s.Remove("a"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	// The pointer is cleared, not auto-promoted; GetCurrent then promotes
	// the remaining record deterministically.
	id, err := s.currentID()
	if err != nil {
		t.Fatalf("current id: %v", err)
	}
	if id != "" {
		t.Fatalf("expected cleared pointer, got %q", id)
	}
	current, err := s.GetCurrent()
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	if current == nil || current.ID != "b" {
		t.Fatalf("expected promotion of b, got %+v", current)
	}
}

func TestGetCurrent_EmptyStore(t *testing.T) {
	s := newTestStore(t)
	current, err := s.GetCurrent()
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	if current != nil {
		t.Fatalf("expected nil on empty store, got %+v", current)
	}
}

func TestThresholds_DefaultsAndOverride(t *testing.T) {
	s := newTestStore(t)

	thresholds, err := s.GetThresholds()
	if err != nil {
		t.Fatalf("get thresholds: %v", err)
	}
	if thresholds[models.ThresholdMaxRequestsPerMinute] != 60 ||
		thresholds[models.ThresholdMaxConcurrent] != 3 ||
		thresholds[models.ThresholdSessionTimeout] != 30 {
		t.Fatalf("unexpected defaults: %v", thresholds)
	}

	if err := s.SetThresholds(map[string]int{models.ThresholdMaxConcurrent: 5}); err != nil {
		t.Fatalf("set thresholds: %v", err)
	}
	thresholds, _ = s.GetThresholds()
	if thresholds[models.ThresholdMaxConcurrent] != 5 {
		t.Fatalf("expected override 5, got %d", thresholds[models.ThresholdMaxConcurrent])
	}
	if thresholds[models.ThresholdSessionTimeout] != 30 {
		t.Fatalf("expected untouched default, got %d", thresholds[models.ThresholdSessionTimeout])
	}
}

func TestDeriveStatus(t *testing.T) {
	now := time.Now()
	const layout = "2006-01-02 15:04:05"

	tests := []struct {
		name       string
		expireTime string
		want       string
	}{
		{name: "ten days left", expireTime: now.Add(10*24*time.Hour + time.Hour).Format(layout), want: StatusNormal},
		{name: "three days left", expireTime: now.Add(3*24*time.Hour + time.Minute).Format(layout), want: StatusExpiringSoon(3)},
		{name: "just expired", expireTime: now.Add(-100 * time.Second).Format(layout), want: StatusExpired},
		{name: "permanent", expireTime: ExpirePermanent, want: StatusPermanent},
		{name: "missing", expireTime: "", want: StatusUnknownDuration},
		{name: "unknown sentinel", expireTime: ExpireUnknown, want: StatusUnknownDuration},
		{name: "slash format", expireTime: now.AddDate(0, 2, 0).Format("2006/01/02"), want: StatusNormal},
		{name: "garbage", expireTime: "next tuesday", want: StatusDateFormatError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(tt.expireTime, now)
			if got != tt.want {
				t.Fatalf("DeriveStatus(%q) = %q, want %q", tt.expireTime, got, tt.want)
			}
		})
	}
}

func TestRefreshAllStatus(t *testing.T) {
	s := newTestStore(t)

	expired := models.Account{ID: "old", Email: "old@example.com", ExpireTime: "2020-01-01"}
	forever := models.Account{ID: "pro", Email: "pro@example.com", ExpireTime: ExpirePermanent}
	if err := s.Upsert(&expired); err != nil {
		t.Fatalf("upsert expired: %v", err)
	}
	if err := s.Upsert(&forever); err != nil {
		t.Fatalf("upsert permanent: %v", err)
	}

	if err := s.RefreshAllStatus(); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got, _ := s.GetByID("old")
	if got.Status != StatusExpired {
		t.Fatalf("expected expired, got %q", got.Status)
	}
	got, _ = s.GetByID("pro")
	if got.Status != StatusPermanent {
		t.Fatalf("expected permanent, got %q", got.Status)
	}
}
