package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/vettahub/internal/app/store/audit"
	"github.com/dalemusser/vettahub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestStore_ListForAccount_NewestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	accountID := primitive.NewObjectID()
	otherID := primitive.NewObjectID()

	// Mongo stores timestamps at millisecond precision; space the
	// records out so the sort order is deterministic.
	for _, typ := range []string{audit.EventRegister, audit.EventActivate, audit.EventLogin} {
		store.Record(ctx, audit.Event{Type: typ, AccountID: &accountID, Email: "user@example.com"})
		time.Sleep(5 * time.Millisecond)
	}
	store.Record(ctx, audit.Event{Type: audit.EventLogin, AccountID: &otherID, Email: "other@example.com"})

	events, err := store.ListForAccount(ctx, accountID, 0)
	if err != nil {
		t.Fatalf("ListForAccount failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	if events[0].Type != audit.EventLogin {
		t.Errorf("newest event: got %q, want %q", events[0].Type, audit.EventLogin)
	}
	if events[2].Type != audit.EventRegister {
		t.Errorf("oldest event: got %q, want %q", events[2].Type, audit.EventRegister)
	}

	for _, e := range events {
		if e.EventID == "" {
			t.Error("expected EventID to be set")
		}
		if e.CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be set")
		}
	}
}

func TestStore_ListForAccount_Limit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	accountID := primitive.NewObjectID()
	for i := 0; i < 5; i++ {
		store.Record(ctx, audit.Event{Type: audit.EventLogin, AccountID: &accountID})
	}

	events, err := store.ListForAccount(ctx, accountID, 2)
	if err != nil {
		t.Fatalf("ListForAccount failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 events, got %d", len(events))
	}
}
