package provision_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/vettahub/internal/app/store/provision"
	"github.com/dalemusser/vettahub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Issue_ReplacesOutstanding(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := provision.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	accountID := primitive.NewObjectID()

	first, err := store.Issue(ctx, accountID, provision.KindProvision, "Secret1!", time.Hour)
	if err != nil {
		t.Fatalf("first Issue failed: %v", err)
	}

	second, err := store.Issue(ctx, accountID, provision.KindProvision, "Secret2!", time.Hour)
	if err != nil {
		t.Fatalf("second Issue failed: %v", err)
	}

	live, err := store.Outstanding(ctx, accountID, provision.KindProvision)
	if err != nil {
		t.Fatalf("Outstanding failed: %v", err)
	}
	if live.ID != second.ID {
		t.Errorf("outstanding token: got %v, want %v", live.ID, second.ID)
	}
	if live.ID == first.ID {
		t.Error("superseded token still reported as outstanding")
	}
}

func TestStore_Outstanding_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := provision.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Outstanding(ctx, primitive.NewObjectID(), provision.KindProvision)
	if !errors.Is(err, provision.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Consume_Once(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := provision.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	accountID := primitive.NewObjectID()
	tok, err := store.Issue(ctx, accountID, provision.KindProvision, "Secret1!", time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if err := store.Consume(ctx, tok.ID); err != nil {
		t.Fatalf("first Consume failed: %v", err)
	}

	if err := store.Consume(ctx, tok.ID); !errors.Is(err, provision.ErrConsumed) {
		t.Errorf("second Consume: expected ErrConsumed, got %v", err)
	}

	if _, err := store.Outstanding(ctx, accountID, provision.KindProvision); !errors.Is(err, provision.ErrNotFound) {
		t.Errorf("consumed token still outstanding: %v", err)
	}
}

func TestStore_ResetLink_RoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := provision.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	accountID := primitive.NewObjectID()

	secret, err := store.IssueResetLink(ctx, accountID, time.Hour)
	if err != nil {
		t.Fatalf("IssueResetLink failed: %v", err)
	}

	tok, err := store.ResolveResetLink(ctx, secret)
	if err != nil {
		t.Fatalf("ResolveResetLink failed: %v", err)
	}
	if tok.AccountID != accountID {
		t.Errorf("AccountID: got %v, want %v", tok.AccountID, accountID)
	}

	// Same lookup prefix, wrong secret.
	tampered := []byte(secret)
	if tampered[len(tampered)-1] == 'a' {
		tampered[len(tampered)-1] = 'b'
	} else {
		tampered[len(tampered)-1] = 'a'
	}
	if _, err := store.ResolveResetLink(ctx, string(tampered)); !errors.Is(err, provision.ErrInvalidSecret) {
		t.Errorf("tampered secret: expected ErrInvalidSecret, got %v", err)
	}

	if _, err := store.ResolveResetLink(ctx, "short"); !errors.Is(err, provision.ErrNotFound) {
		t.Errorf("short secret: expected ErrNotFound, got %v", err)
	}

	if err := store.Consume(ctx, tok.ID); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if _, err := store.ResolveResetLink(ctx, secret); !errors.Is(err, provision.ErrConsumed) {
		t.Errorf("consumed link: expected ErrConsumed, got %v", err)
	}
}

func TestStore_InvalidateForAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := provision.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	accountID := primitive.NewObjectID()
	if _, err := store.Issue(ctx, accountID, provision.KindProvision, "Secret1!", time.Hour); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if err := store.InvalidateForAccount(ctx, accountID, provision.KindProvision); err != nil {
		t.Fatalf("InvalidateForAccount failed: %v", err)
	}

	if _, err := store.Outstanding(ctx, accountID, provision.KindProvision); !errors.Is(err, provision.ErrNotFound) {
		t.Errorf("expected ErrNotFound after invalidation, got %v", err)
	}
}

func TestStore_CleanupExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := provision.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	accountID := primitive.NewObjectID()
	if _, err := store.Issue(ctx, accountID, provision.KindProvision, "Secret1!", time.Millisecond); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	removed, err := store.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}
	if removed < 1 {
		t.Errorf("expected at least 1 removed, got %d", removed)
	}

	if _, err := store.Outstanding(ctx, accountID, provision.KindProvision); !errors.Is(err, provision.ErrNotFound) {
		t.Errorf("expired token still outstanding: %v", err)
	}
}
