package oauthstate_test

import (
	"testing"
	"time"

	"github.com/dalemusser/vettahub/internal/app/store/oauthstate"
	"github.com/dalemusser/vettahub/internal/testutil"
)

func TestStore_Validate_OneTimeUse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	expires := time.Now().UTC().Add(10 * time.Minute)
	if err := store.Save(ctx, "state-abc", "/dashboard/password", "register", expires); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	returnURL, mode, valid, err := store.Validate(ctx, "state-abc")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !valid {
		t.Fatal("expected state to be valid")
	}
	if returnURL != "/dashboard/password" {
		t.Errorf("returnURL: got %q, want %q", returnURL, "/dashboard/password")
	}
	if mode != "register" {
		t.Errorf("mode: got %q, want %q", mode, "register")
	}

	// One-time use: a replayed state must not validate.
	_, _, valid, err = store.Validate(ctx, "state-abc")
	if err != nil {
		t.Fatalf("second Validate failed: %v", err)
	}
	if valid {
		t.Error("expected replayed state to be invalid")
	}
}

func TestStore_Validate_Unknown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, _, valid, err := store.Validate(ctx, "never-saved")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if valid {
		t.Error("expected unknown state to be invalid")
	}
}

func TestStore_Validate_Expired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	expired := time.Now().UTC().Add(-time.Minute)
	if err := store.Save(ctx, "state-old", "", "login", expired); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, _, valid, err := store.Validate(ctx, "state-old")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if valid {
		t.Error("expected expired state to be invalid")
	}
}

func TestStore_CleanupExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := oauthstate.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	if err := store.Save(ctx, "state-dead", "", "login", now.Add(-time.Minute)); err != nil {
		t.Fatalf("Save expired failed: %v", err)
	}
	if err := store.Save(ctx, "state-live", "", "login", now.Add(10*time.Minute)); err != nil {
		t.Fatalf("Save live failed: %v", err)
	}

	removed, err := store.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}

	_, _, valid, err := store.Validate(ctx, "state-live")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !valid {
		t.Error("live state should survive the sweep")
	}
}
