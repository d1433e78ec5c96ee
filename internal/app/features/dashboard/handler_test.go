package dashboard_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/vettahub/internal/app/features/dashboard"
	uierrors "github.com/dalemusser/vettahub/internal/app/features/errors"
	accountstore "github.com/dalemusser/vettahub/internal/app/store/accounts"
	"github.com/dalemusser/vettahub/internal/app/store/audit"
	profilestore "github.com/dalemusser/vettahub/internal/app/store/profiles"
	"github.com/dalemusser/vettahub/internal/app/store/provision"
	"github.com/dalemusser/vettahub/internal/app/system/auth"
	"github.com/dalemusser/vettahub/internal/app/system/passwords"
	"github.com/dalemusser/vettahub/internal/app/system/session"
	"github.com/dalemusser/vettahub/internal/testutil"
	"go.uber.org/zap"
)

type env struct {
	handler   *dashboard.Handler
	accounts  *accountstore.Store
	profiles  *profilestore.Store
	provision *provision.Store
	fixtures  *testutil.Fixtures
}

func newTestEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	accounts := accountstore.New(db)
	profiles := profilestore.New(db)
	prov := provision.New(db)
	auditStore := audit.New(db, logger)

	handler := dashboard.NewHandler(accounts, profiles, prov, auditStore, session.NewHub(), uierrors.NewErrorLogger(logger), logger)
	return &env{
		handler:   handler,
		accounts:  accounts,
		profiles:  profiles,
		provision: prov,
		fixtures:  testutil.NewFixtures(t, db),
	}
}

func passwordChangeRequest(snap session.Snapshot, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/dashboard/password", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return auth.WithSnapshot(req, snap)
}

func TestHandlePasswordChange_Success(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	hash, _ := passwords.Hash("Curr3nt!pw")
	acct := e.fixtures.CreateAccount(ctx, "user@example.com", hash)
	e.fixtures.CreateProfile(ctx, acct.ID, "Test User", acct.Email, true)

	snap := session.Snapshot{Session: &session.Session{
		AccountID: acct.ID, Email: acct.Email, AuthMethod: "email", IsActive: true,
	}}
	form := url.Values{
		"current_password": {"Curr3nt!pw"},
		"new_password":     {"NewPassw0rd!"},
		"confirm_password": {"NewPassw0rd!"},
	}

	rec := httptest.NewRecorder()
	e.handler.HandlePasswordChange(rec, passwordChangeRequest(snap, form))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Errorf("Location: got %q, want %q", loc, "/dashboard")
	}

	updated, err := e.accounts.GetByID(ctx, acct.ID)
	if err != nil {
		t.Fatalf("account reload: %v", err)
	}
	if !passwords.Compare(updated.PasswordHash, "NewPassw0rd!") {
		t.Error("new password does not verify after change")
	}
}

func TestHandlePasswordChange_RequiresCurrentPassword(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	hash, _ := passwords.Hash("Curr3nt!pw")
	acct := e.fixtures.CreateAccount(ctx, "reauth@example.com", hash)
	e.fixtures.CreateProfile(ctx, acct.ID, "Test User", acct.Email, true)

	snap := session.Snapshot{Session: &session.Session{
		AccountID: acct.ID, Email: acct.Email, AuthMethod: "email", IsActive: true,
	}}
	form := url.Values{
		"current_password": {"not-the-password"},
		"new_password":     {"NewPassw0rd!"},
		"confirm_password": {"NewPassw0rd!"},
	}

	rec := httptest.NewRecorder()
	func() {
		defer func() { recover() }() // error path re-renders the form
		e.handler.HandlePasswordChange(rec, passwordChangeRequest(snap, form))
	}()

	if rec.Code == http.StatusSeeOther {
		t.Fatal("wrong current password must not succeed")
	}
	updated, err := e.accounts.GetByID(ctx, acct.ID)
	if err != nil {
		t.Fatalf("account reload: %v", err)
	}
	if !passwords.Compare(updated.PasswordHash, "Curr3nt!pw") {
		t.Error("password changed despite failed re-authentication")
	}
}

func TestHandlePasswordChange_RetiresProvisioningCredential(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	hash, _ := passwords.Hash("Gener8d!pw")
	acct := e.fixtures.CreateAccount(ctx, "prov@example.com", hash)
	e.fixtures.CreateProfile(ctx, acct.ID, "Test User", acct.Email, true)

	now := time.Now().UTC()
	if err := e.profiles.SetProvisioned(ctx, acct.ID, &now); err != nil {
		t.Fatalf("seed provisioned marker: %v", err)
	}
	if _, err := e.provision.Issue(ctx, acct.ID, provision.KindProvision, "Gener8d!pw", 24*time.Hour); err != nil {
		t.Fatalf("seed provisioning token: %v", err)
	}

	snap := session.Snapshot{Session: &session.Session{
		AccountID: acct.ID, Email: acct.Email, AuthMethod: "email", IsActive: true,
	}}
	form := url.Values{
		"current_password": {"Gener8d!pw"},
		"new_password":     {"MyOwnPassw0rd!"},
		"confirm_password": {"MyOwnPassw0rd!"},
	}

	rec := httptest.NewRecorder()
	e.handler.HandlePasswordChange(rec, passwordChangeRequest(snap, form))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusSeeOther)
	}

	if _, err := e.provision.Outstanding(ctx, acct.ID, provision.KindProvision); err == nil {
		t.Error("provisioning token still outstanding after password change")
	}
	profile, err := e.profiles.GetByAccountID(ctx, acct.ID)
	if err != nil {
		t.Fatalf("profile reload: %v", err)
	}
	if profile.ProvisionedAt != nil {
		t.Error("provisioned marker not cleared after password change")
	}
}
