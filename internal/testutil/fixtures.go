package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/vettahub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateAccount inserts a credential account with the given email and
// bcrypt password hash. Returns the created account with its ID.
func (f *Fixtures) CreateAccount(ctx context.Context, email, passwordHash string) models.Account {
	f.t.Helper()

	now := time.Now().UTC()
	acct := models.Account{
		ID:           primitive.NewObjectID(),
		Email:        email,
		AuthMethod:   "email",
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("accounts").InsertOne(ctx, acct); err != nil {
		f.t.Fatalf("create account: %v", err)
	}
	return acct
}

// CreateProfile inserts a profile for the given account.
func (f *Fixtures) CreateProfile(ctx context.Context, accountID primitive.ObjectID, name, email string, active bool) models.Profile {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Profile{
		ID:         primitive.NewObjectID(),
		AccountID:  accountID,
		Name:       name,
		NameCI:     text.Fold(name),
		Email:      email,
		AuthMethod: "email",
		IsActive:   active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := f.db.Collection("profiles").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("create profile: %v", err)
	}
	return p
}

// Cleanup drops the collections the fixtures touch.
func (f *Fixtures) Cleanup(ctx context.Context) {
	f.t.Helper()
	for _, name := range []string{"accounts", "profiles", "provision_tokens", "oauth_states", "audit_events"} {
		if err := f.db.Collection(name).Drop(ctx); err != nil {
			f.t.Logf("drop %s: %v", name, err)
		}
	}
}
