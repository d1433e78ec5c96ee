// internal/app/store/provision/store.go
package provision

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

// Kind distinguishes why a token exists.
const (
	// KindProvision marks a one-time admin-issued login credential that
	// must be replaced by a user-chosen password.
	KindProvision = "provision"
	// KindReset marks a password-reset link token.
	KindReset = "reset"
)

const (
	// TokenBytes is the entropy of a reset link token (32 bytes = 64 hex chars).
	TokenBytes = 32
	// DefaultProvisionExpiry is how long an issued credential stays valid.
	DefaultProvisionExpiry = 7 * 24 * time.Hour
	// DefaultResetExpiry is how long a reset link stays valid.
	DefaultResetExpiry = 30 * time.Minute
	// BcryptCost for hashing token secrets.
	BcryptCost = 10
)

var (
	// ErrNotFound is returned when no live token matches.
	ErrNotFound = errors.New("token not found or expired")
	// ErrConsumed is returned when the token was already used once.
	ErrConsumed = errors.New("token already consumed")
	// ErrInvalidSecret is returned when the presented secret does not match.
	ErrInvalidSecret = errors.New("invalid token secret")
)

// Token is a one-time, time-boxed credential marker. The secret (the
// generated password for KindProvision, the link token for KindReset)
// is stored only as a bcrypt hash; expiry is enforced both by query
// filters and a TTL index.
type Token struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	AccountID  primitive.ObjectID `bson:"account_id"`
	Kind       string             `bson:"kind"`
	SecretHash string             `bson:"secret_hash"`
	Lookup     string             `bson:"lookup,omitempty"` // plain lookup key for reset links
	ExpiresAt  time.Time          `bson:"expires_at"`
	CreatedAt  time.Time          `bson:"created_at"`
	ConsumedAt *time.Time         `bson:"consumed_at,omitempty"`
}

// Store manages provisioning and reset tokens.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("provision_tokens")}
}

// EnsureIndexes creates lookup indexes and the TTL index that removes
// expired tokens (consumed tokens keep their row until expiry so that
// reuse is distinguishable from never-existed).
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "account_id", Value: 1}, {Key: "kind", Value: 1}},
			Options: options.Index().SetName("idx_provision_account_kind"),
		},
		{
			Keys:    bson.D{{Key: "lookup", Value: 1}},
			Options: options.Index().SetName("idx_provision_lookup"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("idx_provision_ttl").SetExpireAfterSeconds(0),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Issue records a new token of the given kind for the account, hashing
// the secret and invalidating any previous live token of the same kind.
// Returns the stored token record.
func (s *Store) Issue(ctx context.Context, accountID primitive.ObjectID, kind, secret string, expiry time.Duration) (*Token, error) {
	if expiry <= 0 {
		if kind == KindReset {
			expiry = DefaultResetExpiry
		} else {
			expiry = DefaultProvisionExpiry
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), BcryptCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	// One live token per account+kind: mark predecessors consumed.
	_, err = s.c.UpdateMany(ctx,
		bson.M{"account_id": accountID, "kind": kind, "consumed_at": nil},
		bson.M{"$set": bson.M{"consumed_at": now}})
	if err != nil {
		return nil, err
	}

	t := Token{
		ID:         primitive.NewObjectID(),
		AccountID:  accountID,
		Kind:       kind,
		SecretHash: string(hash),
		ExpiresAt:  now.Add(expiry),
		CreatedAt:  now,
	}
	if _, err := s.c.InsertOne(ctx, t); err != nil {
		return nil, err
	}
	return &t, nil
}

// IssueResetLink generates a random link token for the account and
// stores it. The returned string goes into the emailed link; only its
// hash is persisted, with a plain lookup prefix for retrieval.
func (s *Store) IssueResetLink(ctx context.Context, accountID primitive.ObjectID, expiry time.Duration) (string, error) {
	raw := make([]byte, TokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(raw)

	t, err := s.Issue(ctx, accountID, KindReset, secret, expiry)
	if err != nil {
		return "", err
	}

	// The first 16 hex chars act as the lookup key; the remainder is
	// verified against the bcrypt hash.
	_, err = s.c.UpdateOne(ctx, bson.M{"_id": t.ID},
		bson.M{"$set": bson.M{"lookup": secret[:16]}})
	if err != nil {
		return "", err
	}
	return secret, nil
}

// Outstanding returns the live (unconsumed, unexpired) token of the
// given kind for an account, or ErrNotFound.
func (s *Store) Outstanding(ctx context.Context, accountID primitive.ObjectID, kind string) (*Token, error) {
	var t Token
	err := s.c.FindOne(ctx, bson.M{
		"account_id":  accountID,
		"kind":        kind,
		"consumed_at": nil,
		"expires_at":  bson.M{"$gt": time.Now().UTC()},
	}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ResolveResetLink verifies a reset link token and returns the matching
// live token record without consuming it (the form is rendered first;
// Consume happens on submission).
func (s *Store) ResolveResetLink(ctx context.Context, secret string) (*Token, error) {
	if len(secret) < 17 {
		return nil, ErrNotFound
	}

	var t Token
	err := s.c.FindOne(ctx, bson.M{
		"kind":       KindReset,
		"lookup":     secret[:16],
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if t.ConsumedAt != nil {
		return nil, ErrConsumed
	}
	if bcrypt.CompareHashAndPassword([]byte(t.SecretHash), []byte(secret)) != nil {
		return nil, ErrInvalidSecret
	}
	return &t, nil
}

// Consume marks a token used. A token can be consumed exactly once;
// the conditional update makes concurrent consumers race safely.
func (s *Store) Consume(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "consumed_at": nil},
		bson.M{"$set": bson.M{"consumed_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConsumed
	}
	return nil
}

// InvalidateForAccount consumes all live tokens of the given kind for
// an account. Used when the user sets their own password.
func (s *Store) InvalidateForAccount(ctx context.Context, accountID primitive.ObjectID, kind string) error {
	_, err := s.c.UpdateMany(ctx,
		bson.M{"account_id": accountID, "kind": kind, "consumed_at": nil},
		bson.M{"$set": bson.M{"consumed_at": time.Now().UTC()}})
	return err
}

// CleanupExpired removes expired tokens. This is a backup for when TTL
// index cleanup is delayed.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{
		"expires_at": bson.M{"$lt": time.Now().UTC()},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
