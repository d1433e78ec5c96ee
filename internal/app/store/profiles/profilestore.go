// internal/app/store/profiles/profilestore.go
package profilestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/vettahub/internal/app/system/normalize"
	"github.com/dalemusser/vettahub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no profile exists for the account.
	// Session resolution treats this case leniently; flows that require
	// an existing profile surface it.
	ErrNotFound = errors.New("profile not found")
	// ErrDuplicate is returned when a profile already exists for the account.
	ErrDuplicate = errors.New("a profile already exists for this account")
)

// Store manages profile documents in the profiles collection, one per
// account, keyed by account_id.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("profiles")}
}

// EnsureIndexes creates the unique account_id index (one profile per
// principal) and an email index for admin listing.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "account_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_profiles_account"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("idx_profiles_email"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Create inserts a profile for an account. IsActive should be false for
// registration; the admin activation flow flips it later.
func (s *Store) Create(ctx context.Context, p models.Profile) (models.Profile, error) {
	p.ID = primitive.NewObjectID()
	p.Name = normalize.Name(p.Name)
	p.NameCI = text.Fold(p.Name)
	p.Email = normalize.Email(p.Email)

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Profile{}, ErrDuplicate
		}
		return models.Profile{}, err
	}
	return p, nil
}

// GetByAccountID loads the profile document keyed by the account's ID.
// Returns ErrNotFound if no document exists.
func (s *Store) GetByAccountID(ctx context.Context, accountID primitive.ObjectID) (*models.Profile, error) {
	var p models.Profile
	if err := s.c.FindOne(ctx, bson.M{"account_id": accountID}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// List returns all profiles sorted by creation time, newest first.
// The admin panel is the only consumer; the user population this app
// manages is small enough that it does not paginate.
func (s *Store) List(ctx context.Context) ([]models.Profile, error) {
	cur, err := s.c.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Profile
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetActive flips the profile's activation flag. Last write wins; there
// is no version check, matching the document store's semantics.
func (s *Store) SetActive(ctx context.Context, accountID primitive.ObjectID, active bool) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"account_id": accountID},
		bson.M{"$set": bson.M{
			"is_active":  active,
			"updated_at": time.Now().UTC(),
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetProvisioned records that a one-time credential was issued for the
// account at the given time. Pass nil to clear the marker after the
// user sets their own password.
func (s *Store) SetProvisioned(ctx context.Context, accountID primitive.ObjectID, at *time.Time) error {
	update := bson.M{"updated_at": time.Now().UTC()}
	var op bson.M
	if at != nil {
		update["provisioned_at"] = *at
		op = bson.M{"$set": update}
	} else {
		op = bson.M{"$set": update, "$unset": bson.M{"provisioned_at": ""}}
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"account_id": accountID}, op)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
