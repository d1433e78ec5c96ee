// internal/app/store/accounts/accountstore.go
package accountstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/vettahub/internal/app/system/normalize"
	"github.com/dalemusser/vettahub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrDuplicateEmail is returned when attempting to create an account
	// with an email that already exists.
	ErrDuplicateEmail = errors.New("an account with this email already exists")
	// ErrNotFound is returned when no account matches the query.
	ErrNotFound = errors.New("account not found")
	errBadMethod = errors.New("auth method is not valid")
)

// Store manages principal records in the accounts collection.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("accounts")}
}

// EnsureIndexes creates the unique email index that backs duplicate
// detection at registration time.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_accounts_email"),
		},
		{
			Keys:    bson.D{{Key: "auth_method", Value: 1}, {Key: "subject", Value: 1}},
			Options: options.Index().SetName("idx_accounts_subject"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// GetByID loads an account by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	var a models.Account
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetByEmail looks up an account by case-insensitive email.
// Returns ErrNotFound if no account matches.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Create inserts a new account after normalizing and validating fields.
// The email is stored lowercase; the unique index converts concurrent
// duplicate inserts into ErrDuplicateEmail.
func (s *Store) Create(ctx context.Context, a models.Account) (models.Account, error) {
	a.ID = primitive.NewObjectID()
	a.Email = normalize.Email(a.Email)

	if !models.IsValidAuthMethod(a.AuthMethod) {
		return models.Account{}, errBadMethod
	}

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, a); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Account{}, ErrDuplicateEmail
		}
		return models.Account{}, err
	}
	return a, nil
}

// UpdatePassword replaces the account's credential hash.
func (s *Store) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"password_hash": passwordHash,
		"updated_at":    time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// GetBySubject looks up a federated account by provider tag and subject.
// Returns ErrNotFound if no account matches.
func (s *Store) GetBySubject(ctx context.Context, method, subject string) (*models.Account, error) {
	var a models.Account
	err := s.c.FindOne(ctx, bson.M{"auth_method": method, "subject": subject}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
