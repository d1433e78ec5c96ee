// internal/domain/models/account.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account is a principal: the identity record a person authenticates as.
// Credential accounts carry a bcrypt PasswordHash; federated accounts
// carry the provider's subject identifier instead.
//
// The account ID is stable for the life of the account and is the key
// for the principal's profile document.
type Account struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	AuthMethod   string             `bson:"auth_method" json:"auth_method"` // "email" or a federated provider tag
	PasswordHash string             `bson:"password_hash,omitempty" json:"-"`
	Subject      string             `bson:"subject,omitempty" json:"-"` // federated provider subject (sub claim)

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
