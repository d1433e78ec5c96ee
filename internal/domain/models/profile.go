// internal/domain/models/profile.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Profile is the application-owned attribute document for an account.
// One document per account, keyed by AccountID. Created at registration
// with IsActive=false; mutated by admin activation and by the user's own
// password-change flow. Never deleted by the application.
//
// Generated credentials are NOT stored here. ProvisionedAt records when
// a one-time credential was last issued for the account; the credential
// itself lives only as a bcrypt hash on the account plus a consumable
// token in the provision store.
type Profile struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AccountID  primitive.ObjectID `bson:"account_id" json:"account_id"`
	Name       string             `bson:"name" json:"name"`
	NameCI     string             `bson:"name_ci" json:"name_ci"` // lowercase, diacritics-stripped
	DOB        string             `bson:"dob,omitempty" json:"dob,omitempty"`
	Email      string             `bson:"email" json:"email"` // denormalized copy of the account email
	AuthMethod string             `bson:"auth_method,omitempty" json:"auth_method,omitempty"`
	IsActive   bool               `bson:"is_active" json:"is_active"`
	IsAdmin    bool               `bson:"is_admin,omitempty" json:"is_admin,omitempty"`
	PhotoURL   string             `bson:"photo_url,omitempty" json:"photo_url,omitempty"`

	ProvisionedAt *time.Time `bson:"provisioned_at,omitempty" json:"provisioned_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
