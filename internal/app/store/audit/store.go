// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Event types recorded by the application.
const (
	EventLogin          = "login"
	EventLoginDenied    = "login_denied"
	EventLogout         = "logout"
	EventRegister       = "register"
	EventActivate       = "activate"
	EventDeactivate     = "deactivate"
	EventPasswordChange = "password_change"
	EventPasswordReset  = "password_reset"
)

// Event is an append-only audit record. EventID is a UUID so records
// can be correlated with log lines emitted for the same action.
type Event struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty"`
	EventID   string              `bson:"event_id"`
	Type      string              `bson:"type"`
	AccountID *primitive.ObjectID `bson:"account_id,omitempty"`
	ActorID   *primitive.ObjectID `bson:"actor_id,omitempty"` // admin performing the action, if different
	Email     string              `bson:"email,omitempty"`
	Detail    string              `bson:"detail,omitempty"`
	IP        string              `bson:"ip,omitempty"`
	CreatedAt time.Time           `bson:"created_at"`
}

// Store writes audit events to Mongo and mirrors them to the logger.
// Writes are best-effort: a failed insert is logged and swallowed so an
// audit outage never blocks a user-facing flow.
type Store struct {
	c   *mongo.Collection
	log *zap.Logger
}

func New(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{c: db.Collection("audit_events"), log: logger}
}

// EnsureIndexes creates lookup indexes for the audit trail.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "account_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_account"),
		},
		{
			Keys:    bson.D{{Key: "type", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_type"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Record appends an event. Never returns an error; see Store doc.
func (s *Store) Record(ctx context.Context, e Event) {
	e.ID = primitive.NewObjectID()
	e.EventID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()

	fields := []zap.Field{
		zap.String("event_id", e.EventID),
		zap.String("type", e.Type),
		zap.String("email", e.Email),
	}
	if e.AccountID != nil {
		fields = append(fields, zap.String("account_id", e.AccountID.Hex()))
	}
	if e.Detail != "" {
		fields = append(fields, zap.String("detail", e.Detail))
	}
	s.log.Info("audit event", fields...)

	if _, err := s.c.InsertOne(ctx, e); err != nil {
		s.log.Error("audit insert failed",
			zap.String("event_id", e.EventID),
			zap.Error(err))
	}
}

// ListForAccount returns recent events for one account, newest first.
func (s *Store) ListForAccount(ctx context.Context, accountID primitive.ObjectID, limit int64) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	cur, err := s.c.Find(ctx,
		bson.M{"account_id": accountID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Event
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
