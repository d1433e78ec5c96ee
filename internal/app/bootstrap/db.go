// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	accountstore "github.com/dalemusser/vettahub/internal/app/store/accounts"
	"github.com/dalemusser/vettahub/internal/app/store/audit"
	"github.com/dalemusser/vettahub/internal/app/store/oauthstate"
	profilestore "github.com/dalemusser/vettahub/internal/app/store/profiles"
	"github.com/dalemusser/vettahub/internal/app/store/provision"
	"github.com/dalemusser/vettahub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB establishes the MongoDB connection and verifies it with a
// ping before the rest of startup proceeds.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	connectCtx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(appCfg.MongoURI))
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, timeouts.Ping())
	defer cancelPing()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}

	logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))

	return DBDeps{
		VettaHubMongoClient:   client,
		VettaHubMongoDatabase: client.Database(appCfg.MongoDatabase),
	}, nil
}

// EnsureSchema creates the indexes each store depends on. All index
// builds are idempotent; Mongo ignores an existing identical index.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	db := deps.VettaHubMongoDatabase

	for _, ensure := range []struct {
		name string
		fn   func(context.Context) error
	}{
		{"accounts", accountstore.New(db).EnsureIndexes},
		{"profiles", profilestore.New(db).EnsureIndexes},
		{"provision_tokens", provision.New(db).EnsureIndexes},
		{"oauth_states", oauthstate.New(db).EnsureIndexes},
		{"audit_events", audit.New(db, logger).EnsureIndexes},
	} {
		if err := ensure.fn(ctx); err != nil {
			return fmt.Errorf("ensure indexes for %s: %w", ensure.name, err)
		}
	}

	return nil
}
