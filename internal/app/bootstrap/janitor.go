// internal/app/bootstrap/janitor.go
package bootstrap

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dalemusser/vettahub/internal/app/store/oauthstate"
	"github.com/dalemusser/vettahub/internal/app/store/provision"
	"github.com/dalemusser/vettahub/internal/app/system/timeouts"
)

// Expired tokens are reaped by a TTL index; the janitor is a periodic
// backstop for deployments where the index is missing or disabled.
const janitorInterval = time.Hour

var janitorCancel context.CancelFunc

// startJanitor launches the background sweep of expired provisioning
// tokens and OAuth state records. It runs until stopJanitor is called.
func startJanitor(deps DBDeps, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	janitorCancel = cancel

	prov := provision.New(deps.VettaHubMongoDatabase)
	states := oauthstate.New(deps.VettaHubMongoDatabase)

	go func() {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep(ctx, prov, states, logger)
			}
		}
	}()
}

func sweep(ctx context.Context, prov *provision.Store, states *oauthstate.Store, logger *zap.Logger) {
	sweepCtx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	if n, err := prov.CleanupExpired(sweepCtx); err != nil {
		logger.Warn("provision token sweep failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("swept expired provisioning tokens", zap.Int64("removed", n))
	}

	if n, err := states.CleanupExpired(sweepCtx); err != nil {
		logger.Warn("oauth state sweep failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("swept expired oauth states", zap.Int64("removed", n))
	}
}

func stopJanitor() {
	if janitorCancel != nil {
		janitorCancel()
		janitorCancel = nil
	}
}
