package cart

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront/pkg/enums"
)

// Run refetches every live cart on the refetch interval and evicts idle
// sessions until ctx is canceled. A cart found closed here is evicted; the
// visitor's next request starts a new one.
func (e *Engine) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logg.Info(ctx, "cart refresh loop stopped")
			return ctx.Err()
		case <-ticker.C:
			e.sweep(ctx)
		}
	}
}

func (e *Engine) sweep(ctx context.Context) {
	now := e.now()
	for _, s := range e.liveSessions() {
		sessCtx := e.logg.WithCartID(ctx, s.id)
		if now.Sub(s.idleSince()) >= e.idleTTL && s.subscriberCount() == 0 {
			e.drop(s)
			e.logg.Debug(sessCtx, "idle cart session evicted")
			continue
		}
		if _, err := e.refresh(sessCtx, s, enums.RefreshTriggerInterval); err != nil {
			if errors.Is(err, errCartClosed) || isMissing(err) {
				e.drop(s)
				if delErr := e.cache.Delete(sessCtx, s.id); delErr != nil {
					e.logg.Warn(e.logg.WithField(sessCtx, "reason", delErr.Error()), "failed to delete cart snapshot")
				}
				e.logg.Info(sessCtx, "closed cart session evicted")
				continue
			}
			e.logg.Warn(e.logg.WithField(sessCtx, "reason", err.Error()), "interval cart refresh failed")
		}
	}
}
