package dashboard

import (
	"context"
	"fmt"
	"time"
)

// Sweep deletes reports older than each user's tier retention and returns
// the number removed. Tiers with RetentionDays 0 keep everything.
func (svc *Service) Sweep(ctx context.Context) (int64, error) {
	users, err := svc.store.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("dashboard: sweep: %w", err)
	}
	var total int64
	for _, u := range users {
		days := svc.limits(u.Tier).RetentionDays
		if days <= 0 {
			continue
		}
		cutoff := svc.now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
		n, err := svc.store.PurgeFeedbackBefore(ctx, u.ID, cutoff)
		if err != nil {
			return total, fmt.Errorf("dashboard: sweep %s: %w", u.ID, err)
		}
		total += n
	}
	return total, nil
}

// RunRetention sweeps every interval until ctx is done.
func (svc *Service) RunRetention(ctx context.Context, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			n, err := svc.Sweep(ctx)
			if err != nil {
				svc.logger.Error("dashboard: retention sweep", "error", err)
				continue
			}
			if n > 0 {
				svc.logger.Info("dashboard: retention sweep", "deleted", n)
			}
		}
	}
}
