package app

import (
	"context"
	"time"

	"github.com/Simon-Egedal/farmor-aktier/internal/common"
)

// DefaultDividendCheckInterval is how often the background checker looks for
// newly gone-ex dividend payments across all users.
const DefaultDividendCheckInterval = 6 * time.Hour

// StartDividendChecker launches the background goroutine that periodically
// credits new dividend payments for every registered user. An initial check
// runs shortly after startup so a restarted server catches up quickly.
func (a *App) StartDividendChecker(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultDividendCheckInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.dividendCheckCancel = cancel

	go func() {
		timer := time.NewTimer(30 * time.Second)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				a.runDividendCheck(ctx)
				timer.Reset(interval)
			}
		}
	}()
}

// runDividendCheck runs CheckNewPayments for every registered user plus the
// single-tenant default scope.
func (a *App) runDividendCheck(ctx context.Context) {
	userIDs, err := a.Storage.InternalStore().ListUsers(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Dividend check: failed to list users")
		userIDs = nil
	}

	seen := map[string]bool{}
	scopes := append([]string{"default"}, userIDs...)

	for _, userID := range scopes {
		if seen[userID] {
			continue
		}
		seen[userID] = true

		userCtx := common.WithUserContext(ctx, &common.UserContext{UserID: userID})
		credited, err := a.DividendService.CheckNewPayments(userCtx)
		if err != nil {
			a.Logger.Warn().Err(err).Str("user_id", userID).Msg("Dividend check failed")
			continue
		}
		if len(credited) > 0 {
			a.Logger.Info().
				Str("user_id", userID).
				Int("payments", len(credited)).
				Msg("Credited new dividend payments")
		}
	}
}
