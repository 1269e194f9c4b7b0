package credentials

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/fegerV/arplatform/internal/models"
)

// Notifier raises a Notification row; implemented by internal/notifications.
// Kept as a narrow interface here to avoid a dependency cycle.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Refresher periodically scans storage_credentials for cloud-disk tokens
// nearing expiry and refreshes them via the OAuth2 refresh-token grant,
// mirroring the ticker-driven background-loop shape of
// internal/ads/rotator.go (Start/Stop over a cancellable context, a done
// channel signaling full shutdown).
type Refresher struct {
	repo     *Repository
	oauthCfg *oauth2.Config
	notifier Notifier
	interval time.Duration
	window   time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefresher builds a Refresher. interval is how often to scan;
// window is how far ahead of expiry a token is eligible for refresh.
func NewRefresher(repo *Repository, oauthCfg *oauth2.Config, notifier Notifier, interval, window time.Duration, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Refresher{
		repo:     repo,
		oauthCfg: oauthCfg,
		notifier: notifier,
		interval: interval,
		window:   window,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins the refresh loop. Call Stop to release resources.
func (r *Refresher) Start() {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.run(ctx)
	r.logger.Info("credential refresher started", zap.Duration("interval", r.interval), zap.Duration("window", r.window))
}

// Stop halts the refresh loop and waits for the goroutine to exit.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.cancel = nil
	<-r.done
	r.logger.Info("credential refresher stopped")
}

func (r *Refresher) run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Refresher) sweep(ctx context.Context) {
	ids, err := r.repo.ListExpiringTokens(ctx, r.window)
	if err != nil {
		r.logger.Warn("credential refresher: list expiring tokens failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		if err := r.refreshOne(ctx, id); err != nil {
			r.logger.Warn("credential refresher: refresh failed", zap.Int64("connection_id", id), zap.Error(err))
		}
	}
}

func (r *Refresher) refreshOne(ctx context.Context, connectionID int64) error {
	tokens, err := r.repo.GetTokens(ctx, connectionID)
	if err != nil {
		return err
	}
	if tokens.RefreshToken == "" {
		r.markPermanentFailure(ctx, connectionID, "no refresh token on file")
		return nil
	}

	src := r.oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: tokens.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		r.markPermanentFailure(ctx, connectionID, "refresh token grant rejected: "+err.Error())
		return err
	}

	refreshToken := fresh.RefreshToken
	if refreshToken == "" {
		refreshToken = tokens.RefreshToken // providers may omit rotation
	}
	return r.repo.UpsertTokens(ctx, connectionID, OAuthTokens{
		AccessToken:  fresh.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    fresh.Expiry,
	})
}

func (r *Refresher) markPermanentFailure(ctx context.Context, connectionID int64, reason string) {
	if err := r.repo.MarkBroken(ctx, connectionID, reason); err != nil {
		r.logger.Warn("credential refresher: mark broken failed", zap.Int64("connection_id", connectionID), zap.Error(err))
	}
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, models.Notification{
		Kind:     models.NotificationCredentialFailed,
		Subject:  "storage credential refresh failed",
		Message:  reason,
		Metadata: map[string]any{"connection_id": connectionID},
	}); err != nil {
		r.logger.Warn("credential refresher: notify failed", zap.Error(err))
	}
}
