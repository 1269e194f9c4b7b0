package credentials

import (
	"context"
	"time"

	"github.com/fegerV/arplatform/pkg/apierrors"
)

// oauthTokenSource implements storage.TokenSource for a single cloud-disk
// StorageConnection. It never refreshes synchronously on the read path —
// the refresher loop (refresher.go) keeps tokens ahead of expiry; a
// request that observes an already-expired token is surfaced as
// KindCredentialExpired rather than silently retried inline.
type oauthTokenSource struct {
	connectionID int64
	repo         *Repository
}

// TokenSourceFor builds the TokenSource storage.Factory needs to construct
// a cloud-disk Provider for connectionID.
func (r *Repository) TokenSourceFor(connectionID int64) *oauthTokenSource {
	return &oauthTokenSource{connectionID: connectionID, repo: r}
}

func (t *oauthTokenSource) AccessToken(ctx context.Context) (string, error) {
	tokens, err := t.repo.GetTokens(ctx, t.connectionID)
	if err != nil {
		return "", err
	}
	if time.Now().After(tokens.ExpiresAt) {
		return "", apierrors.New(apierrors.KindCredentialExpired, "cloud disk access token expired, awaiting refresh")
	}
	return tokens.AccessToken, nil
}
