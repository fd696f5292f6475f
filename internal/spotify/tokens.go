package spotify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"toptrack/internal/database"
	"toptrack/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// refreshSkew is how long before expiry a token is already treated as stale.
const refreshSkew = 5 * time.Minute

// TokenManager owns the delegated credential pair for each host and hands out
// access tokens that are valid for at least refreshSkew more.
type TokenManager struct {
	store  database.TokenRepository
	client *Client
	group  singleflight.Group
	skew   time.Duration
}

func NewTokenManager(store database.TokenRepository, client *Client) *TokenManager {
	return &TokenManager{
		store:  store,
		client: client,
		skew:   refreshSkew,
	}
}

// GetValidToken returns a currently-valid access token for the host and its
// expiry, refreshing the stored pair when it is within the skew window.
// Concurrent callers for the same host share a single refresh exchange.
func (tm *TokenManager) GetValidToken(ctx context.Context, hostID string) (string, time.Time, error) {
	token, err := tm.store.GetToken(ctx, hostID)
	if errors.Is(err, database.ErrNotFound) {
		return "", time.Time{}, ErrNotAuthenticated
	}
	if err != nil {
		return "", time.Time{}, err
	}

	if time.Now().Before(token.ExpiresAt.Add(-tm.skew)) {
		return token.AccessToken, token.ExpiresAt, nil
	}
	return tm.refresh(ctx, hostID, token.AccessToken)
}

// ForceRefresh discards the stored access token even if it looks fresh. Used
// once when the catalog rejects a token with a 401.
func (tm *TokenManager) ForceRefresh(ctx context.Context, hostID, rejectedToken string) (string, time.Time, error) {
	return tm.refresh(ctx, hostID, rejectedToken)
}

// refresh performs the refresh exchange, single-flight per host. staleToken
// is the access token the caller considers invalid; if the stored record no
// longer matches it, another flight already refreshed and the stored token is
// returned as-is.
func (tm *TokenManager) refresh(ctx context.Context, hostID, staleToken string) (string, time.Time, error) {
	type result struct {
		accessToken string
		expiresAt   time.Time
	}

	v, err, _ := tm.group.Do(hostID, func() (interface{}, error) {
		token, err := tm.store.GetToken(ctx, hostID)
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotAuthenticated
		}
		if err != nil {
			return nil, err
		}

		if token.AccessToken != staleToken {
			// Refreshed by a flight that completed between our check and
			// this one.
			return result{token.AccessToken, token.ExpiresAt}, nil
		}

		resp, err := tm.client.RefreshToken(ctx, token.RefreshToken)
		if err != nil {
			// Leave the stale record in place; the host must
			// re-authenticate.
			return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
		}

		token.AccessToken = resp.AccessToken
		if resp.RefreshToken != "" {
			token.RefreshToken = resp.RefreshToken
		}
		token.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)

		if err := tm.store.UpsertToken(ctx, token); err != nil {
			return nil, fmt.Errorf("persisting refreshed token: %w", err)
		}

		logger.Info("Refreshed Spotify token for host %s", hostID)
		return result{token.AccessToken, token.ExpiresAt}, nil
	})
	if err != nil {
		return "", time.Time{}, err
	}

	r := v.(result)
	return r.accessToken, r.expiresAt, nil
}
