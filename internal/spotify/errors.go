package spotify

import "errors"

var (
	// ErrNotAuthenticated means no credential record exists for the host.
	ErrNotAuthenticated = errors.New("host not authenticated with spotify")

	// ErrRefreshFailed means the refresh exchange was rejected. The stale
	// record is left in place; the host must re-authenticate.
	ErrRefreshFailed = errors.New("failed to refresh spotify token")

	// ErrUnauthorized means the upstream rejected the access token (401).
	ErrUnauthorized = errors.New("spotify access token rejected")

	ErrTrackNotFound = errors.New("track not found on spotify")
	ErrRateLimited   = errors.New("spotify rate limit exceeded")

	// ErrUpstreamTimeout marks a bounded-timeout expiry; the caller may
	// retry the whole action.
	ErrUpstreamTimeout = errors.New("spotify request timed out")

	ErrUpstream = errors.New("spotify request failed")
)
