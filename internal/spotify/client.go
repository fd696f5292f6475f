package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"toptrack/internal/config"
	"toptrack/pkg/logger"
)

const (
	defaultAccountsURL = "https://accounts.spotify.com"
	defaultAPIURL      = "https://api.spotify.com"
)

// TokenResponse is the result of a code or refresh exchange. RefreshToken is
// empty when the upstream does not rotate it.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Track is the playable metadata returned by a catalog lookup.
type Track struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	DurationMS int    `json:"duration_ms"`
	ImageURL   string `json:"image_url"`
	PreviewURL string `json:"preview_url"`
	Popularity int    `json:"popularity"`
	Explicit   bool   `json:"explicit"`
}

// Client is the gateway to the Spotify accounts and web API services. All
// calls carry the configured bounded timeout.
type Client struct {
	clientID     string
	clientSecret string
	redirectURI  string
	scopes       string
	accountsURL  string
	apiURL       string
	httpClient   *http.Client
	cache        TrackCache
}

func NewClient(cfg config.SpotifyConfig, cache TrackCache) *Client {
	return &Client{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		scopes:       cfg.Scopes,
		accountsURL:  defaultAccountsURL,
		apiURL:       defaultAPIURL,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		cache:        cache,
	}
}

// AuthorizeURL builds the user-facing authorization URL. The state parameter
// carries the requested room name through the OAuth round trip.
func (c *Client) AuthorizeURL(state string) string {
	params := url.Values{
		"client_id":     {c.clientID},
		"response_type": {"code"},
		"redirect_uri":  {c.redirectURI},
		"scope":         {c.scopes},
		"state":         {state},
	}
	return c.accountsURL + "/authorize?" + params.Encode()
}

// ExchangeCode trades an authorization code for an access/refresh token pair.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.redirectURI},
	}
	return c.tokenExchange(ctx, form)
}

// RefreshToken trades a refresh token for a new access token. The upstream
// may or may not issue a new refresh token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return c.tokenExchange(ctx, form)
}

func (c *Client) tokenExchange(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.accountsURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Basic "+c.basicAuth())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: token endpoint returned %d", ErrUpstream, resp.StatusCode)
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("%w: decoding token response: %v", ErrUpstream, err)
	}
	return &token, nil
}

// GetProfile fetches the authenticated user's profile.
func (c *Client) GetProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/v1/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	default:
		return nil, fmt.Errorf("%w: profile endpoint returned %d", ErrUpstream, resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: decoding profile response: %v", ErrUpstream, err)
	}
	if profile.DisplayName == "" {
		profile.DisplayName = profile.ID
	}
	return &profile, nil
}

type trackResponse struct {
	Name       string `json:"name"`
	DurationMS int    `json:"duration_ms"`
	PreviewURL string `json:"preview_url"`
	Popularity int    `json:"popularity"`
	Explicit   bool   `json:"explicit"`
	Artists    []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
}

// GetTrack looks up a track by id, consulting the metadata cache first.
func (c *Client) GetTrack(ctx context.Context, accessToken, trackID string) (*Track, error) {
	if c.cache != nil {
		if track, ok := c.cache.GetTrack(ctx, trackID); ok {
			return track, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/v1/tracks/"+trackID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusNotFound:
		return nil, ErrTrackNotFound
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("%w: track endpoint returned %d", ErrUpstream, resp.StatusCode)
	}

	var data trackResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: decoding track response: %v", ErrUpstream, err)
	}

	track := &Track{
		Title:      data.Name,
		Artist:     joinArtists(data.Artists),
		Album:      data.Album.Name,
		DurationMS: data.DurationMS,
		PreviewURL: data.PreviewURL,
		Popularity: data.Popularity,
		Explicit:   data.Explicit,
	}
	if len(data.Album.Images) > 0 {
		track.ImageURL = data.Album.Images[0].URL
	}

	if c.cache != nil {
		c.cache.SetTrack(ctx, trackID, track)
	}
	return track, nil
}

func (c *Client) basicAuth() string {
	return base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
}

func joinArtists(artists []struct {
	Name string `json:"name"`
}) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

func wrapTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	logger.Debug("spotify transport error: %v", err)
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

// ParseTrackURL extracts the track id from a Spotify track URL.
func ParseTrackURL(spotifyURL string) (string, error) {
	if !strings.Contains(spotifyURL, "spotify.com/track/") {
		return "", fmt.Errorf("invalid spotify track URL")
	}
	rest := spotifyURL[strings.Index(spotifyURL, "/track/")+len("/track/"):]
	trackID := rest
	if i := strings.IndexAny(rest, "?/"); i >= 0 {
		trackID = rest[:i]
	}
	if trackID == "" {
		return "", fmt.Errorf("could not extract track id from URL")
	}
	return trackID, nil
}
