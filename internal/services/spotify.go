// Spotify API implementation of [RecentlyPlayedSource]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/popetl/internal/models"
	"github.com/desertthunder/popetl/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// DefaultRedirectURI matches the redirect registered for the local callback listener.
	DefaultRedirectURI = "http://localhost:3000/callback"
	defaultRateLimit   = 5.0
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
	Product     string `json:"product"` // premium, free, etc.
}

// SpotifyTrack represents a Spotify track. Name and Popularity are pointers so that a missing value
// can be told apart from an empty one.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       *string         `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Explicit   bool            `json:"explicit"`
	Popularity *int            `json:"popularity"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string  `json:"id"`
	Name *string `json:"name"`
	URI  string  `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
	URI         string `json:"uri"`
}

// SpotifyContext is the playlist, album or artist a track was played from.
type SpotifyContext struct {
	Type string `json:"type"`
	URI  string `json:"uri"`
	Href string `json:"href"`
}

// SpotifyPlayHistory is one item of the recently played response.
type SpotifyPlayHistory struct {
	Track    *SpotifyTrack   `json:"track"`
	PlayedAt *string         `json:"played_at"`
	Context  *SpotifyContext `json:"context"`
}

// SpotifyCursors are the unix-millisecond cursors of a recently played page.
type SpotifyCursors struct {
	After  string `json:"after"`
	Before string `json:"before"`
}

// SpotifyRecentlyPlayed represents a cursor-paginated page of play history.
type SpotifyRecentlyPlayed struct {
	Href    string               `json:"href"`
	Items   []SpotifyPlayHistory `json:"items"`
	Limit   int                  `json:"limit"`
	Next    *string              `json:"next"`
	Cursors *SpotifyCursors      `json:"cursors"`
}

type spotifyErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SpotifyService implements [RecentlyPlayedSource] and [OAuthService] for the Spotify Web API.
// Uses [oauth2] for authentication and a [rate.Limiter] to pace requests.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	baseClient     *http.Client
	baseURL        string
	limiter        *rate.Limiter
	onTokenRefresh func(*oauth2.Token)
	credentials    map[string]string
	logger         *log.Logger
}

// SpotifyOption customizes a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithBaseURL points the service at a different API root.
func WithBaseURL(u string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = u }
}

// WithHTTPClient sets the client used for API calls and token refreshes.
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyService) {
		if c != nil {
			s.baseClient = c
			s.httpClient = c
		}
	}
}

// WithLogger sets the logger used for token refresh problems.
func WithLogger(l *log.Logger) SpotifyOption {
	return func(s *SpotifyService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRateLimit caps requests per second. Non-positive values disable throttling.
func WithRateLimit(rps float64) SpotifyOption {
	return func(s *SpotifyService) {
		if rps <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-library-read",
			"user-read-recently-played",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	s := &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		baseURL:     spotifyBaseURL,
		limiter:     rate.NewLimiter(rate.Limit(defaultRateLimit), 1),
		credentials: credentials,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Authenticate performs OAuth2 authentication with Spotify.
//
// Expects an "access_token" (optionally with "refresh_token"), a lone "refresh_token", or an "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	accessToken := credentials["access_token"]
	refreshToken := credentials["refresh_token"]

	if accessToken != "" || refreshToken != "" {
		token := &oauth2.Token{AccessToken: accessToken, RefreshToken: refreshToken}
		if accessToken == "" {
			// Forces a refresh on first use.
			token.Expiry = time.Unix(1, 0)
		}
		return s.OAuthenticate(ctx, token)
	}

	if authCode := credentials["auth_code"]; authCode != "" {
		token, err := s.config.Exchange(s.clientContext(ctx), authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing access_token, refresh_token or auth_code", shared.ErrMissingCredentials)
}

// OAuthenticate installs token and builds an HTTP client that refreshes it when it expires.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: token is nil", shared.ErrNotAuthenticated)
	}

	ctx = s.clientContext(ctx)
	source := &refreshableTokenSource{
		source:   oauth2.ReuseTokenSource(token, s.config.TokenSource(ctx, token)),
		callback: s.notifyRefresh,
		logger:   s.logger,
		last:     token.AccessToken,
	}

	s.token = token
	s.httpClient = oauth2.NewClient(ctx, source)
	return nil
}

func (s *SpotifyService) clientContext(ctx context.Context) context.Context {
	if s.baseClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, s.baseClient)
	}
	return ctx
}

// SetTokenRefreshCallback registers fn to receive every token obtained through a refresh.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

func (s *SpotifyService) notifyRefresh(token *oauth2.Token) {
	if s.onTokenRefresh != nil {
		s.onTokenRefresh(token)
	}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the underlying [oauth2.Config].
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and reports tokens it has not seen before.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	logger   *log.Logger

	mu   sync.Mutex
	last string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.safeCallback(token)
	}
	return token, nil
}

// safeCallback keeps a failing persistence callback from breaking the request that triggered it.
// A panic is logged and the new token is still used.
func (r *refreshableTokenSource) safeCallback(token *oauth2.Token) {
	defer func() {
		if v := recover(); v != nil && r.logger != nil {
			r.logger.Error("token refresh callback panicked", "panic", v)
		}
	}()
	r.callback(token)
}

// doRequest performs an authenticated GET request to the Spotify API and decodes the JSON body into result.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, query url.Values, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	apiURL := s.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: token refresh failed: %v", shared.ErrTokenExpired, retrieveErr)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrTokenExpired, errorMessage(resp))
	case resp.StatusCode == http.StatusTooManyRequests:
		retry := resp.Header.Get("Retry-After")
		return fmt.Errorf("%w: retry after %ss", shared.ErrRateLimited, retry)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify status %d: %s", shared.ErrAPIRequest, resp.StatusCode, errorMessage(resp))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// errorMessage extracts the message from a Spotify error body, falling back to the status text.
func errorMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var e spotifyErrorBody
		if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
			return e.Error.Message
		}
	}
	return http.StatusText(resp.StatusCode)
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RecentlyPlayedPage retrieves the raw recently played response.
func (s *SpotifyService) RecentlyPlayedPage(ctx context.Context, opts RecentlyPlayedOpts) (*SpotifyRecentlyPlayed, error) {
	if !opts.After.IsZero() && !opts.Before.IsZero() {
		return nil, fmt.Errorf("%w: only one of after and before may be set", shared.ErrInvalidArgument)
	}

	limit := opts.Limit
	if limit <= 0 || limit > MaxRecentlyPlayed {
		limit = MaxRecentlyPlayed
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if !opts.After.IsZero() {
		query.Set("after", strconv.FormatInt(opts.After.UnixMilli(), 10))
	}
	if !opts.Before.IsZero() {
		query.Set("before", strconv.FormatInt(opts.Before.UnixMilli(), 10))
	}

	var page SpotifyRecentlyPlayed
	if err := s.doRequest(ctx, "/me/player/recently-played", query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// RecentlyPlayed retrieves the user's recently played tracks as [models.PlayEvent] values.
func (s *SpotifyService) RecentlyPlayed(ctx context.Context, opts RecentlyPlayedOpts) ([]models.PlayEvent, error) {
	page, err := s.RecentlyPlayedPage(ctx, opts)
	if err != nil {
		return nil, err
	}

	events := make([]models.PlayEvent, 0, len(page.Items))
	for _, item := range page.Items {
		events = append(events, item.PlayEvent())
	}
	return events, nil
}

// PlayEvent converts a play history item. A null track leaves every track-derived field nil.
func (h SpotifyPlayHistory) PlayEvent() models.PlayEvent {
	event := models.PlayEvent{PlayedAt: h.PlayedAt}
	if h.Track == nil {
		return event
	}

	event.TrackName = h.Track.Name
	event.Popularity = h.Track.Popularity
	event.Artists = artistNames(h.Track.Artists)
	return event
}

// artistNames returns the ordered names, or nil when the list is empty or any name is missing.
func artistNames(artists []SpotifyArtist) []string {
	if len(artists) == 0 {
		return nil
	}
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name == nil {
			return nil
		}
		names = append(names, *a.Name)
	}
	return names
}
