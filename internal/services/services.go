// package services defines the interfaces the job needs from music streaming APIs
//
// Spotify is the only implementation.
package services

import (
	"context"
	"time"

	"github.com/desertthunder/popetl/internal/models"
	"golang.org/x/oauth2"
)

// MaxRecentlyPlayed is the largest page the recently played endpoint returns.
const MaxRecentlyPlayed = 50

// RecentlyPlayedSource returns the authenticated account's recent play history.
type RecentlyPlayedSource interface {
	// RecentlyPlayed fetches one bounded page of play events, newest first.
	RecentlyPlayed(ctx context.Context, opts RecentlyPlayedOpts) ([]models.PlayEvent, error)
}

// RecentlyPlayedOpts bounds the recently played request.
//
// At most one of After and Before may be set.
type RecentlyPlayedOpts struct {
	Limit  int       // 1..50, values outside are clamped
	After  time.Time // only plays after this instant
	Before time.Time // only plays before this instant
}

// OAuthService is implemented by services that authorize through the OAuth2 authorization code flow.
type OAuthService interface {
	GetAuthURL(state string) string                              // GetAuthURL builds the consent URL for state
	GetOAuthConfig() *oauth2.Config                              // GetOAuthConfig exposes the config used for code exchange
	OAuthenticate(ctx context.Context, token *oauth2.Token) error // OAuthenticate installs a token obtained elsewhere
}
