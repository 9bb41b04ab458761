// Package services implements the music streaming API collaborator used by the extract stage.
//
// # Interfaces
//
// [RecentlyPlayedSource] is everything the pipeline needs: one bounded page of play events.
// [OAuthService] is used by the CLI to run the authorization code flow and install tokens.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
//
// The [oauth2.Client] refreshes expired tokens using the refresh token. A callback registered with
// [SpotifyService.SetTokenRefreshCallback] is told about every new token so it can be persisted.
//
// Requests are throttled with a [rate.Limiter].
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : the API answered 401, reauthorization needed
//   - [shared.ErrRateLimited] : the API answered 429
//   - [shared.ErrAPIRequest] : any other non-2xx response
//
// # API Mappings
//
// Spotify play history items are converted to [models.PlayEvent]. Values missing from the payload
// (a null track, an absent popularity) stay nil so the transform stage can reject them.
package services
