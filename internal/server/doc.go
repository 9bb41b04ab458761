// Package server provides HTTP routing, middleware, and the OAuth callback listener used by `popetl auth`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] implements it on top of
// [http.ServeMux] with method-qualified patterns. [Logging] and [Recover] are the stock middleware.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback. It validates the state parameter
// (CSRF protection), exchanges the code for tokens and publishes exactly one [OAuthResult].
// Later callbacks are rejected.
//
// # Callback Server
//
// [CallbackServer] binds the redirect address (localhost:3000 by default), serves until the token
// arrives and is then shut down by the caller.
package server
