package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/desertthunder/popetl/internal/server"
	"github.com/desertthunder/popetl/internal/services"
	"github.com/desertthunder/popetl/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// Auth runs the OAuth2 authorization code flow and stores the tokens in the config file.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := config.Credentials.Spotify.Validate(); err != nil {
		return err
	}

	svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map(), services.WithLogger(r.logger))
	if err != nil {
		return fmt.Errorf("failed to create spotify service: %w", err)
	}

	token, err := r.doOAuth(ctx, config, svc)
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	if err := svc.OAuthenticate(ctx, token); err != nil {
		return fmt.Errorf("failed to authenticate with new tokens: %w", err)
	}

	r.writePlain("✓ Authorization successful\n")
	r.writePlain("  Tokens saved to %s\n", r.configPath)

	if user, err := svc.UserProfile(ctx); err != nil {
		r.logger.Warn("failed to fetch user profile", "error", err)
	} else {
		r.writePlain("  Authorized as %s (%s)\n", user.DisplayName, user.ID)
	}
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, config *shared.Config, oauthSrv services.OAuthService) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := oauthSrv.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(oauthSrv.GetOAuthConfig(), state).WithHTTPClient(r.httpClient)

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger))
	router.Handler(oauthHandler)

	addr := net.JoinHostPort(config.Server.Host, strconv.Itoa(config.Server.Port))
	callbackServer := server.NewCallbackServer(addr, router, r.logger)
	if err := callbackServer.Start(); err != nil {
		return nil, err
	}
	r.logger.Infof("starting OAuth server at %v", callbackServer.Addr())

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := callbackServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", authTimeout)

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err, ok := <-callbackServer.Errors(); ok && err != nil {
			r.logger.Error("callback server stopped", "error", err)
			cancel()
		}
	}()

	token, err := oauthHandler.Wait(waitCtx, authTimeout)
	if err != nil {
		return nil, fmt.Errorf("authorization failed: %w", err)
	}
	if token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return token, nil
}

// saveTokens updates the Spotify token in memory and, when a config path is known, on disk.
//
// Only the token fields are written. The file is re-read first so values that came from the
// environment never end up in it.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrInvalidConfig)
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if r.configPath == "" {
		return nil
	}

	onDisk := shared.DefaultConfig()
	if _, err := os.Stat(r.configPath); err == nil {
		if onDisk, err = shared.LoadConfig(r.configPath); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}

	if err := onDisk.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if err := shared.SaveConfig(r.configPath, onDisk); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.logger.Info("tokens saved", "path", r.configPath)
	return nil
}
