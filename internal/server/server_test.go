package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/popetl/internal/shared"
	"golang.org/x/oauth2"
)

// tokenServer fakes the provider's token endpoint
func tokenServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"access","refresh_token":"refresh","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func oauthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:3000/callback",
		Endpoint:     oauth2.Endpoint{AuthURL: "http://example.invalid/auth", TokenURL: tokenURL},
	}
}

func TestOAuthHandler(t *testing.T) {
	t.Run("exchanges code", func(t *testing.T) {
		ts := tokenServer(t, http.StatusOK)
		h := NewOAuthHandler(oauthConfig(ts.URL), "state-1").WithHTTPClient(ts.Client())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=abc", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Spotify access granted") {
			t.Errorf("expected success page, got %s", rec.Body.String())
		}

		token, err := h.Wait(context.Background(), time.Second)
		if err != nil {
			t.Fatalf("expected token, got %v", err)
		}
		if token.AccessToken != "access" || token.RefreshToken != "refresh" {
			t.Errorf("unexpected token %+v", token)
		}
	})

	t.Run("rejects bad state", func(t *testing.T) {
		h := NewOAuthHandler(oauthConfig("http://unused"), "expected")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=other&code=abc", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if _, err := h.Wait(context.Background(), time.Second); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("denied authorization", func(t *testing.T) {
		h := NewOAuthHandler(oauthConfig("http://unused"), "s")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&error=access_denied", nil))

		_, err := h.Wait(context.Background(), time.Second)
		if err == nil || !strings.Contains(err.Error(), "access_denied") {
			t.Errorf("expected access_denied error, got %v", err)
		}
	})

	t.Run("failed exchange", func(t *testing.T) {
		ts := tokenServer(t, http.StatusBadRequest)
		h := NewOAuthHandler(oauthConfig(ts.URL), "s").WithHTTPClient(ts.Client())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&code=abc", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if _, err := h.Wait(context.Background(), time.Second); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("second callback rejected", func(t *testing.T) {
		h := NewOAuthHandler(oauthConfig("http://unused"), "s")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=bad", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&code=abc", nil))
		if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "already processed") {
			t.Errorf("expected replay to be rejected, got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("wait times out", func(t *testing.T) {
		h := NewOAuthHandler(oauthConfig("http://unused"), "s")
		if _, err := h.Wait(context.Background(), 10*time.Millisecond); !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("routes follow redirect url", func(t *testing.T) {
		cfg := oauthConfig("http://unused")
		cfg.RedirectURL = "http://127.0.0.1:8888/oauth/spotify"
		if got := NewOAuthHandler(cfg, "s").Routes(); len(got) != 1 || got[0] != "/oauth/spotify" {
			t.Errorf("unexpected routes %v", got)
		}
		if got := CallbackPath("http://localhost:3000"); got != "/callback" {
			t.Errorf("expected default path, got %s", got)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("method filtering", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodPost, "/hook", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hook", nil))
		if rec.Code != http.StatusAccepted {
			t.Errorf("expected 202, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hook", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mw("first"), mw("second"))
		r.Handle(http.MethodGet, "/", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			order = append(order, "handler")
		}))

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Logging", func(t *testing.T) {
		var buf bytes.Buffer
		logger := log.New(&buf)
		h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback", nil))
		out := buf.String()
		if !strings.Contains(out, "path=/callback") || !strings.Contains(out, "status=418") {
			t.Errorf("unexpected log line %q", out)
		}
	})

	t.Run("Recover", func(t *testing.T) {
		h := Recover(log.New(io.Discard))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestCallbackServer(t *testing.T) {
	ts := tokenServer(t, http.StatusOK)
	handler := NewOAuthHandler(oauthConfig(ts.URL), "s").WithHTTPClient(ts.Client())

	router := NewBasicRouter()
	router.Use(Recover(log.New(io.Discard)))
	router.Handler(handler)

	srv := NewCallbackServer("127.0.0.1:0", router, log.New(io.Discard))
	if err := srv.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/callback?state=s&code=abc")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if _, err := handler.Wait(context.Background(), time.Second); err != nil {
		t.Errorf("expected token, got %v", err)
	}
}
