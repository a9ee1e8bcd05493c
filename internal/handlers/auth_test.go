package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fanforge/creator-platform/internal/auth"
	"github.com/fanforge/creator-platform/internal/models"
)

type authStub struct {
	signupErr  error
	signinErr  error
	refreshErr error
}

func (a *authStub) Signup(_ context.Context, email, _, displayName string) (models.User, models.TokenPair, error) {
	if a.signupErr != nil {
		return models.User{}, models.TokenPair{}, a.signupErr
	}
	return models.User{ID: "u-1", Email: email, DisplayName: displayName, Tier: models.TierStandard},
		stubTokens("rt"), nil
}

func stubTokens(refresh string) models.TokenPair {
	return models.TokenPair{
		AccessToken:      "at",
		RefreshToken:     refresh,
		RefreshExpiresAt: time.Now().Add(time.Hour),
	}
}

func (a *authStub) Signin(_ context.Context, email, _ string) (models.User, models.TokenPair, error) {
	if a.signinErr != nil {
		return models.User{}, models.TokenPair{}, a.signinErr
	}
	return models.User{ID: "u-1", Email: email}, stubTokens("rt"), nil
}

func (a *authStub) Refresh(_ context.Context, _ string) (models.TokenPair, error) {
	if a.refreshErr != nil {
		return models.TokenPair{}, a.refreshErr
	}
	return stubTokens("rt2"), nil
}

func authRouter(svc AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterAuthRoutes(r, svc)
	return r
}

func TestSignupEndpoint(t *testing.T) {
	r := authRouter(&authStub{})

	rec := doJSON(r, http.MethodPost, "/auth/signup", `{"email":"a@b.com","password":"correct horse battery","display_name":"A"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.User.Email != "a@b.com" || resp.Tokens.AccessToken == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSignupConflict(t *testing.T) {
	r := authRouter(&authStub{signupErr: auth.ErrEmailTaken})

	rec := doJSON(r, http.MethodPost, "/auth/signup", `{"email":"a@b.com","password":"correct horse battery"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestSignupWeakPassword(t *testing.T) {
	r := authRouter(&authStub{signupErr: auth.ErrWeakPassword})

	rec := doJSON(r, http.MethodPost, "/auth/signup", `{"email":"a@b.com","password":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSigninInvalidCredentials(t *testing.T) {
	r := authRouter(&authStub{signinErr: auth.ErrInvalidCredentials})

	rec := doJSON(r, http.MethodPost, "/auth/signin", `{"email":"a@b.com","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSigninStoreFailureIs500(t *testing.T) {
	r := authRouter(&authStub{signinErr: errors.New("connection refused")})

	rec := doJSON(r, http.MethodPost, "/auth/signin", `{"email":"a@b.com","password":"whatever"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("infrastructure failure must be 500, got %d", rec.Code)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	r := authRouter(&authStub{})

	rec := doJSON(r, http.MethodPost, "/auth/refresh", `{"refresh_token":"rt"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	invalid := authRouter(&authStub{refreshErr: auth.ErrTokenNotFound})
	rec = doJSON(invalid, http.MethodPost, "/auth/refresh", `{"refresh_token":"stale"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", rec.Code)
	}
}

func TestSigninSetsRefreshCookie(t *testing.T) {
	r := authRouter(&authStub{})

	rec := doJSON(r, http.MethodPost, "/auth/signin", `{"email":"a@b.com","password":"correct horse battery"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var cookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == refreshCookieName {
			cookie = ck
		}
	}
	if cookie == nil {
		t.Fatal("refresh cookie not set")
	}
	if cookie.Value != "rt" || !cookie.HttpOnly || cookie.Path != "/auth" {
		t.Fatalf("unexpected cookie: %+v", cookie)
	}
}

func TestRefreshAcceptsCookie(t *testing.T) {
	r := authRouter(&authStub{})

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "rt"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 via cookie, got %d: %s", rec.Code, rec.Body.String())
	}

	bare := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, bare)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without token, got %d", rec.Code)
	}
}

func TestBearerAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	authn := authenticatorFunc(func(_ context.Context, token string) (models.User, error) {
		if token == "good" {
			return models.User{ID: "u-1"}, nil
		}
		return models.User{}, auth.ErrTokenNotFound
	})

	group := r.Group("/")
	group.Use(BearerAuth(authn))
	group.GET("/whoami", func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"id": user.ID})
	})

	cases := []struct {
		header string
		want   int
	}{
		{"Bearer good", http.StatusOK},
		{"Bearer bad", http.StatusUnauthorized},
		{"good", http.StatusUnauthorized},
		{"", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("header %q: expected %d, got %d", tc.header, tc.want, rec.Code)
		}
	}
}

type authenticatorFunc func(ctx context.Context, token string) (models.User, error)

func (f authenticatorFunc) Authenticate(ctx context.Context, token string) (models.User, error) {
	return f(ctx, token)
}
