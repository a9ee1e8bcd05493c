package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fanforge/creator-platform/internal/auth"
	"github.com/fanforge/creator-platform/internal/models"
)

// AuthService is the account surface the auth endpoints depend on.
type AuthService interface {
	Signup(ctx context.Context, email, password, displayName string) (models.User, models.TokenPair, error)
	Signin(ctx context.Context, email, password string) (models.User, models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
}

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	User   models.User      `json:"user"`
	Tokens models.TokenPair `json:"tokens"`
}

const refreshCookieName = "refresh_token"

// setRefreshCookie mirrors the refresh token into an httpOnly cookie so
// browser clients never expose it to script. API clients may keep using the
// JSON field instead.
func setRefreshCookie(c *gin.Context, tokens models.TokenPair) {
	maxAge := int(time.Until(tokens.RefreshExpiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, tokens.RefreshToken, maxAge, "/auth", "", true, true)
}

// RegisterAuthRoutes registers the public account endpoints.
//
// POST /auth/signup
// POST /auth/signin
// POST /auth/refresh
func RegisterAuthRoutes(r gin.IRoutes, svc AuthService) {
	r.POST("/auth/signup", func(c *gin.Context) {
		var req signupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		user, tokens, err := svc.Signup(c.Request.Context(), req.Email, req.Password, req.DisplayName)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrEmailTaken):
				c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			case errors.Is(err, auth.ErrWeakPassword):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
			}
			return
		}

		setRefreshCookie(c, tokens)
		c.JSON(http.StatusCreated, sessionResponse{User: user, Tokens: tokens})
	})

	r.POST("/auth/signin", func(c *gin.Context) {
		var req signinRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		user, tokens, err := svc.Signin(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "signin failed"})
			return
		}

		setRefreshCookie(c, tokens)
		c.JSON(http.StatusOK, sessionResponse{User: user, Tokens: tokens})
	})

	r.POST("/auth/refresh", func(c *gin.Context) {
		var req refreshRequest
		_ = c.ShouldBindJSON(&req)
		if req.RefreshToken == "" {
			if cookie, err := c.Cookie(refreshCookieName); err == nil {
				req.RefreshToken = cookie
			}
		}
		if req.RefreshToken == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
			return
		}

		tokens, err := svc.Refresh(c.Request.Context(), req.RefreshToken)
		if err != nil {
			if errors.Is(err, auth.ErrTokenNotFound) || errors.Is(err, auth.ErrTokenExpired) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
			return
		}

		setRefreshCookie(c, tokens)
		c.JSON(http.StatusOK, gin.H{"tokens": tokens})
	})
}
