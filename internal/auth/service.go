package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/fanforge/creator-platform/internal/models"
	"github.com/fanforge/creator-platform/internal/util"
)

var (
	// ErrInvalidCredentials covers both unknown user and wrong password.
	// Signin never distinguishes the two in its response.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned by stores when a signup email already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrTokenNotFound is returned by stores for unknown or revoked tokens.
	ErrTokenNotFound = errors.New("token not found")
	// ErrUserNotFound is returned by stores for unknown user ids or emails.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenExpired is returned when a presented token is past its TTL.
	ErrTokenExpired = errors.New("token expired")
	// ErrWeakPassword marks passwords below the minimum length.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
)

// dummyHash keeps bcrypt work constant when the email is unknown, so signin
// latency does not leak account existence.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("creator-platform-dummy"), bcrypt.MinCost)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u models.User) error
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id string) (models.User, error)
}

// RefreshTokenStore persists refresh tokens by hash.
type RefreshTokenStore interface {
	SaveRefreshToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshToken(ctx context.Context, tokenHash string) (string, time.Time, error)
	DeleteRefreshToken(ctx context.Context, tokenHash string) error
}

// EmailSender delivers transactional email. Welcome mail is best effort.
type EmailSender interface {
	SendWelcome(ctx context.Context, email, displayName string) error
}

// Config controls token lifetimes and hashing cost.
type Config struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
}

// Service implements signup, signin, refresh and bearer authentication.
// Access tokens are opaque random values held sha256-hashed in an in-process
// cache; refresh tokens are persisted hashed through the RefreshTokenStore.
type Service struct {
	users   UserStore
	refresh RefreshTokenStore
	email   EmailSender
	cfg     Config
	logger  zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex
	access map[string]accessEntry
}

type accessEntry struct {
	userID    string
	expiresAt time.Time
}

// NewService constructs a Service.
func NewService(users UserStore, refresh RefreshTokenStore, email EmailSender, cfg Config, logger zerolog.Logger) (*Service, error) {
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}
	if refresh == nil {
		return nil, errors.New("auth: refresh token store is required")
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Service{
		users:   users,
		refresh: refresh,
		email:   email,
		cfg:     cfg,
		logger:  logger.With().Str("component", "auth_service").Logger(),
		now:     time.Now,
		access:  make(map[string]accessEntry),
	}, nil
}

// WithClock overrides the time source for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Signup registers a new account and returns the user with a token pair.
// A failing welcome email is logged and ignored; account creation is the
// critical path, mail delivery is not.
func (s *Service) Signup(ctx context.Context, email, password, displayName string) (models.User, models.TokenPair, error) {
	normalized, err := util.NormalizeEmail(email)
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}
	if err := util.EnsureMinRunes("password", password, 8); err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("%w", ErrWeakPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("auth: hash password: %w", err)
	}

	u := models.User{
		ID:           uuid.New().String(),
		Email:        normalized,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Tier:         models.TierStandard,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.users.CreateUser(ctx, u); err != nil {
		return models.User{}, models.TokenPair{}, err
	}

	if s.email != nil {
		if err := s.email.SendWelcome(ctx, u.Email, u.DisplayName); err != nil {
			s.logger.Warn().Err(err).Str("user_id", u.ID).Msg("welcome email failed; signup continues")
		}
	}

	pair, err := s.issueTokens(ctx, u.ID)
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}
	return u, pair, nil
}

// Signin authenticates credentials and returns a fresh token pair. Unknown
// email and wrong password produce the identical ErrInvalidCredentials;
// store failures pass through so the HTTP layer can answer 500.
func (s *Service) Signin(ctx context.Context, email, password string) (models.User, models.TokenPair, error) {
	normalized, err := util.NormalizeEmail(email)
	if err != nil {
		return models.User{}, models.TokenPair{}, ErrInvalidCredentials
	}

	u, err := s.users.UserByEmail(ctx, normalized)
	if errors.Is(err, ErrUserNotFound) {
		// Burn comparable bcrypt work before answering.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return models.User{}, models.TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("auth: lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return models.User{}, models.TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issueTokens(ctx, u.ID)
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}
	return u, pair, nil
}

// Refresh rotates the refresh token and issues a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	hash := hashToken(refreshToken)

	userID, expiresAt, err := s.refresh.LookupRefreshToken(ctx, hash)
	if errors.Is(err, ErrTokenNotFound) {
		return models.TokenPair{}, ErrTokenNotFound
	}
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("auth: lookup refresh token: %w", err)
	}

	if !s.now().Before(expiresAt) {
		_ = s.refresh.DeleteRefreshToken(ctx, hash)
		return models.TokenPair{}, ErrTokenExpired
	}

	// Rotation: the presented token is single use.
	if err := s.refresh.DeleteRefreshToken(ctx, hash); err != nil {
		return models.TokenPair{}, fmt.Errorf("auth: rotate refresh token: %w", err)
	}

	return s.issueTokens(ctx, userID)
}

// Authenticate resolves a bearer access token to its user.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (models.User, error) {
	hash := hashToken(accessToken)

	s.mu.Lock()
	entry, ok := s.access[hash]
	if ok && !s.now().Before(entry.expiresAt) {
		delete(s.access, hash)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return models.User{}, ErrTokenNotFound
	}

	u, err := s.users.UserByID(ctx, entry.userID)
	if err != nil {
		return models.User{}, fmt.Errorf("auth: resolve user: %w", err)
	}
	return u, nil
}

func (s *Service) issueTokens(ctx context.Context, userID string) (models.TokenPair, error) {
	now := s.now().UTC()

	accessToken, err := randomToken()
	if err != nil {
		return models.TokenPair{}, err
	}
	refreshToken, err := randomToken()
	if err != nil {
		return models.TokenPair{}, err
	}

	accessExpiry := now.Add(s.cfg.AccessTokenTTL)
	refreshExpiry := now.Add(s.cfg.RefreshTokenTTL)

	s.mu.Lock()
	s.access[hashToken(accessToken)] = accessEntry{userID: userID, expiresAt: accessExpiry}
	s.mu.Unlock()

	if err := s.refresh.SaveRefreshToken(ctx, hashToken(refreshToken), userID, refreshExpiry); err != nil {
		return models.TokenPair{}, fmt.Errorf("auth: save refresh token: %w", err)
	}

	return models.TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiry,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// hashToken derives the at-rest key for a token. Raw tokens never touch
// storage.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
