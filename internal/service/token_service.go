package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/craft-api/internal/models"
	appErrors "github.com/noah-isme/craft-api/pkg/errors"
)

const opaqueTokenBytes = 64

// tokenRegistry answers whether an opaque token value is already taken.
type tokenRegistry interface {
	RefreshTokenExists(ctx context.Context, token string) (bool, error)
	VerificationTokenExists(ctx context.Context, token string) (bool, error)
	ResetTokenExists(ctx context.Context, token string) (bool, error)
}

// TokenConfig defines token lifetimes and signing material.
type TokenConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration
	MaxAttempts     int
}

// TokenService mints and validates access tokens and generates opaque tokens.
type TokenService struct {
	registry tokenRegistry
	config   TokenConfig
	random   io.Reader
	now      func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(registry tokenRegistry, config TokenConfig) *TokenService {
	if config.AccessTokenTTL <= 0 {
		config.AccessTokenTTL = 15 * time.Minute
	}
	if config.RefreshTokenTTL <= 0 {
		config.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if config.ResetTokenTTL <= 0 {
		config.ResetTokenTTL = 24 * time.Hour
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	return &TokenService{
		registry: registry,
		config:   config,
		random:   rand.Reader,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AccessTokenTTL returns the lifetime of minted access tokens.
func (s *TokenService) AccessTokenTTL() time.Duration {
	return s.config.AccessTokenTTL
}

// RefreshTokenTTL returns the lifetime of refresh tokens.
func (s *TokenService) RefreshTokenTTL() time.Duration {
	return s.config.RefreshTokenTTL
}

// MintAccessToken signs an HS256 token carrying the account id.
func (s *TokenService) MintAccessToken(accountID string) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.config.AccessTokenTTL)
	claims := &models.AccessClaims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken returns the account id carried by a valid token. Any
// parse, signature, algorithm or expiry failure yields ok=false.
func (s *TokenService) ValidateAccessToken(tokenString string) (string, bool) {
	if strings.TrimSpace(tokenString) == "" {
		return "", false
	}

	claims := &models.AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || claims.AccountID == "" {
		return "", false
	}
	return claims.AccountID, true
}

// GenerateRefreshToken creates an unused refresh token stamped with ip.
func (s *TokenService) GenerateRefreshToken(ctx context.Context, ip string) (*models.RefreshToken, error) {
	value, err := s.uniqueToken(ctx, s.registry.RefreshTokenExists)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &models.RefreshToken{
		Token:       value,
		Expires:     now.Add(s.config.RefreshTokenTTL),
		Created:     now,
		CreatedByIP: ip,
	}, nil
}

// GenerateVerificationToken returns an unused email verification token.
func (s *TokenService) GenerateVerificationToken(ctx context.Context) (string, error) {
	return s.uniqueToken(ctx, s.registry.VerificationTokenExists)
}

// GenerateResetToken returns an unused password reset token and its expiry.
func (s *TokenService) GenerateResetToken(ctx context.Context) (string, time.Time, error) {
	value, err := s.uniqueToken(ctx, s.registry.ResetTokenExists)
	if err != nil {
		return "", time.Time{}, err
	}
	return value, s.now().Add(s.config.ResetTokenTTL), nil
}

func (s *TokenService) uniqueToken(ctx context.Context, exists func(context.Context, string) (bool, error)) (string, error) {
	for attempt := 0; attempt < s.config.MaxAttempts; attempt++ {
		value, err := s.randomHex()
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrTokenGeneration.Code, appErrors.ErrTokenGeneration.Status, appErrors.ErrTokenGeneration.Message)
		}
		taken, err := exists(ctx, value)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check token uniqueness")
		}
		if !taken {
			return value, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrTokenGeneration, fmt.Sprintf("unable to generate a unique token after %d attempts", s.config.MaxAttempts))
}

func (s *TokenService) randomHex() (string, error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
