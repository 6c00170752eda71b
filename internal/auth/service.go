package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Subject is the token subject for API key holders. AnonymousSubject is
// used when auth is disabled.
const (
	Subject          = "api-client"
	AnonymousSubject = "anonymous"
)

const tokenTTL = 24 * time.Hour

// Service exchanges the API key for short-lived JWTs. With no key hash
// configured every request is let through.
type Service struct {
	apiKeyHash []byte
	jwtSecret  []byte
	now        func() time.Time
}

func NewService(apiKeyHash, jwtSecret string) *Service {
	return &Service{
		apiKeyHash: []byte(apiKeyHash),
		jwtSecret:  []byte(jwtSecret),
		now:        time.Now,
	}
}

type AuthResult struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Enabled reports whether requests need a token.
func (s *Service) Enabled() bool {
	return len(s.apiKeyHash) > 0
}

// HashKey returns the bcrypt hash to configure for apiKey.
func HashKey(apiKey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), 12)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	return string(hash), nil
}

func (s *Service) IssueToken(apiKey string) (*AuthResult, error) {
	if s.Enabled() {
		if err := bcrypt.CompareHashAndPassword(s.apiKeyHash, []byte(apiKey)); err != nil {
			return nil, ErrInvalidCredentials
		}
	}

	now := s.now()
	expires := now.Add(tokenTTL)
	claims := jwt.MapClaims{
		"sub": Subject,
		"jti": uuid.New().String(),
		"iat": now.Unix(),
		"exp": expires.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &AuthResult{Token: signed, ExpiresAt: expires.UnixMilli()}, nil
}

func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	subject, ok := claims["sub"].(string)
	if !ok || subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return subject, nil
}
