// Package auth issues and verifies the bearer tokens of the admin console.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tapcard/cardshop/internal/orders"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

const (
	RoleAdmin = "admin"
	issuer    = "cardshop"
)

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	secret     []byte
	ttl        time.Duration
	adminEmail string
	adminHash  []byte
	now        func() time.Time
}

// NewService needs a secret and the bcrypt hash of the admin password.
func NewService(secret string, ttl time.Duration, adminEmail, adminHash string) (*Service, error) {
	if secret == "" {
		return nil, errors.New("auth: jwt secret is empty")
	}
	if adminHash != "" {
		if _, err := bcrypt.Cost([]byte(adminHash)); err != nil {
			return nil, fmt.Errorf("auth: admin password hash: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{
		secret:     []byte(secret),
		ttl:        ttl,
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
		adminHash:  []byte(adminHash),
		now:        time.Now,
	}, nil
}

// HashPassword is used by operators to produce AUTH_ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Actor     orders.Actor `json:"actor"`
}

func (s *Service) Login(email, password string) (Session, error) {
	if len(s.adminHash) == 0 {
		return Session{}, ErrInvalidCredentials
	}
	email = strings.ToLower(strings.TrimSpace(email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.adminEmail)) == 1
	// always pay for bcrypt so an unknown email takes as long as a bad password
	pwErr := bcrypt.CompareHashAndPassword(s.adminHash, []byte(password))
	if !emailOK || pwErr != nil {
		return Session{}, ErrInvalidCredentials
	}
	actor := orders.Actor{ID: s.adminEmail, Email: s.adminEmail, Role: RoleAdmin}
	token, exp, err := s.Issue(actor)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, Actor: actor}, nil
}

func (s *Service) Issue(a orders.Actor) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := &Claims{
		Email: a.Email,
		Role:  a.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   a.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// Parse verifies a token and returns the actor it was issued to.
func (s *Service) Parse(token string) (orders.Actor, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !t.Valid {
		return orders.Actor{}, ErrInvalidToken
	}
	return orders.Actor{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}
