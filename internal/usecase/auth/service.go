package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/edoardo-nicoli03/stock-market-project/internal/domain"
)

// TokenKind distinguishes the two credentials a login hands out.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// TokenPair is the credential set returned by Login and Refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// ErrInvalidCredentials covers both a missing account and a wrong
// password so login failures do not reveal which one it was.
var ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", domain.ErrInvalidArgument)

// ErrInvalidToken is returned for expired, malformed or wrong-kind tokens.
var ErrInvalidToken = fmt.Errorf("%w: invalid token", domain.ErrInvalidArgument)

type claims struct {
	Kind TokenKind   `json:"kind"`
	Tier domain.Tier `json:"tier"`
	jwt.RegisteredClaims
}

// Service issues and verifies account credentials. Tokens are HMAC-signed
// and carry the account's tier so request handling does not need an
// account lookup per call.
type Service struct {
	Accounts domain.AccountRepository

	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService creates a new auth service
func NewService(accounts domain.AccountRepository, secret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		Accounts:   accounts,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Register creates a new account on the basic tier. Email is stored
// lowercased; a duplicate email surfaces as the repository's error.
func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (*domain.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", domain.ErrInvalidArgument)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidArgument)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &domain.Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    firstName,
		LastName:     lastName,
		Tier:         domain.TierBasic,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// Login verifies the password and issues a fresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	account, err := s.Accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issuePair(account)
}

// Refresh exchanges a valid refresh token for a new token pair. The
// account is re-read so a tier change takes effect on the next refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	accountID, _, err := s.Verify(refreshToken, TokenRefresh)
	if err != nil {
		return nil, err
	}

	account, err := s.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return s.issuePair(account)
}

// Verify parses a token, checks its signature and expiry, and confirms it
// is of the expected kind. Returns the account ID and tier baked into it.
func (s *Service) Verify(token string, kind TokenKind) (uuid.UUID, domain.Tier, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, "", ErrInvalidToken
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || c.Kind != kind {
		return uuid.Nil, "", ErrInvalidToken
	}

	accountID, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, "", ErrInvalidToken
	}

	return accountID, c.Tier, nil
}

func (s *Service) issuePair(account *domain.Account) (*TokenPair, error) {
	access, err := s.sign(account, TokenAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(account, TokenRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *Service) sign(account *domain.Account, kind TokenKind, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Kind: kind,
		Tier: account.Tier,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
