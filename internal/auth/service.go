package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/lostfound/lostfound/internal/shared"
)

// ErrInvalidToken indicates the bearer token failed validation or was revoked.
var ErrInvalidToken = errors.New("auth: invalid token")

// Config controls token issuance.
type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// Service wraps authentication business rules.
type Service struct {
	repo        Repository
	revocations RevocationStore
	secret      []byte
	issuer      string
	ttl         time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, revocations RevocationStore, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "lostfound"
	}
	return &Service{
		repo:        repo,
		revocations: revocations,
		secret:      []byte(cfg.Secret),
		issuer:      cfg.Issuer,
		ttl:         cfg.TTL,
		logger:      logger,
		now:         time.Now,
	}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates the credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password, ip, ua string) (Token, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return Token{}, err
	}
	return s.Issue(ctx, user.ID, ip, ua)
}

// Issue signs an access token for userID and records it.
func (s *Service) Issue(ctx context.Context, userID int64, ip, ua string) (Token, error) {
	if len(s.secret) == 0 {
		return Token{}, shared.Internal("auth: issue", errors.New("secret not configured"))
	}
	now := s.now().UTC()
	expires := now.Add(s.ttl)
	id := ulid.Make().String()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
		ID:        id,
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, shared.Internal("auth: sign token", err)
	}
	if err := s.repo.CreateToken(ctx, id, userID, expires, ip, ua); err != nil {
		s.logger.Warn("record token", slog.Any("error", err), slog.Int64("user_id", userID))
	}
	return Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: expires, ID: id}, nil
}

// Parse verifies the token signature, the registered claims and revocation.
func (s *Service) Parse(ctx context.Context, raw string) (*Claims, error) {
	if raw == "" || len(s.secret) == 0 {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidToken
	}
	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, shared.Internal("auth: revocation lookup", err)
		}
		if revoked {
			return nil, ErrInvalidToken
		}
	}
	return claims, nil
}

// Revoke invalidates the token until it would have expired.
func (s *Service) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return ErrInvalidToken
	}
	if s.revocations != nil && claims.ExpiresAt != nil {
		if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return shared.Internal("auth: revoke", err)
		}
	}
	if err := s.repo.DeleteToken(ctx, claims.ID); err != nil {
		s.logger.Warn("delete token", slog.Any("error", err), slog.String("token_id", claims.ID))
	}
	return nil
}
