// Package devauth is an in-memory authentication service speaking the same REST
// contract as the production backend. It backs local development and tests.
package devauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cursos-vacacionales/panel/internal/auth"
	"github.com/cursos-vacacionales/panel/internal/rbac"
)

const issuer = "devauth"

// Claims are carried by credentials issued by the service.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Service wraps authentication business rules.
type Service struct {
	repo       Repository
	signingKey []byte
	ttl        time.Duration
	validate   *validator.Validate
	now        func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, signingKey string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{
		repo:       repo,
		signingKey: []byte(signingKey),
		ttl:        ttl,
		validate:   auth.NewValidator(),
		now:        time.Now,
	}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, auth.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, auth.ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, auth.ErrAccountLocked
	}
	return account, nil
}

// Register validates and stores a new account. Self-registered accounts are tutors.
func (s *Service) Register(ctx context.Context, reg auth.Registration) (*Account, error) {
	if err := s.validate.Struct(reg); err != nil {
		return nil, &auth.ServiceError{
			Status:  422,
			Message: "Datos de registro no válidos",
			Fields:  auth.ValidationFields(err),
			Err:     auth.ErrValidation,
		}
	}
	account, err := s.CreateAccount(ctx, reg.Name, reg.Email, reg.Password, rbac.RoleTutor)
	if errors.Is(err, ErrDuplicateEmail) {
		return nil, &auth.ServiceError{
			Status:  422,
			Message: "El correo ya está registrado",
			Fields:  map[string][]string{"email": {"unique"}},
			Err:     auth.ErrValidation,
		}
	}
	return account, err
}

// CreateAccount hashes the password and stores an active account.
func (s *Service) CreateAccount(ctx context.Context, name, email, password string, role rbac.Role) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("devauth: hash password: %w", err)
	}
	account := Account{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        strings.TrimSpace(email),
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}
	return &account, nil
}

// IssueToken signs a credential for account.
func (s *Service) IssueToken(account *Account) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Role: account.Role.String(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// Verify parses a credential and loads its account. Expired, revoked or
// forged credentials return auth.ErrUnauthorized.
func (s *Service) Verify(ctx context.Context, token string) (*Account, *Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, nil, auth.ErrUnauthorized
	}
	revoked, err := s.repo.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		return nil, nil, auth.ErrUnauthorized
	}
	account, err := s.repo.FindByID(ctx, claims.Subject)
	if err != nil || !account.IsActive {
		return nil, nil, auth.ErrUnauthorized
	}
	return account, claims, nil
}

// Revoke invalidates a credential before it expires.
func (s *Service) Revoke(ctx context.Context, token string) error {
	_, claims, err := s.Verify(ctx, token)
	if err != nil {
		return err
	}
	return s.repo.RevokeToken(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (s *Service) setActive(ctx context.Context, id string, active bool) error {
	return s.repo.SetActive(ctx, id, active)
}

// SeedAccount describes a fixture account.
type SeedAccount struct {
	Name     string
	Email    string
	Password string
	Role     string
	Locked   bool
}

// Seed stores fixture accounts, skipping emails that already exist.
func Seed(ctx context.Context, service *Service, accounts []SeedAccount) error {
	for _, seed := range accounts {
		account, err := service.CreateAccount(ctx, seed.Name, seed.Email, seed.Password, rbac.ParseRole(seed.Role))
		if errors.Is(err, ErrDuplicateEmail) {
			continue
		}
		if err != nil {
			return err
		}
		if seed.Locked {
			if err := service.setActive(ctx, account.ID, false); err != nil {
				return err
			}
		}
	}
	return nil
}
