package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"task-server/internal/apperr"
	"task-server/internal/domain"
	"task-server/internal/repository"
	"task-server/internal/token"
)

const minPasswordLength = 8

// SignupInput carries the caller-supplied profile for account creation.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	Age      *int
}

// AuthService owns signup, login, session revocation, and the token checks
// behind the access guard.
type AuthService interface {
	Signup(ctx context.Context, input SignupInput) (*domain.User, string, error)
	Login(ctx context.Context, email, password string) (*domain.User, string, error)
	Logout(ctx context.Context, user *domain.User, tok string) error
	LogoutAll(ctx context.Context, user *domain.User) error

	// ResolveToken runs the full guard sequence: cryptographic verify,
	// session membership, and password-change recency.
	ResolveToken(ctx context.Context, presented string) (*domain.User, error)
}

type authService struct {
	users      repository.UserRepository
	codec      *token.Codec
	bcryptCost int
}

func NewAuthService(users repository.UserRepository, codec *token.Codec, bcryptCost int) AuthService {
	return &authService{
		users:      users,
		codec:      codec,
		bcryptCost: bcryptCost,
	}
}

func (s *authService) Signup(ctx context.Context, input SignupInput) (*domain.User, string, error) {
	user, err := BuildUser(input, s.bcryptCost)
	if err != nil {
		return nil, "", err
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	tok, err := s.issueAndRegister(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return user, tok, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", apperr.Validation("please provide email and password")
	}

	user, err := s.users.FindOne(ctx, repository.Filter{"email": email})
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			// same message as a wrong password, to avoid account enumeration
			return nil, "", apperr.Authentication("incorrect email or password")
		}
		return nil, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", apperr.Authentication("incorrect email or password")
	}

	tok, err := s.issueAndRegister(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return user, tok, nil
}

func (s *authService) Logout(ctx context.Context, user *domain.User, tok string) error {
	return s.users.RevokeToken(ctx, user.ID, tok)
}

func (s *authService) LogoutAll(ctx context.Context, user *domain.User) error {
	return s.users.RevokeAllTokens(ctx, user.ID)
}

func (s *authService) ResolveToken(ctx context.Context, presented string) (*domain.User, error) {
	claims, err := s.codec.Verify(presented)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByIDAndToken(ctx, claims.SubjectID, presented)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.ErrStaleSession
		}
		return nil, err
	}

	// Lazy invalidation: tokens issued before a password change stay in the
	// registry but are rejected here.
	if user.PasswordChangedAfter(claims.IssuedAt) {
		return nil, apperr.ErrPasswordChanged
	}

	return user, nil
}

func (s *authService) issueAndRegister(ctx context.Context, user *domain.User) (string, error) {
	tok, err := s.codec.Issue(user.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	if err := s.users.RegisterToken(ctx, user.ID, tok); err != nil {
		return "", err
	}
	user.ActiveTokens = append(user.ActiveTokens, tok)
	return tok, nil
}

// BuildUser validates a signup profile and produces a user record with a
// hashed password. Admin user creation goes through the same path without
// token issuance.
func BuildUser(input SignupInput, bcryptCost int) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperr.Validation("please provide your name")
	}

	email := NormalizeEmail(input.Email)
	if email == "" {
		return nil, apperr.Validation("please provide your email")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("please provide a valid email")
	}

	age := 0
	if input.Age != nil {
		if *input.Age < 0 {
			return nil, apperr.Validation("age must be a positive number")
		}
		age = *input.Age
	}

	hash, err := HashPassword(input.Password, bcryptCost)
	if err != nil {
		return nil, err
	}

	return &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Age:          age,
		Role:         domain.RoleUser,
	}, nil
}

// HashPassword enforces the password policy and hashes at the given cost.
func HashPassword(plaintext string, cost int) (string, error) {
	if len(plaintext) < minPasswordLength {
		return "", apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if strings.Contains(strings.ToLower(plaintext), "password") {
		return "", apperr.Validation(`password cannot contain "password"`)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// NormalizeEmail lowercases and trims, the canonical stored form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
