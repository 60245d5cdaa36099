package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vedran77/onionparts/internal/domain"
	"github.com/vedran77/onionparts/internal/repository"
	"golang.org/x/crypto/argon2"
)

var (
	ErrEmailTaken    = errors.New("email already taken")
	ErrUsernameTaken = errors.New("username already taken")
	ErrInvalidCreds  = errors.New("invalid email or password")
	ErrUserNotFound  = errors.New("user not found")
)

const (
	tokenIssuer = "onionparts"
	tokenTTL    = 24 * time.Hour
)

// SessionClaims is the access token body. Admin mirrors profiles.is_admin at
// issue time so clients can gate the listing form without a profile fetch;
// the server always re-reads the profile before admin-only writes.
type SessionClaims struct {
	Admin bool `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

type AuthService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	now       func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

type RegisterInput struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ClaimAdminInput struct {
	Password string `json:"password"`
}

type AuthResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

// Register creates a buyer profile. New profiles are never admins; admin
// rights come only from ClaimAdmin.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	email := normalizeEmail(input.Email)

	if taken, err := s.userRepo.GetByEmail(ctx, email); err != nil {
		return nil, err
	} else if taken != nil {
		return nil, ErrEmailTaken
	}
	if taken, err := s.userRepo.GetByUsername(ctx, input.Username); err != nil {
		return nil, err
	} else if taken != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = input.Username
	}

	now := s.now()
	profile := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     input.Username,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("creating profile: %w", err)
	}
	return s.issue(profile)
}

// Login checks credentials. Unknown emails and wrong passwords are the same
// error.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	profile, err := s.userRepo.GetByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		return nil, err
	}
	if profile == nil || !verifyPassword(input.Password, profile.PasswordHash) {
		return nil, ErrInvalidCreds
	}
	return s.issue(profile)
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ClaimAdmin grants admin rights when password matches the configured admin
// password. A wrong password is not an error.
func (s *AuthService) ClaimAdmin(ctx context.Context, userID uuid.UUID, password string) (bool, error) {
	granted, err := s.userRepo.ClaimAdmin(ctx, userID, password)
	if err != nil {
		return false, fmt.Errorf("claiming admin: %w", err)
	}
	return granted, nil
}

func (s *AuthService) issue(profile *domain.User) (*AuthResponse, error) {
	now := s.now()
	claims := SessionClaims{
		Admin: profile.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   profile.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}
	return &AuthResponse{User: profile, AccessToken: token}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// argon2id cost. Stored hashes carry their own parameters, so these can be
// raised without invalidating existing profiles.
var argonDefaults = argonParams{memory: 64 * 1024, time: 1, threads: 4, keyLen: 32}

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

// hashPassword encodes as $argon2id$v=19$m=..,t=..,p=..$salt$hash.
func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	p := argonDefaults
	key := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func verifyPassword(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var p argonParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
