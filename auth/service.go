package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"rentfit/user"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password must be at least 8 characters")
	// ErrInvalidToken signals a bearer token that failed verification.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// UserStore is the user persistence the service depends on.
type UserStore interface {
	Create(ctx context.Context, params user.CreateParams) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

// Service handles authentication business logic.
type Service struct {
	users     UserStore
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewService creates a new authentication service.
func NewService(users UserStore, jwtSecret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		users:     users,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

// WithClock overrides the token issue clock (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Register creates a new user account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (user.User, error) {
	if len(req.Password) < 8 {
		return user.User{}, ErrWeakPassword
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.FirstName) == "" {
		return user.User{}, fmt.Errorf("auth: email and firstName are required")
	}

	role := user.Role(strings.TrimSpace(string(req.Role)))
	if role == "" {
		role = user.RoleTenant
	}
	if !role.Valid() {
		return user.User{}, fmt.Errorf("auth: invalid role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, fmt.Errorf("auth: hash password: %w", err)
	}

	return s.users.Create(ctx, user.CreateParams{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        req.Phone,
		PasswordHash: string(hash),
		Role:         role,
	})
}

// Login authenticates a user and returns a JWT token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.IssueToken(Identity{UserID: u.ID, Role: u.Role})
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}
	return LoginResult{Token: token, User: u}, nil
}

// IssueToken signs an HS256 token for id.
func (s *Service) IssueToken(id Identity) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": id.UserID,
		"role":    string(id.Role),
		"exp":     now.Add(s.tokenTTL).Unix(),
		"iat":     now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// VerifyToken validates a JWT token and returns the caller identity.
func (s *Service) VerifyToken(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return Identity{}, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}
	roleStr, _ := claims["role"].(string)
	role := user.Role(roleStr)
	if !role.Valid() {
		return Identity{}, fmt.Errorf("%w: role %q", ErrInvalidToken, roleStr)
	}
	return Identity{UserID: userID, Role: role}, nil
}
