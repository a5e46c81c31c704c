package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"humormapper/internal/logger"
	"humormapper/internal/model"
	"humormapper/internal/repository"
)

const keyJWTSecret = "auth.jwt_secret"

const maxPasswordBytes = 72

// SessionTTL is how long a sign-in stays valid.
const SessionTTL = 30 * 24 * time.Hour

// Auth errors
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrEmailRequired      = errors.New("email is required")
	ErrEmailInvalid       = errors.New("email is invalid")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
)

// User is the public view of an account.
type User struct {
	ID    int64  `json:"id,string"`
	Email string `json:"email"`
}

// AuthResponse is returned after a successful sign-in.
type AuthResponse struct {
	Token   string
	User    *User
	Session *Session
}

// AuthService provides account and session management.
type AuthService interface {
	// SignUp registers a new account. It does not sign the user in.
	SignUp(ctx context.Context, email, password string) (*User, error)
	// SignIn verifies credentials and opens a session.
	SignIn(ctx context.Context, email, password, userAgent string) (*AuthResponse, error)
	// SignOut revokes the session's token.
	SignOut(ctx context.Context, session *Session) error
	// Authenticate validates a token and returns its live session.
	Authenticate(ctx context.Context, token string) (*Session, error)
	// PruneSessions removes expired sessions.
	PruneSessions(ctx context.Context) (int64, error)
}

type authService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	settings repository.SettingsRepository
	now      func() time.Time

	mu     sync.Mutex
	secret []byte
}

func NewAuthService(users repository.UserRepository, sessions repository.SessionRepository, settings repository.SettingsRepository) AuthService {
	return &authService{
		users:    users,
		sessions: sessions,
		settings: settings,
		now:      time.Now,
	}
}

func (s *authService) SignUp(ctx context.Context, email, password string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, email, string(hash))
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	logger.Info("user signed up", "module", "service", "action", "create", "resource", "user", "result", "ok", "user_id", user.ID)
	return &User{ID: user.ID, Email: user.Email}, nil
}

func (s *authService) SignIn(ctx context.Context, email, password, userAgent string) (*AuthResponse, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logger.Warn("sign in rejected", "module", "service", "action", "login", "resource", "user", "result", "failed", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	session := model.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(SessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	token, err := s.generateToken(ctx, user, session)
	if err != nil {
		return nil, err
	}

	logger.Info("user signed in", "module", "service", "action", "login", "resource", "user", "result", "ok", "user_id", user.ID)
	return &AuthResponse{
		Token: token,
		User:  &User{ID: user.ID, Email: user.Email},
		Session: &Session{
			TokenID:   session.ID,
			UserID:    user.ID,
			Email:     user.Email,
			ExpiresAt: session.ExpiresAt,
		},
	}, nil
}

func (s *authService) SignOut(ctx context.Context, session *Session) error {
	if session == nil {
		return ErrUnauthenticated
	}
	if err := s.sessions.Delete(ctx, session.TokenID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	logger.Info("user signed out", "module", "service", "action", "logout", "resource", "user", "result", "ok", "user_id", session.UserID)
	return nil
}

func (s *authService) Authenticate(ctx context.Context, tokenString string) (*Session, error) {
	secret, err := s.jwtSecret(ctx)
	if err != nil {
		return nil, err
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	tokenID, _ := claims["jti"].(string)
	email, _ := claims["email"].(string)
	if tokenID == "" {
		return nil, ErrInvalidToken
	}

	stored, err := s.sessions.Get(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if stored == nil || !s.now().Before(stored.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	return &Session{
		TokenID:   stored.ID,
		UserID:    stored.UserID,
		Email:     email,
		ExpiresAt: stored.ExpiresAt,
	}, nil
}

func (s *authService) PruneSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return n, nil
}

func (s *authService) generateToken(ctx context.Context, user *model.User, session model.Session) (string, error) {
	secret, err := s.jwtSecret(ctx)
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"sub":   fmt.Sprintf("%d", user.ID),
		"email": user.Email,
		"jti":   session.ID,
		"iat":   session.CreatedAt.Unix(),
		"exp":   session.ExpiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// jwtSecret loads the signing key, creating it on first use.
func (s *authService) jwtSecret(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.secret != nil {
		return s.secret, nil
	}

	candidate := make([]byte, 32)
	if _, err := rand.Read(candidate); err != nil {
		return nil, fmt.Errorf("generate jwt secret: %w", err)
	}
	stored, err := s.settings.SetIfAbsent(ctx, keyJWTSecret, hex.EncodeToString(candidate))
	if err != nil {
		return nil, fmt.Errorf("load jwt secret: %w", err)
	}
	secret, err := hex.DecodeString(stored)
	if err != nil {
		return nil, fmt.Errorf("decode jwt secret: %w", err)
	}
	s.secret = secret
	return secret, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmailRequired
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrEmailInvalid
	}
	return email, nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < 6 {
		return ErrPasswordTooShort
	}
	// bcrypt rejects longer inputs.
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}
