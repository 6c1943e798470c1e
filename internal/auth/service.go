// Package auth is the identity provider: registration restricted to the
// university mail domain, sign-in, sign-out and session tokens.
package auth

import (
	"campuswhisper/backend/internal/apperrors"
	"campuswhisper/backend/internal/config"
	"campuswhisper/backend/internal/livequery"
	"campuswhisper/backend/internal/models"
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Store is the part of the document store the identity provider needs.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Notifier announces sign-in state changes.
type Notifier interface {
	Publish(ctx context.Context, topics ...string)
}

// Session is what a successful registration or sign-in returns.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Identity is the caller behind a valid token.
type Identity struct {
	UserID    string
	Username  string
	SessionID string
	ExpiresAt time.Time
}

type RegisterInput struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type Service struct {
	store         Store
	tokens        *TokenIssuer
	revocations   Revocations
	notifier      Notifier
	allowedDomain string
	validate      *validator.Validate
	log           zerolog.Logger
}

func NewService(store Store, tokens *TokenIssuer, revocations Revocations, notifier Notifier, allowedDomain string, log zerolog.Logger) *Service {
	return &Service{
		store:         store,
		tokens:        tokens,
		revocations:   revocations,
		notifier:      notifier,
		allowedDomain: strings.ToLower(allowedDomain),
		validate:      validator.New(),
		log:           log,
	}
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email, err := s.checkEmail(in.Email)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(in.Username)
	switch n := utf8.RuneCountInString(username); {
	case n < config.MinUsernameLength:
		return nil, apperrors.Auth(apperrors.CodeUsernameTooShort, "username must be at least 3 characters")
	case n > config.MaxUsernameLength:
		return nil, apperrors.Validation(apperrors.CodeInvalidInput, "username is too long")
	}

	if utf8.RuneCountInString(in.Password) < config.MinPasswordLength {
		return nil, apperrors.Auth(apperrors.CodeWeakPassword, "password must be at least 6 characters")
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, apperrors.Validation(apperrors.CodeInvalidInput, "password is too long")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to hash password")
		return nil, apperrors.Transient("registration", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, normalizeRegisterError(err)
	}

	s.log.Info().Str("userId", user.ID).Msg("user registered")
	return s.newSession(user)
}

// SignIn checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email, err := s.checkEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrNotFound):
		return nil, invalidCredentials()
	default:
		return nil, apperrors.Transient("sign-in", err)
	}

	if !CheckPassword(user.PasswordHash, password) {
		return nil, invalidCredentials()
	}
	return s.newSession(user)
}

// SignOut revokes the session behind token and tells every live connection of
// the user to re-check its session.
func (s *Service) SignOut(ctx context.Context, token string) error {
	id, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if err := s.revocations.Revoke(ctx, id.SessionID, id.ExpiresAt); err != nil {
		s.log.Error().Err(err).Str("userId", id.UserID).Msg("failed to revoke session")
		return apperrors.Transient("sign-out", err)
	}
	s.notifier.Publish(ctx, livequery.SessionTopic(id.UserID))
	return nil
}

// Authenticate resolves a token to the signed-in identity.
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return nil, apperrors.Auth(apperrors.CodeSessionExpired, "session expired")
		}
		return nil, apperrors.Unauthenticated("invalid session token")
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperrors.Transient("session check", err)
	}
	if revoked {
		return nil, apperrors.Auth(apperrors.CodeSessionExpired, "session expired")
	}

	return &Identity{
		UserID:    claims.Subject,
		Username:  claims.Username,
		SessionID: claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) checkEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", apperrors.Auth(apperrors.CodeInvalidDomain, "a valid university email is required")
	}
	if !strings.HasSuffix(email, s.allowedDomain) {
		return "", apperrors.Auth(apperrors.CodeInvalidDomain, "email must end with "+s.allowedDomain)
	}
	return email, nil
}

func (s *Service) newSession(user *models.User) (*Session, error) {
	token, claims, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to issue token")
		return nil, apperrors.Transient("sign-in", err)
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

func invalidCredentials() error {
	return apperrors.Auth(apperrors.CodeInvalidCredentials, "invalid email or password")
}

// normalizeRegisterError turns store conflicts into auth errors.
func normalizeRegisterError(err error) error {
	switch code := apperrors.CodeOf(err); code {
	case apperrors.CodeEmailInUse:
		return apperrors.Auth(code, "email already registered")
	case apperrors.CodeUsernameTaken:
		return apperrors.Auth(code, "username already taken")
	}
	if errors.Is(err, apperrors.ErrTransient) {
		return err
	}
	return apperrors.Transient("registration", err)
}
