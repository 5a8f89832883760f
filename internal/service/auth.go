package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/identity/internal/events"
	"github.com/Skotchmaster/identity/internal/logging"
	"github.com/Skotchmaster/identity/internal/models"
	"github.com/Skotchmaster/identity/internal/repo"
)

const (
	DefaultTTL = 60 * time.Second

	tokenSaveAttempts = 3
	publishTimeout    = 5 * time.Second
	dummyPassword     = "identity-timing-guard"
)

type UserDirectory interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	GrantRole(ctx context.Context, userID uuid.UUID, value string) error
}

type TokenStore interface {
	SaveToken(ctx context.Context, t *models.Token) error
	FindActive(ctx context.Context, value string, now time.Time) (*models.Token, error)
	FindNotRevoked(ctx context.Context, value string) (*models.Token, error)
	RevokeToken(ctx context.Context, t *models.Token, now time.Time) error
}

type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type AuthService struct {
	users  UserDirectory
	tokens TokenStore
	hasher Hasher

	events      events.Publisher
	ttl         time.Duration
	tokenLength int
	rules       []Rule
	adminEmails map[string]struct{}
	now         func() time.Time
	newToken    TokenGenerator

	dummyOnce sync.Once
	dummyHash string
}

type Option func(*AuthService)

func WithTTL(ttl time.Duration) Option {
	return func(s *AuthService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithTokenLength(n int) Option {
	return func(s *AuthService) {
		if n > 0 {
			s.tokenLength = n
		}
	}
}

func WithRules(rules ...Rule) Option {
	return func(s *AuthService) { s.rules = append(s.rules, rules...) }
}

// WithAdminEmails grants the admin role to users registered under these
// addresses.
func WithAdminEmails(emails ...string) Option {
	return func(s *AuthService) {
		for _, e := range emails {
			if e = normalizeEmail(e); e != "" {
				s.adminEmails[e] = struct{}{}
			}
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *AuthService) { s.events = p }
}

func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *AuthService) { s.newToken = g }
}

func NewAuthService(users UserDirectory, tokens TokenStore, hasher Hasher, opts ...Option) *AuthService {
	s := &AuthService{
		users:       users,
		tokens:      tokens,
		hasher:      hasher,
		events:      events.Noop{},
		ttl:         DefaultTTL,
		tokenLength: DefaultTokenLength,
		now:         time.Now,
		newToken:    RandomTokenValue,
		adminEmails: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthService) TTL() time.Duration { return s.ttl }

// SignUp registers a new user. The stored record carries a bcrypt hash,
// never the plaintext password.
func (s *AuthService) SignUp(ctx context.Context, name, email, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth_signup")

	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if err := requireSignUp(name, email, password); err != nil {
		l.Warn("signup_rejected", "reason", err.Error())
		return nil, err
	}
	for _, rule := range s.rules {
		if err := rule(name, email, password); err != nil {
			l.Warn("signup_rejected", "reason", err.Error())
			return nil, err
		}
	}

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		l.Error("signup_error", "reason", "db_error", "error", err)
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		l.Warn("signup_rejected", "reason", "email_taken", "email", email)
		return nil, ErrEmailTaken
	}

	pwHash, err := s.hasher.Hash(password)
	if err != nil {
		l.Error("signup_error", "reason", "cannot hash the password", "error", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: pwHash,
		Roles:        []models.Role{},
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("signup_rejected", "reason", "email_taken", "email", email)
			return nil, ErrEmailTaken
		}
		l.Error("signup_error", "reason", "db_error", "error", err)
		return nil, err
	}

	if s.isAdminEmail(user.Email) {
		if err := s.users.GrantRole(ctx, user.ID, models.RoleAdmin); err != nil {
			l.Error("signup_error", "reason", "cannot grant admin role", "error", err)
			return nil, fmt.Errorf("grant admin role: %w", err)
		}
		user.Roles = append(user.Roles, models.Role{Value: models.RoleAdmin})
		l.Info("admin_granted", "user_id", user.ID)
	}

	s.publish(ctx, events.Event{Type: events.UserRegistered, UserID: user.ID.String(), Email: user.Email})
	l.Info("signup_success", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) isAdminEmail(email string) bool {
	_, ok := s.adminEmails[email]
	return ok
}

// EnsureAdmins grants the admin role to already registered users whose email
// is in the admin list. Addresses without an account are skipped; they get
// the role when they sign up.
func (s *AuthService) EnsureAdmins(ctx context.Context) error {
	l := logging.FromContext(ctx).With("svc", "auth_admins")
	for email := range s.adminEmails {
		user, err := s.users.UserByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			return fmt.Errorf("lookup admin %s: %w", email, err)
		}
		if user.HasRole(models.RoleAdmin) {
			continue
		}
		if err := s.users.GrantRole(ctx, user.ID, models.RoleAdmin); err != nil {
			return fmt.Errorf("grant admin role: %w", err)
		}
		l.Info("admin_granted", "user_id", user.ID)
	}
	return nil
}

// Login checks the credentials and issues a new token. An unknown email and
// a wrong password both yield ErrUserNotFound.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Token, error) {
	l := logging.FromContext(ctx).With("svc", "auth_login")

	email = normalizeEmail(email)
	if email == "" || password == "" {
		l.Warn("login_rejected", "reason", "missing credentials")
		return nil, fmt.Errorf("%w: email and password required", ErrValidation)
	}

	user, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.burnVerify(password)
			l.Warn("login_failed", "reason", "invalid email or password", "email", email)
			return nil, ErrUserNotFound
		}
		l.Error("login_error", "reason", "db_error", "error", err)
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		l.Warn("login_failed", "reason", "invalid email or password", "email", email)
		return nil, ErrUserNotFound
	}

	token, err := s.issue(ctx, user)
	if err != nil {
		l.Error("login_error", "reason", "cannot create token", "error", err)
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:     events.UserLoggedIn,
		UserID:   user.ID.String(),
		Email:    user.Email,
		TokenID:  token.ID.String(),
		ExpiryAt: token.ExpiryAt,
	})
	l.Info("login_success", "user_id", user.ID, "token_id", token.ID)
	return token, nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*models.Token, error) {
	now := s.now()
	for attempt := 1; ; attempt++ {
		value, err := s.newToken(s.tokenLength)
		if err != nil {
			return nil, err
		}
		token := &models.Token{
			Value:    value,
			UserID:   user.ID,
			ExpiryAt: now.Add(s.ttl).UnixMilli(),
		}
		err = s.tokens.SaveToken(ctx, token)
		if err == nil {
			token.User = user
			return token, nil
		}
		if !errors.Is(err, repo.ErrDuplicateToken) || attempt == tokenSaveAttempts {
			return nil, fmt.Errorf("save token: %w", err)
		}
	}
}

// burnVerify spends a bcrypt comparison on a throwaway hash so an unknown
// email costs about as much as a wrong password.
func (s *AuthService) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(dummyPassword)
	})
	if s.dummyHash != "" {
		s.hasher.Verify(password, s.dummyHash)
	}
}

// ValidateToken reports the owner of value when the token exists, is not
// revoked and has not expired. Any other token yields ok == false.
func (s *AuthService) ValidateToken(ctx context.Context, value string) (*models.User, bool, error) {
	l := logging.FromContext(ctx).With("svc", "auth_validate")
	if value == "" {
		return nil, false, nil
	}

	token, err := s.tokens.FindActive(ctx, value, s.now())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Debug("token_invalid")
			return nil, false, nil
		}
		l.Error("validate_error", "reason", "db_error", "error", err)
		return nil, false, fmt.Errorf("find token: %w", err)
	}
	if token.User == nil {
		user, err := s.users.UserByID(ctx, token.UserID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("find token owner: %w", err)
		}
		token.User = user
	}
	return token.User, true, nil
}

// Logout revokes the token if it is still live in storage. Unknown and
// already revoked tokens are a no-op reported as revoked == false.
func (s *AuthService) Logout(ctx context.Context, value string) (bool, error) {
	l := logging.FromContext(ctx).With("svc", "auth_logout")
	if value == "" {
		return false, nil
	}

	token, err := s.tokens.FindNotRevoked(ctx, value)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Info("logout_noop", "reason", "token not found or already revoked")
			return false, nil
		}
		l.Error("logout_error", "reason", "db_error", "error", err)
		return false, fmt.Errorf("find token: %w", err)
	}

	if err := s.tokens.RevokeToken(ctx, token, s.now()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Info("logout_noop", "reason", "revoked concurrently", "token_id", token.ID)
			return false, nil
		}
		l.Error("logout_error", "reason", "cannot revoke token", "error", err)
		return false, err
	}

	s.publish(ctx, events.Event{Type: events.TokenRevoked, UserID: token.UserID.String(), TokenID: token.ID.String()})
	l.Info("logout_success", "token_id", token.ID)
	return true, nil
}

// publish never fails the calling operation.
func (s *AuthService) publish(ctx context.Context, e events.Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now().UTC()
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, e); err != nil {
		logging.FromContext(ctx).Error("event_publish_error", "type", e.Type, "error", err)
	}
}
