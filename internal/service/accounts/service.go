package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/jopa/salestracker/internal/auth"
	"github.com/jopa/salestracker/internal/domain/models"
	"github.com/jopa/salestracker/internal/repository/postgres"
)

const minPasswordLength = 6

var (
	// ErrInvalidInput marks requests that fail field validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmailTaken is returned when registering or renaming onto an existing email.
	ErrEmailTaken = errors.New("user with this email already exists")
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrWrongRole is returned when a user logs in through the other role's door.
	ErrWrongRole = errors.New("access denied for this role")
	// ErrForbidden is returned when the actor may not touch the target account.
	ErrForbidden = errors.New("forbidden")
)

// Store is the user persistence the service needs.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id uint) error
}

// RegisterInput is a new account request.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UpdateInput changes an account. Nil fields are left unchanged.
type UpdateInput struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

// Session is the result of a successful login.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Service manages user accounts and logins.
type Service struct {
	store  Store
	tokens *auth.TokenManager
	logger *zap.Logger
}

// NewService builds an accounts service.
func NewService(store Store, tokens *auth.TokenManager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, tokens: tokens, logger: logger}
}

// Register creates an account. Unknown or empty roles become RECORD_KEEPER.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         models.ParseRole(in.Role),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, postgres.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Login checks credentials and issues a token for a user holding role.
func (s *Service) Login(ctx context.Context, email, password string, role models.Role) (*Session, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, postgres.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if user.Role != role {
		return nil, ErrWrongRole
	}

	token, err := s.tokens.Issue(*user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}

func (s *Service) List(ctx context.Context) ([]models.User, error) {
	return s.store.ListUsers(ctx)
}

// Get returns user id. Record keepers may only read their own account.
func (s *Service) Get(ctx context.Context, actor *models.User, id uint) (*models.User, error) {
	if !actor.IsAdmin() && actor.ID != id {
		return nil, ErrForbidden
	}
	return s.store.GetUser(ctx, id)
}

// Update applies in to user id. Only admins may edit other accounts or roles.
func (s *Service) Update(ctx context.Context, actor *models.User, id uint, in UpdateInput) (*models.User, error) {
	if !actor.IsAdmin() && (actor.ID != id || in.Role != nil) {
		return nil, ErrForbidden
	}

	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		user.Name = name
	}
	if in.Email != nil {
		if user.Email, err = normalizeEmail(*in.Email); err != nil {
			return nil, err
		}
	}
	if in.Password != nil {
		if user.PasswordHash, err = hashPassword(*in.Password); err != nil {
			return nil, err
		}
	}
	if in.Role != nil {
		user.Role = models.ParseRole(*in.Role)
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, postgres.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.store.DeleteUser(ctx, id)
}

func normalizeEmail(value string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(value))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return "", fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	return email, nil
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	return auth.HashPassword(password)
}
