package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopdesk/apiserver/internal/apperr"
	"github.com/shopdesk/apiserver/internal/store"
	"github.com/shopdesk/apiserver/internal/validate"
	"github.com/shopdesk/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for user accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateProfile(ctx context.Context, id string, update types.ProfileUpdate) (types.User, error)
}

// TokenIssuer signs access tokens for authenticated accounts.
type TokenIssuer interface {
	Issue(subjectID, email string, role types.Role) (string, error)
}

// AuthResult is returned by registration and login.
type AuthResult struct {
	User  types.User `json:"user"`
	Token string     `json:"token"`
}

// AccountService encapsulates account use-cases.
type AccountService struct {
	repo       UserRepository
	tokens     TokenIssuer
	bcryptCost int
	logger     *zap.Logger
}

func NewAccountService(repo UserRepository, tokens TokenIssuer, bcryptCost int, logger *zap.Logger) *AccountService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		repo:       repo,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and issues its first token.
func (s *AccountService) Register(ctx context.Context, in types.RegisterInput) (AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = NormalizeEmail(in.Email)
	if err := validate.Register(in); err != nil {
		return AuthResult{}, err
	}
	if in.Role == "" {
		in.Role = types.RoleUser
	}

	exists, err := s.repo.ExistsByEmailOrUsername(ctx, in.Email, in.Username)
	if err != nil {
		return AuthResult{}, apperr.Wrap(err, apperr.KindInternal, "Server error during registration")
	}
	if exists {
		return AuthResult{}, errUserExists()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return AuthResult{}, apperr.Wrap(err, apperr.KindInternal, "Server error during registration")
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     in.Username,
		Email:        in.Email,
		Role:         in.Role,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return AuthResult{}, errUserExists()
		}
		return AuthResult{}, apperr.Wrap(err, apperr.KindInternal, "Server error during registration")
	}

	token, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return AuthResult{}, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return AuthResult{User: user.Sanitized(), Token: token}, nil
}

// Login checks the credentials and issues a token. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	in := types.LoginInput{Email: NormalizeEmail(email), Password: password}
	if err := validate.Login(in); err != nil {
		return AuthResult{}, err
	}

	user, err := s.repo.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AuthResult{}, errInvalidCredentials()
		}
		return AuthResult{}, apperr.Wrap(err, apperr.KindInternal, "Server error during login")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return AuthResult{}, errInvalidCredentials()
		}
		return AuthResult{}, apperr.Wrap(err, apperr.KindInternal, "Server error during login")
	}

	token, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: user.Sanitized(), Token: token}, nil
}

// GetProfile returns the sanitized account of the given user.
func (s *AccountService) GetProfile(ctx context.Context, id string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.New(apperr.KindNotFound, "User not found")
		}
		return types.User{}, apperr.Wrap(err, apperr.KindInternal, "Server error")
	}
	return user.Sanitized(), nil
}

// UpdateProfile applies the present, non-empty fields of update. An update
// without such fields returns the stored profile unchanged. A username made
// only of whitespace is present and fails validation.
func (s *AccountService) UpdateProfile(ctx context.Context, id string, update types.ProfileUpdate) (types.User, error) {
	update = dropEmpty(update)
	if update.Username != nil {
		trimmed := strings.TrimSpace(*update.Username)
		update.Username = &trimmed
	}
	if update.Empty() {
		return s.GetProfile(ctx, id)
	}
	if err := validate.ProfileUpdate(update); err != nil {
		return types.User{}, err
	}

	user, err := s.repo.UpdateProfile(ctx, id, update)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return types.User{}, apperr.New(apperr.KindDuplicate, "Username already exists")
		case errors.Is(err, store.ErrNotFound):
			return types.User{}, apperr.New(apperr.KindNotFound, "User not found")
		default:
			return types.User{}, apperr.Wrap(err, apperr.KindInternal, "Server error during profile update")
		}
	}
	return user.Sanitized(), nil
}

func dropEmpty(update types.ProfileUpdate) types.ProfileUpdate {
	if update.Username != nil && *update.Username == "" {
		update.Username = nil
	}
	if update.Avatar != nil && *update.Avatar == "" {
		update.Avatar = nil
	}
	return update
}

func errUserExists() error {
	return apperr.New(apperr.KindDuplicate, "User already exists with this email or username")
}

func errInvalidCredentials() error {
	return apperr.New(apperr.KindInvalidCredentials, "Invalid credentials")
}
