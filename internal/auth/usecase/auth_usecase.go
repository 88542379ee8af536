package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"mission-control/internal/auth/adapter/security"
	"mission-control/internal/auth/config"
	"mission-control/internal/auth/domain/model"
	"mission-control/internal/auth/domain/repository"
	dsmodel "mission-control/internal/docstore/domain/model"
	dsusecase "mission-control/internal/docstore/usecase"
	apperrors "mission-control/internal/shared/errors"
	"mission-control/internal/shared/logger"
)

var (
	ErrInvalidCredentials = apperrors.ErrInvalidCredentials
	ErrEmailTaken         = errors.New("email is already registered")
	ErrTokenInvalid       = errors.New("token is invalid")
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt ignores anything longer
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// AuthUsecaseInterface defines the contract for authentication use cases.
type AuthUsecaseInterface interface {
	Login(ctx context.Context, req LoginRequest) (*model.Operator, string, error)
	Register(ctx context.Context, req RegisterRequest) (*model.Operator, string, error)
	ValidateToken(ctx context.Context, tokenString string) (*repository.Claims, error)
	GetOperator(ctx context.Context, userID string) (*model.Operator, error)
}

// LoginRequest represents the login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents the registration request
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// AuthUsecase authenticates operators against the users collection. Accounts are read
// and written through the collection router, so they live in the same store as every
// other entity.
type AuthUsecase struct {
	users    dsusecase.CollectionRouter
	tokenSvc repository.TokenService
	hasher   PasswordHasher
	config   *config.Config
	log      logger.Logger
}

// NewAuthUsecase creates a new instance of AuthUsecase.
func NewAuthUsecase(
	users dsusecase.CollectionRouter,
	tokenSvc repository.TokenService,
	hasher PasswordHasher,
	cfg *config.Config,
	log logger.Logger,
) *AuthUsecase {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &AuthUsecase{
		users:    users,
		tokenSvc: tokenSvc,
		hasher:   hasher,
		config:   cfg,
		log:      log.WithComponent("auth"),
	}
}

// Login checks the credentials and returns the operator with a fresh access token.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (uc *AuthUsecase) Login(ctx context.Context, req LoginRequest) (*model.Operator, string, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, "", apperrors.NewValidationError("email and password are required").WithCause(apperrors.ErrInvalidInput)
	}

	user, err := uc.findByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		uc.log.WithFields(map[string]interface{}{"email": email}).Info("login rejected: unknown email")
		return nil, "", invalidCredentials()
	}
	if err := uc.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		uc.log.WithFields(map[string]interface{}{"user_id": user.ID}).Info("login rejected: password mismatch")
		return nil, "", invalidCredentials()
	}

	return uc.issue(ctx, user)
}

// Register creates an operator account and logs it in.
func (uc *AuthUsecase) Register(ctx context.Context, req RegisterRequest) (*model.Operator, string, error) {
	email := normalizeEmail(req.Email)

	verrs := apperrors.NewValidationErrors()
	if !emailRegex.MatchString(email) {
		verrs.Add("email", "invalid email format", req.Email)
	}
	if n := len(req.Password); n < minPasswordLength || n > maxPasswordLength {
		verrs.Add("password", fmt.Sprintf("password must be between %d and %d characters", minPasswordLength, maxPasswordLength), nil)
	}
	if verrs.HasErrors() {
		return nil, "", verrs.ToAppError(apperrors.ErrInvalidInput)
	}

	existing, err := uc.findByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return nil, "", apperrors.NewValidationError(ErrEmailTaken.Error()).WithCode("EMAIL_TAKEN").WithCause(ErrEmailTaken)
	}

	hash, err := uc.hasher.Hash(req.Password)
	if err != nil {
		return nil, "", apperrors.NewInternalError("failed to hash password").WithCause(err)
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = model.DefaultRole
	}

	snap, err := uc.users.CreateDocument(ctx, uc.config.UsersCollection, dsmodel.Record{
		"email":         email,
		"password_hash": hash,
		"name":          strings.TrimSpace(req.Name),
		"role":          role,
	})
	if err != nil {
		return nil, "", err
	}

	var user dsmodel.User
	if err := snap.DataTo(&user); err != nil {
		return nil, "", apperrors.NewInternalError("failed to decode created user").WithCause(err)
	}
	uc.log.WithFields(map[string]interface{}{"user_id": user.ID, "role": user.Role}).Info("operator registered")
	return uc.issue(ctx, &user)
}

// ValidateToken checks a token and returns its claims.
func (uc *AuthUsecase) ValidateToken(ctx context.Context, tokenString string) (*repository.Claims, error) {
	claims, err := uc.tokenSvc.ValidateToken(ctx, tokenString)
	if err != nil {
		return nil, apperrors.NewAuthenticationError(err.Error()).WithCause(ErrTokenInvalid)
	}
	return claims, nil
}

// GetOperator loads the operator a token was issued to.
func (uc *AuthUsecase) GetOperator(ctx context.Context, userID string) (*model.Operator, error) {
	snap, err := uc.users.GetDocument(ctx, uc.config.UsersCollection, userID)
	if err != nil {
		return nil, err
	}
	if !snap.Exists() {
		return nil, apperrors.NewNotFoundError("operator").WithDetail("id", userID)
	}
	var user dsmodel.User
	if err := snap.DataTo(&user); err != nil {
		return nil, apperrors.NewInternalError("failed to decode user").WithCause(err)
	}
	return toOperator(&user), nil
}

func (uc *AuthUsecase) findByEmail(ctx context.Context, email string) (*dsmodel.User, error) {
	res, err := uc.users.QueryCollection(ctx, uc.config.UsersCollection, map[string]interface{}{"email": email})
	if err != nil {
		return nil, err
	}
	for _, doc := range res.Docs {
		var user dsmodel.User
		if err := doc.DataTo(&user); err != nil {
			return nil, apperrors.NewInternalError("failed to decode user").WithCause(err)
		}
		if strings.EqualFold(user.Email, email) {
			return &user, nil
		}
	}
	return nil, nil
}

func (uc *AuthUsecase) issue(ctx context.Context, user *dsmodel.User) (*model.Operator, string, error) {
	op := toOperator(user)
	token, err := uc.tokenSvc.GenerateToken(ctx, fmt.Sprint(op.ID), op.Email, op.Role)
	if err != nil {
		return nil, "", apperrors.NewInternalError("failed to issue token").WithCause(err)
	}
	return op, token, nil
}

func toOperator(user *dsmodel.User) *model.Operator {
	role := user.Role
	if role == "" {
		role = model.DefaultRole
	}
	return &model.Operator{ID: user.ID, Email: user.Email, Name: user.Name, Role: role}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func invalidCredentials() error {
	return apperrors.NewAuthenticationError(ErrInvalidCredentials.Error()).WithCode("INVALID_CREDENTIALS").WithCause(ErrInvalidCredentials)
}

var (
	_ AuthUsecaseInterface = (*AuthUsecase)(nil)
	_ PasswordHasher       = (*security.BcryptHasher)(nil)
)
