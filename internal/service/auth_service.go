package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	userRepo    ports.UserRepository
	accountRepo ports.AccountRepository
	transactor  ports.DBTransactor
	hashSvc     ports.HashService
	tokenSvc    ports.TokenService
	adminEmails map[string]struct{}
	log         zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl. Registrations whose email is
// listed in adminEmails receive the admin role.
func NewAuthService(
	userRepo ports.UserRepository,
	accountRepo ports.AccountRepository,
	transactor ports.DBTransactor,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	adminEmails []string,
	log zerolog.Logger,
) *AuthServiceImpl {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[normalizeEmail(e)] = struct{}{}
	}
	return &AuthServiceImpl{
		userRepo:    userRepo,
		accountRepo: accountRepo,
		transactor:  transactor,
		hashSvc:     hashSvc,
		tokenSvc:    tokenSvc,
		adminEmails: admins,
		log:         log,
	}
}

// Register creates a user together with their personal account.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*ports.RegisterResponse, error) {
	email := normalizeEmail(req.Email)

	// Check email uniqueness
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check email: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrEmailExists()
	}

	// Hash password with Argon2id
	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	role := domain.UserRoleUser
	if _, ok := s.adminEmails[email]; ok {
		role = domain.UserRoleAdmin
	}

	var resp *ports.RegisterResponse
	err = withFreshAlias(func(alias string) error {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		now := time.Now().UTC()
		user := &domain.User{
			ID:           uuid.New(),
			Email:        email,
			PasswordHash: passwordHash,
			FullName:     strings.TrimSpace(req.FullName),
			Role:         role,
			Status:       domain.UserStatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.userRepo.Create(ctx, dbTx, user); err != nil {
			if errors.Is(err, ports.ErrDuplicateEmail) {
				return apperror.ErrEmailExists()
			}
			return fmt.Errorf("create user: %w", err)
		}

		account := &domain.Account{
			ID:        uuid.New(),
			OwnerID:   user.ID,
			Kind:      domain.AccountKindPersonal,
			Name:      user.FullName,
			Alias:     alias,
			Status:    domain.AccountStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.accountRepo.Create(ctx, dbTx, account); err != nil {
			return fmt.Errorf("create account: %w", err)
		}

		if err := dbTx.Commit(ctx); err != nil {
			return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}
		resp = &ports.RegisterResponse{User: user, Account: account}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", resp.User.ID.String()).
		Str("alias", resp.Account.Alias).
		Str("role", string(role)).
		Msg("user registered")

	return resp, nil
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	// Verify password
	valid, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	if !user.IsActive() {
		return "", time.Time{}, apperror.ErrAccountSuspended()
	}

	token, expiry, err := s.tokenSvc.Generate(user.ID, user.Role)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
