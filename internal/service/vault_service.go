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

// vaultService implements ports.VaultService.
type vaultService struct {
	vaultRepo ports.VaultRepository
	encSvc    ports.EncryptionService
	log       zerolog.Logger
}

// NewVaultService creates a new vault registry service.
func NewVaultService(vaultRepo ports.VaultRepository, encSvc ports.EncryptionService, log zerolog.Logger) ports.VaultService {
	return &vaultService{vaultRepo: vaultRepo, encSvc: encSvc, log: log}
}

// Create registers a vault. Key material is encrypted before it is stored.
func (s *vaultService) Create(ctx context.Context, req ports.CreateVaultRequest) (*domain.Vault, error) {
	address := strings.TrimSpace(req.Address)
	if !domain.ValidateTronAddress(address) {
		return nil, apperror.ErrInvalidAddress()
	}
	if req.InitialBalance < 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	now := time.Now().UTC()
	vault := &domain.Vault{
		ID:         uuid.New(),
		Address:    address,
		Department: req.Department,
		Balance:    req.InitialBalance,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if req.PrivateKey != nil && *req.PrivateKey != "" {
		keyEnc, err := s.encSvc.Encrypt(*req.PrivateKey)
		if err != nil {
			return nil, apperror.ErrEncryptionFailure(fmt.Errorf("encrypt vault key: %w", err))
		}
		vault.KeyEnc = &keyEnc
	}

	if err := s.vaultRepo.Create(ctx, vault); err != nil {
		if errors.Is(err, ports.ErrDuplicateVaultAddress) {
			return nil, apperror.ErrVaultExists()
		}
		return nil, apperror.InternalError(fmt.Errorf("create vault: %w", err))
	}

	s.log.Info().
		Str("vault_id", vault.ID.String()).
		Str("address", vault.Address).
		Bool("has_key", vault.HasKey()).
		Msg("vault registered")

	return vault, nil
}

func (s *vaultService) List(ctx context.Context) ([]domain.Vault, error) {
	vaults, err := s.vaultRepo.List(ctx)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return vaults, nil
}
