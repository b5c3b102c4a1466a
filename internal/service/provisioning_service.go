package service

import (
	"context"
	"fmt"
	"time"

	"smartpay/internal/core/domain"
	"smartpay/internal/core/ports"
	"smartpay/pkg/apperror"

	"github.com/rs/zerolog"
)

// ProvisioningServiceImpl implements ports.ProvisioningService.
type ProvisioningServiceImpl struct {
	cardRepo   ports.CardRepository
	walletRepo ports.WalletRepository
	log        zerolog.Logger
}

// NewProvisioningService creates a new ProvisioningServiceImpl.
func NewProvisioningService(
	cardRepo ports.CardRepository,
	walletRepo ports.WalletRepository,
	log zerolog.Logger,
) *ProvisioningServiceImpl {
	return &ProvisioningServiceImpl{
		cardRepo:   cardRepo,
		walletRepo: walletRepo,
		log:        log,
	}
}

// EnsureWallet makes sure a card and its zero-balance wallet exist, then
// returns the stored wallet. Concurrent callers for the same UID all end up
// with the single row that won the insert.
func (s *ProvisioningServiceImpl) EnsureWallet(ctx context.Context, cardUID string) (*domain.Wallet, error) {
	if cardUID == "" {
		return nil, apperror.Validation("card uid is required")
	}

	existing, err := s.walletRepo.GetByCardUID(ctx, cardUID)
	if err != nil {
		return nil, storageErr("get wallet", err)
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()

	created, err := s.cardRepo.Create(ctx, &domain.Card{UID: cardUID, CreatedAt: now})
	if err != nil {
		return nil, storageErr("create card", err)
	}
	if created {
		s.log.Info().Str("card_uid", cardUID).Msg("card registered")
	}

	created, err = s.walletRepo.Create(ctx, domain.NewWallet(cardUID, now))
	if err != nil {
		return nil, storageErr("create wallet", err)
	}
	if created {
		s.log.Info().Str("card_uid", cardUID).Msg("wallet created")
	}

	wallet, err := s.walletRepo.GetByCardUID(ctx, cardUID)
	if err != nil {
		return nil, storageErr("get wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("wallet %s missing after create", cardUID))
	}
	return wallet, nil
}
