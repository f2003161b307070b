package service

import (
	"context"
	"fmt"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"

	"github.com/google/uuid"
)

type merchantService struct {
	merchantRepo ports.MerchantRepository
	encSvc       ports.EncryptionService
}

// NewMerchantService creates a new merchant management service.
func NewMerchantService(
	merchantRepo ports.MerchantRepository,
	encSvc ports.EncryptionService,
) ports.MerchantManagementService {
	return &merchantService{
		merchantRepo: merchantRepo,
		encSvc:       encSvc,
	}
}

func (s *merchantService) GetProfile(ctx context.Context, merchantID uuid.UUID) (*domain.Merchant, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if merchant == nil {
		return nil, apperror.NotFound("merchant")
	}
	return merchant, nil
}

func (s *merchantService) UpdateWebhookURL(ctx context.Context, merchantID uuid.UUID, webhookURL string) error {
	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return apperror.InternalError(err)
	}
	if merchant == nil {
		return apperror.NotFound("merchant")
	}

	url := webhookURL
	if err := s.merchantRepo.UpdateWebhookURL(ctx, merchantID, &url); err != nil {
		return apperror.InternalError(err)
	}
	return nil
}

func (s *merchantService) RotateKeys(ctx context.Context, merchantID uuid.UUID) (*ports.RegisterResponse, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if merchant == nil {
		return nil, apperror.NotFound("merchant")
	}

	newAccessKey, err := generateRandomHex(32)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate access key: %w", err))
	}
	newSecretKey, err := generateRandomHex(32)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate secret key: %w", err))
	}

	encSecretKey, err := s.encSvc.Encrypt(newSecretKey)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encrypt secret key: %w", err))
	}

	if err := s.merchantRepo.UpdateKeys(ctx, merchantID, newAccessKey, encSecretKey); err != nil {
		return nil, apperror.InternalError(err)
	}

	return &ports.RegisterResponse{
		MerchantID: merchant.ID,
		AccessKey:  newAccessKey,
		SecretKey:  newSecretKey,
	}, nil
}
