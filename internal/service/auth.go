package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"loyalty/scanhub/internal/model"
	"loyalty/scanhub/internal/repository"
	"loyalty/scanhub/pkg/crypto"
	jwtpkg "loyalty/scanhub/pkg/jwt"
)

// DeviceAuth provisions scanner devices and exchanges their credentials for
// scanner tokens. The plaintext secret exists only in the provisioning
// response; the store keeps a bcrypt hash.
type DeviceAuth struct {
	devices repository.DeviceRepository
	jwt     *jwtpkg.Manager
	logger  *zap.Logger
	now     func() time.Time
}

func NewDeviceAuth(devices repository.DeviceRepository, jwt *jwtpkg.Manager, logger *zap.Logger) *DeviceAuth {
	return &DeviceAuth{
		devices: devices,
		jwt:     jwt,
		logger:  logger,
		now:     time.Now,
	}
}

// Provision registers a scanner device for a business and returns the
// generated secret. The secret is not recoverable afterwards; losing it means
// provisioning a new device.
func (a *DeviceAuth) Provision(ctx context.Context, businessID int64, name string) (*model.ScannerDevice, string, error) {
	if businessID <= 0 {
		return nil, "", NewValidationError(CodeMalformedPayload, "business id must be positive")
	}
	if name == "" {
		return nil, "", NewValidationError(CodeMalformedPayload, "device name is required")
	}

	secret, err := crypto.GenerateDeviceSecret()
	if err != nil {
		return nil, "", err
	}
	hash, err := crypto.HashSecret(secret)
	if err != nil {
		return nil, "", err
	}

	device := &model.ScannerDevice{
		BusinessID: businessID,
		Name:       name,
		SecretHash: hash,
		Status:     model.EntityStatusActive,
	}
	if err := a.devices.Create(ctx, device); err != nil {
		return nil, "", classifyStoreErr(err)
	}

	a.logger.Info("scanner device provisioned",
		zap.Int64("device_id", device.ID),
		zap.Int64("business_id", businessID),
	)
	return device, secret, nil
}

// Authenticate verifies a device credential pair and issues a scanner token.
// An unknown device and a wrong secret produce the same failure.
func (a *DeviceAuth) Authenticate(ctx context.Context, deviceID int64, secret string) (string, *model.ScannerDevice, error) {
	device, err := a.devices.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, NewSecurityError(CodeDeviceAuthFailed, "invalid device credentials", nil)
		}
		return "", nil, classifyStoreErr(err)
	}

	if !crypto.CheckSecret(secret, device.SecretHash) {
		a.logger.Warn("device authentication failed",
			zap.Int64("device_id", deviceID),
			zap.Int64("business_id", device.BusinessID),
		)
		return "", nil, NewSecurityError(CodeDeviceAuthFailed, "invalid device credentials", nil)
	}
	if device.Status != model.EntityStatusActive {
		return "", nil, NewSecurityError(CodeDeviceDisabled, "device is disabled", nil)
	}

	token, err := a.jwt.GenerateToken(device.BusinessID, jwtpkg.TokenTypeScanner)
	if err != nil {
		return "", nil, err
	}

	if err := a.devices.TouchSeen(ctx, device.ID, a.now()); err != nil {
		// Telemetry only; the credential check already passed.
		a.logger.Warn("failed to record device last-seen", zap.Error(err))
	}
	return token, device, nil
}
