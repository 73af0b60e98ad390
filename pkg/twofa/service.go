package twofa

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/xlzd/gotp"

	apperrors "github.com/keelhq/authd/pkg/errors"
	"github.com/keelhq/authd/pkg/user"
)

const (
	TotpIssuer = "authd"
	TotpPeriod = 30
	TotpSkew   = 1

	recoveryCodeCount = 8
	recoveryCodeBytes = 8
)

// ValidationResult reports how an MFA challenge was satisfied
type ValidationResult struct {
	// UsedRecoveryCode is set when a recovery code, not a TOTP code,
	// satisfied the challenge. The code has been consumed; the caller
	// should prompt the user to re-enroll.
	UsedRecoveryCode bool

	// RecoveryCodesLeft is the number of unused recovery codes remaining
	RecoveryCodesLeft int
}

// Enrollment is returned once at enrollment time; the plaintext recovery
// codes are never recoverable afterwards.
type Enrollment struct {
	Secret          string
	ProvisioningURI string
	RecoveryCodes   []string
}

// Service validates TOTP codes and single-use recovery codes against a
// user's enrolled MFA material.
type Service struct {
	repo user.Repository
}

// NewService creates a new MFA service
func NewService(repo user.Repository) *Service {
	return &Service{repo: repo}
}

// hashRecoveryCode produces the stored form of a recovery code. Codes are
// high-entropy random values, so an unsalted digest is sufficient.
func hashRecoveryCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Validate checks the supplied TOTP code or recovery code against the
// user's enrolled MFA material.
//
// A matched recovery code is removed from the stored set before returning;
// presenting the same code again fails with ErrCode2FAInvalid.
func (s *Service) Validate(ctx context.Context, u user.User, code, recoveryCode string) (ValidationResult, error) {
	if !u.MFAEnrolled() {
		if code != "" || recoveryCode != "" {
			return ValidationResult{}, apperrors.New(apperrors.ErrCode2FANotEnrolled, "MFA is not enrolled")
		}
		return ValidationResult{}, nil
	}

	if code == "" && recoveryCode == "" {
		return ValidationResult{}, apperrors.New(apperrors.ErrCode2FARequired, "MFA code required")
	}

	if code != "" {
		valid, err := validateTotp(u.MFASecret, code)
		if err != nil {
			slog.Error("TOTP validation failed", "userId", u.ID, "err", err)
			return ValidationResult{}, apperrors.InternalWrap(err, "totp validation failed")
		}
		if !valid {
			return ValidationResult{}, apperrors.New(apperrors.ErrCode2FAInvalid, "invalid MFA code")
		}
		return ValidationResult{RecoveryCodesLeft: len(u.MFARecoveryCodes)}, nil
	}

	return s.consumeRecoveryCode(ctx, u, recoveryCode)
}

// consumeRecoveryCode spends a recovery code through the repository, which
// owns the single-use guarantee: removal is atomic there, so concurrent
// logins presenting the same code resolve to exactly one success.
func (s *Service) consumeRecoveryCode(ctx context.Context, u user.User, recoveryCode string) (ValidationResult, error) {
	remaining, err := s.repo.ConsumeRecoveryCode(ctx, u.ID, hashRecoveryCode(recoveryCode))
	if err != nil {
		if errors.Is(err, user.ErrRecoveryCodeNotFound) {
			return ValidationResult{}, apperrors.New(apperrors.ErrCode2FAInvalid, "invalid MFA code")
		}
		slog.Error("Failed to consume recovery code", "userId", u.ID, "err", err)
		return ValidationResult{}, apperrors.InternalWrap(err, "failed to consume recovery code")
	}

	slog.Info("MFA recovery code consumed", "userId", u.ID, "remaining", remaining)
	return ValidationResult{
		UsedRecoveryCode:  true,
		RecoveryCodesLeft: remaining,
	}, nil
}

// Enroll generates a TOTP secret plus a fresh recovery code set and stores
// them on the user. The returned Enrollment carries the only plaintext copy
// of the recovery codes.
func (s *Service) Enroll(ctx context.Context, u user.User) (Enrollment, error) {
	secret := gotp.RandomSecret(16)

	codes := make([]string, 0, recoveryCodeCount)
	hashes := make([]string, 0, recoveryCodeCount)
	for i := 0; i < recoveryCodeCount; i++ {
		buf := make([]byte, recoveryCodeBytes)
		if _, err := rand.Read(buf); err != nil {
			return Enrollment{}, apperrors.InternalWrap(err, "failed to generate recovery codes")
		}
		code := hex.EncodeToString(buf)
		codes = append(codes, code)
		hashes = append(hashes, hashRecoveryCode(code))
	}

	u.MFASecret = secret
	u.MFARecoveryCodes = hashes
	if err := s.repo.Save(ctx, u); err != nil {
		return Enrollment{}, apperrors.InternalWrap(err, "failed to save enrollment")
	}

	uri := gotp.NewDefaultTOTP(secret).ProvisioningUri(u.Email, TotpIssuer)
	slog.Info("MFA enrolled", "userId", u.ID)

	return Enrollment{
		Secret:          secret,
		ProvisioningURI: uri,
		RecoveryCodes:   codes,
	}, nil
}

// GenerateCode produces the current TOTP code for a secret. Used by tests
// and the quick-start tooling.
func GenerateCode(secret string) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    TotpPeriod,
		Skew:      TotpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate totp code: %w", err)
	}
	return code, nil
}

func validateTotp(secret, passcode string) (bool, error) {
	return totp.ValidateCustom(passcode, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    TotpPeriod,
		Skew:      TotpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}
