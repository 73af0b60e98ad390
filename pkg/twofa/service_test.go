package twofa

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keelhq/authd/pkg/errors"
	"github.com/keelhq/authd/pkg/user"
)

func enrolledUser(t *testing.T) (*Service, user.User, Enrollment) {
	t.Helper()
	repo := user.NewInMemoryRepository()
	u, err := repo.Create(context.Background(), user.User{Email: "alice@example.com"})
	require.NoError(t, err)

	svc := NewService(repo)
	enrollment, err := svc.Enroll(context.Background(), u)
	require.NoError(t, err)

	u, err = repo.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	return svc, u, enrollment
}

func TestEnroll(t *testing.T) {
	_, u, enrollment := enrolledUser(t)

	assert.True(t, u.MFAEnrolled())
	assert.NotEmpty(t, enrollment.Secret)
	assert.Len(t, enrollment.RecoveryCodes, recoveryCodeCount)
	assert.Contains(t, enrollment.ProvisioningURI, "otpauth://totp/")
	assert.Contains(t, enrollment.ProvisioningURI, TotpIssuer)

	// Stored codes are digests, not the plaintext handed to the user
	for _, plaintext := range enrollment.RecoveryCodes {
		for _, stored := range u.MFARecoveryCodes {
			assert.NotEqual(t, plaintext, stored)
		}
	}
}

func TestValidate_TotpCode(t *testing.T) {
	svc, u, enrollment := enrolledUser(t)
	ctx := context.Background()

	code, err := GenerateCode(enrollment.Secret)
	require.NoError(t, err)

	result, err := svc.Validate(ctx, u, code, "")
	require.NoError(t, err)
	assert.False(t, result.UsedRecoveryCode)

	_, err = svc.Validate(ctx, u, "000000", "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCode2FAInvalid))
}

func TestValidate_MissingCode(t *testing.T) {
	svc, u, _ := enrolledUser(t)

	_, err := svc.Validate(context.Background(), u, "", "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCode2FARequired))
}

func TestValidate_NotEnrolled(t *testing.T) {
	repo := user.NewInMemoryRepository()
	u, err := repo.Create(context.Background(), user.User{Email: "bob@example.com"})
	require.NoError(t, err)
	svc := NewService(repo)

	// Nothing supplied, nothing enrolled: no challenge to fail
	_, err = svc.Validate(context.Background(), u, "", "")
	require.NoError(t, err)

	// Supplying a code without enrollment is an error
	_, err = svc.Validate(context.Background(), u, "123456", "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCode2FANotEnrolled))
}

func TestValidate_RecoveryCodeSingleUse(t *testing.T) {
	svc, u, enrollment := enrolledUser(t)
	ctx := context.Background()
	code := enrollment.RecoveryCodes[0]

	result, err := svc.Validate(ctx, u, "", code)
	require.NoError(t, err)
	assert.True(t, result.UsedRecoveryCode)
	assert.Equal(t, recoveryCodeCount-1, result.RecoveryCodesLeft)

	// Reload: the used code is gone from the stored set
	u, err = svc.repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, u.MFARecoveryCodes, recoveryCodeCount-1)

	// Second use of the same code fails
	_, err = svc.Validate(ctx, u, "", code)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCode2FAInvalid))
}

func TestValidate_UnknownRecoveryCode(t *testing.T) {
	svc, u, _ := enrolledUser(t)

	_, err := svc.Validate(context.Background(), u, "", strings.Repeat("f", 16))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCode2FAInvalid))
}

func TestValidate_ConcurrentRecoveryCodeReuse(t *testing.T) {
	svc, u, enrollment := enrolledUser(t)
	ctx := context.Background()
	code := enrollment.RecoveryCodes[0]

	// Each login carries its own snapshot of the user record, the way two
	// in-flight requests would
	const n = 8
	var wg sync.WaitGroup
	results := make([]ValidationResult, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snapshot, err := svc.repo.FindByID(ctx, u.ID)
			if err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = svc.Validate(ctx, snapshot, "", code)
		}(i)
	}
	wg.Wait()

	successes := 0
	for i := 0; i < n; i++ {
		if errs[i] == nil {
			successes++
			assert.True(t, results[i].UsedRecoveryCode)
		} else {
			assert.True(t, errors.IsCode(errs[i], errors.ErrCode2FAInvalid))
		}
	}
	assert.Equal(t, 1, successes, "a recovery code must be spendable exactly once")

	reloaded, err := svc.repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.MFARecoveryCodes, recoveryCodeCount-1)
}
