package exttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keelhq/authd/pkg/errors"
)

const (
	testIssuer = "https://sso.example.com"
	testSecret = "issuer-shared-secret"
)

func testVerifier() *Verifier {
	return NewVerifier(NewStaticKeyStore(map[string]IssuerKey{
		testIssuer: {Key: []byte(testSecret), Methods: []string{"HS256"}},
	}))
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   testIssuer,
		"sub":   "user-123",
		"name":  "Alice Smith",
		"email": "alice@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func TestVerify_ValidToken(t *testing.T) {
	v := testVerifier()

	claims, err := v.Verify(signToken(t, testSecret, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "Alice Smith", claims.DisplayName)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, testIssuer, claims.Issuer)
}

func TestVerify_BearerPrefix(t *testing.T) {
	v := testVerifier()

	claims, err := v.Verify("Bearer " + signToken(t, testSecret, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
}

// A token with perfectly plausible claims but the wrong signature must
// be rejected without any claim leaking out.
func TestVerify_WrongSignature(t *testing.T) {
	v := testVerifier()

	claims, err := v.Verify(signToken(t, "some-other-secret", validClaims()))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
	assert.Zero(t, claims)
}

func TestVerify_UnknownIssuer(t *testing.T) {
	v := testVerifier()

	c := validClaims()
	c["iss"] = "https://evil.example.com"
	_, err := v.Verify(signToken(t, testSecret, c))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
}

func TestVerify_DisallowedMethod(t *testing.T) {
	v := testVerifier()

	// alg=none style forgeries must never pass
	token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims())
	unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(unsigned)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
}

func TestVerify_ExpiredToken(t *testing.T) {
	v := testVerifier()

	c := validClaims()
	c["exp"] = time.Now().Add(-time.Hour).Unix()
	_, err := v.Verify(signToken(t, testSecret, c))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
}

func TestVerify_MissingRequiredClaims(t *testing.T) {
	v := testVerifier()

	tests := []struct {
		name string
		drop string
	}{
		{"missing subject", "sub"},
		{"missing display name", "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validClaims()
			delete(c, tt.drop)
			_, err := v.Verify(signToken(t, testSecret, c))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
		})
	}
}

func TestVerify_NicknameFallback(t *testing.T) {
	v := testVerifier()

	c := validClaims()
	delete(c, "name")
	c["nickname"] = "asmith"
	claims, err := v.Verify(signToken(t, testSecret, c))
	require.NoError(t, err)
	assert.Equal(t, "asmith", claims.DisplayName)
}

func TestVerify_MalformedToken(t *testing.T) {
	v := testVerifier()

	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		_, err := v.Verify(tok)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
	}
}
