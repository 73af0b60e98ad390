package exttoken

import (
	"errors"
	"fmt"
)

// ErrUnknownIssuer is returned when no key is registered for a token's
// issuer. The verifier maps it to the generic invalid-token error.
var ErrUnknownIssuer = errors.New("unknown token issuer")

// IssuerKey is the verification material registered for one trusted issuer
type IssuerKey struct {
	// Key is the verification key: []byte for HMAC methods,
	// *rsa.PublicKey or *ecdsa.PublicKey for asymmetric ones.
	Key interface{}

	// Methods lists the signing method names the issuer is allowed to use,
	// e.g. "HS256". A token signed with any other method is rejected even
	// if the key would verify it.
	Methods []string
}

// KeyStore resolves issuer names to verification keys
type KeyStore interface {
	// Key returns the verification key for the issuer, restricted to the
	// given signing method. Returns ErrUnknownIssuer for unregistered
	// issuers and an error for disallowed methods.
	Key(issuer, method string) (interface{}, error)
}

// StaticKeyStore is a KeyStore backed by a fixed issuer map
type StaticKeyStore struct {
	issuers map[string]IssuerKey
}

// NewStaticKeyStore creates a key store from an issuer -> key map
func NewStaticKeyStore(issuers map[string]IssuerKey) *StaticKeyStore {
	return &StaticKeyStore{issuers: issuers}
}

// Key implements KeyStore.Key
func (s *StaticKeyStore) Key(issuer, method string) (interface{}, error) {
	ik, ok := s.issuers[issuer]
	if !ok {
		return nil, ErrUnknownIssuer
	}
	for _, m := range ik.Methods {
		if m == method {
			return ik.Key, nil
		}
	}
	return nil, fmt.Errorf("signing method %s not allowed for issuer %s", method, issuer)
}

// Issuers returns the registered issuer names
func (s *StaticKeyStore) Issuers() []string {
	names := make([]string, 0, len(s.issuers))
	for name := range s.issuers {
		names = append(names, name)
	}
	return names
}
