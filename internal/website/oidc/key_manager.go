package oidc

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/funnelhq/funnel360/internal/identity"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
)

var _ identity.KeySource = (*KeyManager)(nil)

// KeyManager holds the ECDSA P-256 keypair the server signs bearer tokens
// with. It is also a KeySource so the server can verify its own tokens
// without fetching its JWKS.
type KeyManager struct {
	privateKey *ecdsa.PrivateKey
	kid        string // base58 SHA256 of the public key DER
}

// NewKeyManager creates a KeyManager with a fresh keypair. Tokens signed by
// it do not survive a restart.
func NewKeyManager() (*KeyManager, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}
	return newKeyManager(privateKey)
}

// LoadKeyManager reads a PEM encoded EC private key (SEC 1 or PKCS #8).
func LoadKeyManager(path string) (*KeyManager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("signing key is not PEM encoded")
	}

	var privateKey *ecdsa.PrivateKey
	switch block.Type {
	case "EC PRIVATE KEY":
		privateKey, err = x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		var key any
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err == nil {
			var ok bool
			if privateKey, ok = key.(*ecdsa.PrivateKey); !ok {
				err = fmt.Errorf("signing key is %T, want ECDSA", key)
			}
		}
	default:
		err = fmt.Errorf("unsupported PEM block %q", block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	if privateKey.Curve != elliptic.P256() {
		return nil, errors.New("signing key must use P-256")
	}

	return newKeyManager(privateKey)
}

func newKeyManager(privateKey *ecdsa.PrivateKey) (*KeyManager, error) {
	pubKeyDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	hash := sha256.Sum256(pubKeyDER)

	return &KeyManager{
		privateKey: privateKey,
		kid:        base58.Encode(hash[:]),
	}, nil
}

// Kid returns the key ID (fingerprint) for this keypair.
func (km *KeyManager) Kid() string {
	return km.kid
}

// SignJWT signs claims with ES256 and stamps the kid header.
func (km *KeyManager) SignJWT(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = km.kid

	tokenString, err := token.SignedString(km.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return tokenString, nil
}

// JWK returns the public key in JWK form.
func (km *KeyManager) JWK() identity.JWK {
	return identity.NewJWK(km.kid, &km.privateKey.PublicKey)
}

// PublicKey implements identity.KeySource.
func (km *KeyManager) PublicKey(ctx context.Context, kid string) (*ecdsa.PublicKey, error) {
	if kid != km.kid {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return &km.privateKey.PublicKey, nil
}
