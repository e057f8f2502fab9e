// Package security signs outbound payloads with the agent's private
// key and exposes the identity fields used for auth headers.
package security

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
)

// ErrKeyLoad marks a failure to decode or parse the configured key
// material. It is fatal: the agent must not run unsigned.
var ErrKeyLoad = errors.New("client secret key load failed")

// Provider holds the agent's signing key and identity. It is immutable
// after construction and safe for shared use across monitors.
type Provider struct {
	accessToken string
	clientID    string
	key         *rsa.PrivateKey
}

// New decodes the base64-wrapped PEM client secret and parses the RSA
// private key inside it.
func New(accessToken, clientID, clientSecret string) (*Provider, error) {
	pemBytes, err := base64.StdEncoding.DecodeString(clientSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding base64: %v", ErrKeyLoad, err)
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in client secret", ErrKeyLoad)
	}

	key, err := parseKey(block)
	if err != nil {
		return nil, err
	}

	return &Provider{
		accessToken: accessToken,
		clientID:    clientID,
		key:         key,
	}, nil
}

func parseKey(block *pem.Block) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing private key: %v", ErrKeyLoad, err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: client secret is not an RSA key", ErrKeyLoad)
	}
	return key, nil
}

// AccessToken returns the bearer token for the Authorization header.
func (p *Provider) AccessToken() string { return p.accessToken }

// ClientID returns the value for the Client-ID header.
func (p *Provider) ClientID() string { return p.clientID }

// Sign produces a base64 RSA-SHA256 signature over the exact payload
// bytes. The caller must transmit those same bytes unmodified.
func (p *Provider) Sign(payload []byte) (string, error) {
	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, p.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("signing payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}
