// Package wotsec with key and certificate management for the secured protocol
// schemes. Certificates are stored in PEM format.
package wotsec

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
)

// CreateECDSAKeys creates an asymmetric key set.
// Returns a private key that contains its associated public key.
func CreateECDSAKeys() *ecdsa.PrivateKey {
	privKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	return privKey
}

// PrivateKeyFromPEM converts a PEM encoded private key into an ECDSA key object
func PrivateKeyFromPEM(pemEncoded []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemEncoded)
	if block == nil {
		return nil, errors.New("PrivateKeyFromPEM: not a valid PEM string")
	}
	rawKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	privKey, isECDSA := rawKey.(*ecdsa.PrivateKey)
	if !isECDSA {
		return nil, errors.New("PrivateKeyFromPEM: not an ECDSA key")
	}
	return privKey, nil
}

// PrivateKeyToPEM converts a private key into its PEM encoded format
func PrivateKeyToPEM(privKey *ecdsa.PrivateKey) ([]byte, error) {
	encoded, err := x509.MarshalPKCS8PrivateKey(privKey)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: encoded}), nil
}

// PublicKeyFromPEM converts a PEM encoded public key into an ECDSA public key object
func PublicKeyFromPEM(pemEncoded []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(pemEncoded)
	if block == nil {
		return nil, errors.New("PublicKeyFromPEM: not a valid PEM string")
	}
	rawKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pubKey, isECDSA := rawKey.(*ecdsa.PublicKey)
	if !isECDSA {
		return nil, errors.New("PublicKeyFromPEM: not an ECDSA public key")
	}
	return pubKey, nil
}

// PublicKeyToPEM converts a public key into its PEM encoded format
func PublicKeyToPEM(pubKey *ecdsa.PublicKey) ([]byte, error) {
	encoded, err := x509.MarshalPKIXPublicKey(pubKey)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: encoded}), nil
}

// SavePrivateKeyToPEM saves a private key to a PEM file with 0600 permissions
func SavePrivateKeyToPEM(privKey *ecdsa.PrivateKey, path string) error {
	encoded, err := PrivateKeyToPEM(privKey)
	if err != nil {
		return err
	}
	return os.WriteFile(path, encoded, 0600)
}

// LoadPrivateKeyFromPEM loads a private key from a PEM file
func LoadPrivateKeyFromPEM(path string) (*ecdsa.PrivateKey, error) {
	encoded, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return PrivateKeyFromPEM(encoded)
}
