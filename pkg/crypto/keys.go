// Package crypto provides cryptographic key handling for scuttle-chat:
// Ed25519 identity keypairs, the shared network key, and the
// Ed25519-to-X25519 conversions the handshake depends on.
package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	// PublicKeySize is the size of an Ed25519 identity public key in bytes.
	PublicKeySize = ed25519.PublicKeySize

	// X25519KeySize is the size of X25519 public and private keys in bytes.
	X25519KeySize = 32

	// NetworkKeySize is the size of the shared network key in bytes.
	NetworkKeySize = 32
)

// PublicKey is a peer's 32-byte Ed25519 identity key.
type PublicKey [PublicKeySize]byte

// String returns the base64 form used in peer addresses and log output.
func (pk PublicKey) String() string {
	return base64.StdEncoding.EncodeToString(pk[:])
}

// PublicKeyFromBytes copies b into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("invalid public key size: expected %d bytes, got %d",
			PublicKeySize, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// ParsePublicKey decodes the base64 form produced by PublicKey.String.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return pk, fmt.Errorf("invalid public key encoding: %w", err)
	}
	return PublicKeyFromBytes(raw)
}

// Keypair is a local Ed25519 identity.
type Keypair struct {
	Public PublicKey
	Secret ed25519.PrivateKey
}

// GenerateKeypair creates a fresh Ed25519 identity keypair.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate identity keypair: %w", err)
	}
	pk, err := PublicKeyFromBytes(pub)
	if err != nil {
		return nil, err
	}
	return &Keypair{Public: pk, Secret: priv}, nil
}

// Seed returns a copy of the keypair's 32-byte Ed25519 seed.
func (kp *Keypair) Seed() []byte {
	seed := make([]byte, ed25519.SeedSize)
	copy(seed, kp.Secret.Seed())
	return seed
}

// KeypairFromSeed derives the identity keypair from a 32-byte Ed25519 seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed size: expected %d bytes, got %d",
			ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pk, err := PublicKeyFromBytes(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &Keypair{Public: pk, Secret: priv}, nil
}

// NetworkKey is the 32-byte key shared by every peer of one network.
// Peers configured with different network keys cannot complete a handshake.
type NetworkKey [NetworkKeySize]byte

// MainNetworkKey returns the default network key, the identifier of the main
// Secure Scuttlebutt network.
func MainNetworkKey() NetworkKey {
	var k NetworkKey
	raw, _ := base64.StdEncoding.DecodeString("1KHLiKZvAvjbY1ziZEHMXawbCEIM6qwjCDm3VYRan/s=")
	copy(k[:], raw)
	return k
}

// ParseNetworkKey decodes a base64-encoded network key.
func ParseNetworkKey(s string) (NetworkKey, error) {
	var k NetworkKey
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("invalid network key encoding: %w", err)
	}
	if len(raw) != NetworkKeySize {
		return k, fmt.Errorf("invalid network key size: expected %d bytes, got %d",
			NetworkKeySize, len(raw))
	}
	copy(k[:], raw)
	return k, nil
}

// Ed25519PrivateToX25519 converts an Ed25519 private key to an X25519 private key.
// This follows RFC 8032 and the standard Ed25519-to-X25519 conversion process:
// 1. Hash the Ed25519 seed (first 32 bytes of private key) with SHA-512
// 2. Take the first 32 bytes and apply X25519 clamping
func Ed25519PrivateToX25519(edPriv ed25519.PrivateKey) ([]byte, error) {
	if len(edPriv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid Ed25519 private key size: expected %d, got %d",
			ed25519.PrivateKeySize, len(edPriv))
	}

	seed := edPriv[:ed25519.SeedSize]

	h := sha512.Sum512(seed)
	defer SecureZero(h[:])

	x25519Priv := make([]byte, X25519KeySize)
	copy(x25519Priv, h[:32])
	clampX25519(x25519Priv)

	return x25519Priv, nil
}

// Ed25519PublicToX25519 converts an Ed25519 public key to an X25519 public key.
// This converts the Edwards curve point to the equivalent Montgomery curve point.
func Ed25519PublicToX25519(edPub []byte) ([]byte, error) {
	if len(edPub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid Ed25519 public key size: expected %d, got %d",
			ed25519.PublicKeySize, len(edPub))
	}

	edPoint, err := new(edwards25519.Point).SetBytes(edPub)
	if err != nil {
		return nil, fmt.Errorf("invalid Ed25519 public key: %w", err)
	}

	// Birational map from Edwards to Montgomery: u = (1 + y) / (1 - y)
	return edPoint.BytesMontgomery(), nil
}

// clampX25519 applies the standard X25519 clamping to a 32-byte private key:
// - Clear the lowest 3 bits (multiple of 8 for cofactor)
// - Clear the highest bit (ensure value < 2^255)
// - Set the second-highest bit (ensure fixed-time operation)
func clampX25519(k []byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

// ValidateEd25519PublicKey checks that key is the canonical encoding of a
// valid point on the curve.
func ValidateEd25519PublicKey(key []byte) error {
	if len(key) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid Ed25519 public key size: expected %d, got %d",
			ed25519.PublicKeySize, len(key))
	}
	p, err := new(edwards25519.Point).SetBytes(key)
	if err != nil {
		return fmt.Errorf("invalid Ed25519 public key: not a valid curve point")
	}
	// SetBytes tolerates non-canonical encodings; re-encode to reject them.
	if !bytes.Equal(p.Bytes(), key) {
		return fmt.Errorf("invalid Ed25519 public key: non-canonical encoding")
	}
	return nil
}
