package crypto

import (
	"bytes"
	"testing"

	"golang.org/x/crypto/curve25519"
)

func TestPublicKeyStringRoundTrip(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	parsed, err := ParsePublicKey(kp.Public.String())
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	if parsed != kp.Public {
		t.Errorf("round trip changed key: %s != %s", parsed, kp.Public)
	}
}

func TestParsePublicKeyRejectsBadInput(t *testing.T) {
	if _, err := ParsePublicKey("not base64!!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := ParsePublicKey("c2hvcnQ="); err == nil {
		t.Error("expected error for wrong length")
	}
}

func TestKeypairFromSeedDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)

	a, err := KeypairFromSeed(seed)
	if err != nil {
		t.Fatalf("KeypairFromSeed: %v", err)
	}
	b, err := KeypairFromSeed(seed)
	if err != nil {
		t.Fatalf("KeypairFromSeed: %v", err)
	}
	if a.Public != b.Public {
		t.Error("same seed produced different identities")
	}

	if _, err := KeypairFromSeed(seed[:16]); err == nil {
		t.Error("expected error for short seed")
	}
}

// The converted scalar and point must agree: scalar-mult of the converted
// private key against the curve base point has to land on the converted
// public key. The handshake's shared secrets depend on this.
func TestEd25519ToX25519Consistency(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	xPriv, err := Ed25519PrivateToX25519(kp.Secret)
	if err != nil {
		t.Fatalf("Ed25519PrivateToX25519: %v", err)
	}
	xPub, err := Ed25519PublicToX25519(kp.Public[:])
	if err != nil {
		t.Fatalf("Ed25519PublicToX25519: %v", err)
	}

	derived, err := curve25519.X25519(xPriv, curve25519.Basepoint)
	if err != nil {
		t.Fatalf("X25519: %v", err)
	}
	if !bytes.Equal(derived, xPub) {
		t.Error("converted private key does not correspond to converted public key")
	}
}

func TestNetworkKeyParse(t *testing.T) {
	main := MainNetworkKey()
	var zero NetworkKey
	if main == zero {
		t.Fatal("main network key is zero")
	}

	parsed, err := ParseNetworkKey("1KHLiKZvAvjbY1ziZEHMXawbCEIM6qwjCDm3VYRan/s=")
	if err != nil {
		t.Fatalf("ParseNetworkKey: %v", err)
	}
	if parsed != main {
		t.Error("parsed key differs from MainNetworkKey")
	}

	if _, err := ParseNetworkKey("dG9vc2hvcnQ="); err == nil {
		t.Error("expected error for wrong length")
	}
}

func TestValidateEd25519PublicKey(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	if err := ValidateEd25519PublicKey(kp.Public[:]); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}

	bad := bytes.Repeat([]byte{0xff}, 32)
	if err := ValidateEd25519PublicKey(bad); err == nil {
		t.Error("expected error for malformed key")
	}

	if err := ValidateEd25519PublicKey(bad[:16]); err == nil {
		t.Error("expected error for short key")
	}

	// A canonical encoding plus the field prime re-encodes differently and
	// must be rejected even though it decodes to a valid point.
	nonCanonical := make([]byte, 32)
	nonCanonical[0] = 0xee // 1 + p, where p = 2^255 - 19
	nonCanonical[31] = 0x7f
	for i := 1; i < 31; i++ {
		nonCanonical[i] = 0xff
	}
	if err := ValidateEd25519PublicKey(nonCanonical); err == nil {
		t.Error("expected error for non-canonical encoding")
	}
}

func TestSecureZero(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	SecureZero(buf)
	for i, b := range buf {
		if b != 0 {
			t.Errorf("byte %d not zeroed", i)
		}
	}
}
