// Package keystore loads and saves the node's long-term identity. The secret
// file holds the Ed25519 seed as JSON, either plain (the classic ~/.ssb
// secret layout) or sealed under a passphrase with scrypt and
// ChaCha20-Poly1305.
package keystore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"github.com/okwme/scuttle-chat/pkg/crypto"
)

const formatVersion = 1

var (
	// ErrWrongPassphrase is returned when the passphrase is incorrect or the
	// sealed secret has been modified.
	ErrWrongPassphrase = errors.New("keystore: wrong passphrase or corrupted secret")

	// ErrExists is returned by Create when a secret file is already present.
	ErrExists = errors.New("keystore: secret file already exists")
)

// secretFile is the plain on-disk identity record.
type secretFile struct {
	Curve  string `json:"curve"`
	Public string `json:"public"`
	Seed   []byte `json:"seed"`
}

// sealedFile is the passphrase-protected on-disk record: the JSON-encoded
// secretFile sealed under a key derived from the passphrase.
type sealedFile struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

func scryptDefaults() (N, r, p int) { return 1 << 15, 8, 1 }

// Create generates a fresh identity and writes it to path. A non-empty
// passphrase seals the file; an empty one writes it plain. The file is
// created with owner-only permissions and never overwritten.
func Create(path, passphrase string) (*crypto.Keypair, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, ErrExists
	}

	kp, err := crypto.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	if err := write(path, passphrase, kp); err != nil {
		return nil, err
	}
	return kp, nil
}

// Load reads the identity at path, unsealing with passphrase if the file is
// sealed. A plain file ignores the passphrase.
func Load(path, passphrase string) (*crypto.Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keystore: read %s: %w", path, err)
	}

	var sealed sealedFile
	if err := json.Unmarshal(data, &sealed); err == nil && sealed.V > 0 {
		if sealed.V > formatVersion {
			return nil, fmt.Errorf("keystore: unsupported secret version %d", sealed.V)
		}
		data, err = open(passphrase, &sealed)
		if err != nil {
			return nil, err
		}
	}

	var sf secretFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("keystore: parse secret: %w", err)
	}
	if sf.Curve != "ed25519" {
		return nil, fmt.Errorf("keystore: unsupported curve %q", sf.Curve)
	}

	kp, err := crypto.KeypairFromSeed(sf.Seed)
	if err != nil {
		return nil, err
	}
	if sf.Public != "" && sf.Public != kp.Public.String() {
		return nil, errors.New("keystore: public key does not match seed")
	}
	crypto.SecureZero(sf.Seed)
	return kp, nil
}

// LoadOrCreate loads the identity at path, generating one on first run.
func LoadOrCreate(path, passphrase string) (*crypto.Keypair, error) {
	kp, err := Load(path, passphrase)
	if err == nil {
		return kp, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return Create(path, passphrase)
}

func write(path, passphrase string, kp *crypto.Keypair) error {
	data, err := json.MarshalIndent(secretFile{
		Curve:  "ed25519",
		Public: kp.Public.String(),
		Seed:   kp.Seed(),
	}, "", "  ")
	if err != nil {
		return err
	}
	if passphrase != "" {
		data, err = seal(passphrase, data)
		if err != nil {
			return err
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("keystore: create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("keystore: write %s: %w", path, err)
	}
	return nil
}

// seal derives a key from passphrase and seals raw into a sealedFile JSON
// blob. The nonce is all zeros; the random salt makes every derived key
// unique.
func seal(passphrase string, raw []byte) ([]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	N, r, p := scryptDefaults()
	key, err := scrypt.Key([]byte(passphrase), salt[:], N, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	ct := aead.Seal(nil, nonce[:], raw, salt[:])

	return json.Marshal(sealedFile{
		V:      formatVersion,
		Salt:   salt[:],
		N:      N,
		R:      r,
		P:      p,
		Cipher: ct,
	})
}

func open(passphrase string, sealed *sealedFile) ([]byte, error) {
	key, err := scrypt.Key([]byte(passphrase), sealed.Salt, sealed.N, sealed.R, sealed.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	pt, err := aead.Open(nil, nonce[:], sealed.Cipher, sealed.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}
