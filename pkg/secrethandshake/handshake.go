// Package secrethandshake implements the four-pass mutually authenticating
// key exchange that scuttle-chat peers run before any application data flows.
//
// Both sides hold a long-term Ed25519 identity and the shared network key.
// The exchange proceeds hello/hello, then an authenticate message from the
// client and an accept message from the server, each sealed with keys derived
// from the accumulated curve25519 shared secrets. On success both sides hold
// direction-disjoint session keys: the client's write key equals the server's
// read key and vice versa.
package secrethandshake

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/okwme/scuttle-chat/pkg/crypto"
)

const (
	helloSize        = 64  // hmac(32) || ephemeral public key (32)
	authenticateSize = 112 // secretbox over sig(64) || pk(32), plus overhead(16)
	acceptSize       = 80  // secretbox over sig(64), plus overhead(16)

	// KeySize is the size of one direction's session key.
	KeySize = 32

	// NonceSize is the size of one direction's nonce seed.
	NonceSize = 24
)

// Handshake failure kinds. All of them mean the peer could not be
// authenticated; none of them are retriable with the same inputs.
var (
	// ErrWrongNetworkKey indicates the peer's hello was not authenticated by
	// our network key.
	ErrWrongNetworkKey = errors.New("secrethandshake: hello not valid for this network")

	// ErrInvalidProof indicates a signature inside the authenticate or accept
	// message did not verify.
	ErrInvalidProof = errors.New("secrethandshake: identity proof verification failed")

	// ErrProtocol indicates a malformed or unopenable handshake message.
	ErrProtocol = errors.New("secrethandshake: protocol violation")
)

// SessionKeys is the per-connection output of a completed handshake.
// WriteKey/WriteNonce seal the outbound direction; ReadKey/ReadNonce open the
// inbound direction. The two directions never share a key.
type SessionKeys struct {
	WriteKey   [KeySize]byte
	WriteNonce [NonceSize]byte
	ReadKey    [KeySize]byte
	ReadNonce  [NonceSize]byte

	// Remote is the authenticated identity of the other side.
	Remote crypto.PublicKey
}

// state carries everything accumulated across the four passes.
type state struct {
	network crypto.NetworkKey

	localPK ed25519.PublicKey
	localSK ed25519.PrivateKey

	remotePK ed25519.PublicKey

	ephPub    [32]byte
	ephSec    [32]byte
	remoteEph [32]byte

	secretAB []byte // ephemeral/ephemeral
	secretaB []byte // our ephemeral with their long-term
	secretAb []byte // our long-term with their ephemeral

	clientSig [ed25519.SignatureSize]byte
}

func newState(network crypto.NetworkKey, local *crypto.Keypair) (*state, error) {
	s := &state{
		network: network,
		localPK: local.Secret.Public().(ed25519.PublicKey),
		localSK: local.Secret,
	}
	var seed [32]byte
	if _, err := io.ReadFull(rand.Reader, seed[:]); err != nil {
		return nil, fmt.Errorf("secrethandshake: ephemeral key generation: %w", err)
	}
	copy(s.ephSec[:], seed[:])
	pub, err := curve25519.X25519(s.ephSec[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("secrethandshake: ephemeral key generation: %w", err)
	}
	copy(s.ephPub[:], pub)
	return s, nil
}

// netAuth is HMAC-SHA512 under the network key, truncated to 32 bytes.
func (s *state) netAuth(msg []byte) []byte {
	mac := hmac.New(sha512.New, s.network[:])
	mac.Write(msg)
	return mac.Sum(nil)[:32]
}

func (s *state) hello() []byte {
	out := make([]byte, 0, helloSize)
	out = append(out, s.netAuth(s.ephPub[:])...)
	return append(out, s.ephPub[:]...)
}

func (s *state) verifyHello(msg []byte) error {
	if len(msg) != helloSize {
		return ErrProtocol
	}
	if !hmac.Equal(msg[:32], s.netAuth(msg[32:])) {
		return ErrWrongNetworkKey
	}
	copy(s.remoteEph[:], msg[32:])
	return nil
}

// deriveClientSecrets computes ab, aB for the initiator (remote long-term key
// already known). deriveServerSecrets is the responder mirror.
func (s *state) deriveClientSecrets() error {
	var err error
	s.secretAB, err = curve25519.X25519(s.ephSec[:], s.remoteEph[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	remoteCurve, err := crypto.Ed25519PublicToX25519(s.remotePK)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	s.secretaB, err = curve25519.X25519(s.ephSec[:], remoteCurve)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return nil
}

func (s *state) deriveServerSecrets() error {
	var err error
	s.secretAB, err = curve25519.X25519(s.ephSec[:], s.remoteEph[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	curveSK, err := crypto.Ed25519PrivateToX25519(s.localSK)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	defer crypto.SecureZero(curveSK)
	s.secretaB, err = curve25519.X25519(curveSK, s.remoteEph[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return nil
}

// boxKey2 = sha256(network || ab || aB), sealing the authenticate message.
func (s *state) boxKey2() *[32]byte {
	h := sha256.New()
	h.Write(s.network[:])
	h.Write(s.secretAB)
	h.Write(s.secretaB)
	var k [32]byte
	copy(k[:], h.Sum(nil))
	return &k
}

// boxKey3 = sha256(network || ab || aB || Ab), sealing the accept message.
func (s *state) boxKey3() *[32]byte {
	h := sha256.New()
	h.Write(s.network[:])
	h.Write(s.secretAB)
	h.Write(s.secretaB)
	h.Write(s.secretAb)
	var k [32]byte
	copy(k[:], h.Sum(nil))
	return &k
}

// proof is the byte string both identity signatures cover a hash of:
// network || signer-specific material || sha256(ab).
func (s *state) clientProof() []byte {
	hashAB := sha256.Sum256(s.secretAB)
	out := make([]byte, 0, crypto.NetworkKeySize+ed25519.PublicKeySize+sha256.Size)
	out = append(out, s.network[:]...)
	out = append(out, s.remotePK...)
	return append(out, hashAB[:]...)
}

func (s *state) serverProof() []byte {
	hashAB := sha256.Sum256(s.secretAB)
	out := make([]byte, 0, crypto.NetworkKeySize+ed25519.SignatureSize+ed25519.PublicKeySize+sha256.Size)
	out = append(out, s.network[:]...)
	out = append(out, s.clientSig[:]...)
	out = append(out, s.remotePK...) // client identity from the server's view
	return append(out, hashAB[:]...)
}

var zeroNonce [24]byte

// Client runs the initiator role over rw. remote is the claimed identity of
// the responder; the handshake fails unless the responder proves it.
func Client(rw io.ReadWriter, network crypto.NetworkKey, local *crypto.Keypair, remote crypto.PublicKey) (*SessionKeys, error) {
	s, err := newState(network, local)
	if err != nil {
		return nil, err
	}
	s.remotePK = remote[:]

	if _, err := rw.Write(s.hello()); err != nil {
		return nil, fmt.Errorf("secrethandshake: send hello: %w", err)
	}
	buf := make([]byte, helloSize)
	if _, err := io.ReadFull(rw, buf); err != nil {
		return nil, fmt.Errorf("secrethandshake: read hello: %w", err)
	}
	if err := s.verifyHello(buf); err != nil {
		return nil, err
	}
	if err := s.deriveClientSecrets(); err != nil {
		return nil, err
	}

	// Authenticate: prove our identity, sealed so only this responder with
	// this network key can open it.
	sig := ed25519.Sign(s.localSK, s.clientProof())
	copy(s.clientSig[:], sig)
	plain := make([]byte, 0, ed25519.SignatureSize+ed25519.PublicKeySize)
	plain = append(plain, sig...)
	plain = append(plain, s.localPK...)
	if _, err := rw.Write(secretbox.Seal(nil, plain, &zeroNonce, s.boxKey2())); err != nil {
		return nil, fmt.Errorf("secrethandshake: send authenticate: %w", err)
	}

	// Ab is only computable once the responder has our identity; we can do it
	// immediately because we are the one proving it.
	remoteCurveEph := s.remoteEph[:]
	curveSK, err := crypto.Ed25519PrivateToX25519(s.localSK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	s.secretAb, err = curve25519.X25519(curveSK, remoteCurveEph)
	crypto.SecureZero(curveSK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	// Accept: the responder proves it saw our proof.
	buf = make([]byte, acceptSize)
	if _, err := io.ReadFull(rw, buf); err != nil {
		return nil, fmt.Errorf("secrethandshake: read accept: %w", err)
	}
	opened, ok := secretbox.Open(nil, buf, &zeroNonce, s.boxKey3())
	if !ok {
		return nil, ErrProtocol
	}
	if !ed25519.Verify(s.remotePK, clientSideServerProof(s), opened) {
		return nil, ErrInvalidProof
	}

	return s.finishKeys()
}

// serverSideClientProof mirrors clientProof from the responder's view, where
// the responder identity the initiator signed over is our own public key.
func serverSideClientProof(s *state) []byte {
	hashAB := sha256.Sum256(s.secretAB)
	out := make([]byte, 0, crypto.NetworkKeySize+ed25519.PublicKeySize+sha256.Size)
	out = append(out, s.network[:]...)
	out = append(out, s.localPK...)
	return append(out, hashAB[:]...)
}

// clientSideServerProof mirrors serverProof from the initiator's view, where
// the signer-specific material is our own signature and public key.
func clientSideServerProof(s *state) []byte {
	hashAB := sha256.Sum256(s.secretAB)
	out := make([]byte, 0, crypto.NetworkKeySize+ed25519.SignatureSize+ed25519.PublicKeySize+sha256.Size)
	out = append(out, s.network[:]...)
	out = append(out, s.clientSig[:]...)
	out = append(out, s.localPK...)
	return append(out, hashAB[:]...)
}

// Server runs the responder role over rw and returns the authenticated
// initiator identity alongside the session keys.
func Server(rw io.ReadWriter, network crypto.NetworkKey, local *crypto.Keypair) (crypto.PublicKey, *SessionKeys, error) {
	var remote crypto.PublicKey

	s, err := newState(network, local)
	if err != nil {
		return remote, nil, err
	}

	buf := make([]byte, helloSize)
	if _, err := io.ReadFull(rw, buf); err != nil {
		return remote, nil, fmt.Errorf("secrethandshake: read hello: %w", err)
	}
	if err := s.verifyHello(buf); err != nil {
		return remote, nil, err
	}
	if _, err := rw.Write(s.hello()); err != nil {
		return remote, nil, fmt.Errorf("secrethandshake: send hello: %w", err)
	}
	if err := s.deriveServerSecrets(); err != nil {
		return remote, nil, err
	}

	buf = make([]byte, authenticateSize)
	if _, err := io.ReadFull(rw, buf); err != nil {
		return remote, nil, fmt.Errorf("secrethandshake: read authenticate: %w", err)
	}
	opened, ok := secretbox.Open(nil, buf, &zeroNonce, s.boxKey2())
	if !ok {
		return remote, nil, ErrProtocol
	}
	copy(s.clientSig[:], opened[:ed25519.SignatureSize])
	clientPK := opened[ed25519.SignatureSize:]
	if err := crypto.ValidateEd25519PublicKey(clientPK); err != nil {
		return remote, nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	s.remotePK = append([]byte(nil), clientPK...)
	if !ed25519.Verify(s.remotePK, serverSideClientProof(s), s.clientSig[:]) {
		return remote, nil, ErrInvalidProof
	}

	// Now that the initiator identity is known, compute Ab.
	clientCurve, err := crypto.Ed25519PublicToX25519(s.remotePK)
	if err != nil {
		return remote, nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	s.secretAb, err = curve25519.X25519(s.ephSec[:], clientCurve)
	if err != nil {
		return remote, nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	sig := ed25519.Sign(s.localSK, s.serverProof())
	if _, err := rw.Write(secretbox.Seal(nil, sig, &zeroNonce, s.boxKey3())); err != nil {
		return remote, nil, fmt.Errorf("secrethandshake: send accept: %w", err)
	}

	keys, err := s.finishKeys()
	if err != nil {
		return remote, nil, err
	}
	remote = keys.Remote
	return remote, keys, nil
}

// finishKeys derives the per-direction session keys once all three shared
// secrets exist. Each direction's key binds the full transcript secret to the
// receiver's identity, guaranteeing direction-disjoint, per-connection keys.
func (s *state) finishKeys() (*SessionKeys, error) {
	h := sha256.New()
	h.Write(s.network[:])
	h.Write(s.secretAB)
	h.Write(s.secretaB)
	h.Write(s.secretAb)
	inner := sha256.Sum256(h.Sum(nil))
	master := sha256.Sum256(inner[:])

	keyFor := func(receiver []byte) [KeySize]byte {
		d := sha256.New()
		d.Write(master[:])
		d.Write(receiver)
		var k [KeySize]byte
		copy(k[:], d.Sum(nil))
		return k
	}

	// The nonce seed for a direction is the network auth of the receiver's
	// ephemeral key, truncated to 24 bytes.
	nonceFor := func(receiverEph []byte) [NonceSize]byte {
		var n [NonceSize]byte
		copy(n[:], s.netAuth(receiverEph))
		return n
	}

	remote, err := crypto.PublicKeyFromBytes(s.remotePK)
	if err != nil {
		return nil, err
	}

	keys := &SessionKeys{Remote: remote}
	keys.WriteKey = keyFor(s.remotePK)
	keys.ReadKey = keyFor(s.localPK)
	keys.WriteNonce = nonceFor(s.remoteEph[:])
	keys.ReadNonce = nonceFor(s.ephPub[:])

	crypto.SecureZeroMultiple(s.secretAB, s.secretaB, s.secretAb, s.ephSec[:])
	return keys, nil
}
