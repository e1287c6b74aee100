// Package addressbook persists known peers across restarts. Each entry pairs
// a peer's identity key with the address it was last seen at, plus an
// optional nickname assigned locally. A separate blocklist keeps identities
// the node refuses to connect to.
package addressbook

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/okwme/scuttle-chat/pkg/crypto"
	"github.com/okwme/scuttle-chat/pkg/discovery"
)

var (
	bucketPeers   = []byte("peers")
	bucketBlocked = []byte("blocked")
)

// ErrNotFound is returned when a peer has no entry.
var ErrNotFound = errors.New("addressbook: peer not found")

// Entry is one persisted peer record.
type Entry struct {
	// PublicKey is the peer's base64 identity key.
	PublicKey string `json:"public_key"`

	// Address is the peer's multiserver address string,
	// e.g. "net:192.168.1.5:8008~shs:BASE64KEY".
	Address string `json:"address"`

	// Nickname is a locally assigned label; empty if none.
	Nickname string `json:"nickname,omitempty"`

	// LastSeen is when the peer was last observed, Unix seconds.
	LastSeen int64 `json:"last_seen"`
}

// PeerAddr reconstructs the dialable address from the entry.
func (e *Entry) PeerAddr() (discovery.PeerAddr, error) {
	return discovery.ParsePeerAddr(e.Address)
}

// Book is a persistent peer store backed by bbolt. It is safe for concurrent
// use; bbolt serializes writers internally.
type Book struct {
	db *bolt.DB
}

// Open opens (or creates) the address book database at path.
func Open(path string) (*Book, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("addressbook: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketPeers); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketBlocked)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("addressbook: init buckets: %w", err)
	}
	return &Book{db: db}, nil
}

// Close closes the underlying database.
func (b *Book) Close() error {
	return b.db.Close()
}

// Observe records that peer was just seen at its current address, preserving
// any nickname an earlier entry carried.
func (b *Book) Observe(peer discovery.PeerAddr) error {
	key := []byte(peer.PublicKey.String())
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketPeers)

		entry := Entry{
			PublicKey: peer.PublicKey.String(),
			Address:   peer.String(),
			LastSeen:  time.Now().Unix(),
		}
		if existing := bkt.Get(key); existing != nil {
			var old Entry
			if json.Unmarshal(existing, &old) == nil {
				entry.Nickname = old.Nickname
			}
		}

		data, err := json.Marshal(&entry)
		if err != nil {
			return err
		}
		return bkt.Put(key, data)
	})
}

// SetNickname assigns a local label to a known peer.
func (b *Book) SetNickname(peer crypto.PublicKey, nickname string) error {
	key := []byte(peer.String())
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketPeers)
		data := bkt.Get(key)
		if data == nil {
			return ErrNotFound
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			return err
		}
		entry.Nickname = nickname
		data, err := json.Marshal(&entry)
		if err != nil {
			return err
		}
		return bkt.Put(key, data)
	})
}

// Lookup returns the entry for peer, or ErrNotFound.
func (b *Book) Lookup(peer crypto.PublicKey) (*Entry, error) {
	var entry Entry
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPeers).Get([]byte(peer.String()))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Remove deletes a peer's entry. Removing an unknown peer is a no-op.
func (b *Book) Remove(peer crypto.PublicKey) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPeers).Delete([]byte(peer.String()))
	})
}

// All returns every persisted peer entry.
func (b *Book) All() ([]Entry, error) {
	var out []Entry
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPeers).ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Block marks an identity as refused. Blocked peers are skipped by discovery
// and rejected on inbound handshake.
func (b *Book) Block(peer crypto.PublicKey) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlocked).Put([]byte(peer.String()), []byte{1})
	})
}

// Unblock removes an identity from the blocklist.
func (b *Book) Unblock(peer crypto.PublicKey) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlocked).Delete([]byte(peer.String()))
	})
}

// Blocked reports whether an identity is on the blocklist.
func (b *Book) Blocked(peer crypto.PublicKey) (bool, error) {
	var blocked bool
	err := b.db.View(func(tx *bolt.Tx) error {
		blocked = tx.Bucket(bucketBlocked).Get([]byte(peer.String())) != nil
		return nil
	})
	return blocked, err
}
