package sshconn

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/crypto/ssh"
)

// ErrKeyMismatch is returned when a host presents a key different from the
// one remembered at first contact.
var ErrKeyMismatch = errors.New("host key changed since first contact")

// KnownKeys is an in-memory trust-on-first-use host key store. The first
// key a host presents is accepted and remembered; any later mismatch fails
// the handshake. Keys are keyed by dial address, so the same hostname on a
// different port is a distinct identity.
//
// This offers no protection against impersonation on first contact.
type KnownKeys struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func NewKnownKeys() *KnownKeys {
	return &KnownKeys{keys: make(map[string][]byte)}
}

// Callback returns an ssh.HostKeyCallback implementing the TOFU policy.
func (k *KnownKeys) Callback() ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		k.mu.Lock()
		defer k.mu.Unlock()
		wire := key.Marshal()
		if known, ok := k.keys[hostname]; ok {
			if !bytes.Equal(known, wire) {
				return fmt.Errorf("%w: %s", ErrKeyMismatch, hostname)
			}
			return nil
		}
		k.keys[hostname] = wire
		return nil
	}
}

// Len reports how many host keys have been remembered.
func (k *KnownKeys) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.keys)
}
