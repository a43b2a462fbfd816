package credstore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealInfo = "opsclient-credstore-v1"

// Sealed encrypts values before they reach the wrapped Store. The key name
// is bound as additional data, so a value copied under another key fails to
// open. Keys themselves are stored in the clear.
type Sealed struct {
	inner Store
	key   [chacha20poly1305.KeySize]byte
}

// NewSealed derives an XChaCha20-Poly1305 key from secret and wraps inner.
func NewSealed(inner Store, secret []byte) (*Sealed, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty seal key", ErrSealed)
	}

	s := &Sealed{inner: inner}
	h := hkdf.New(sha256.New, secret, nil, []byte(sealInfo))
	if _, err := io.ReadFull(h, s.key[:]); err != nil {
		return nil, fmt.Errorf("derive seal key: %w", err)
	}
	return s, nil
}

// Close closes the wrapped store when it holds resources.
func (s *Sealed) Close() error {
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Sealed) List(ctx context.Context) ([]string, error) {
	return s.inner.List(ctx)
}

func (s *Sealed) Load(ctx context.Context, keys ...string) ([]Entry, error) {
	entries, err := s.inner.Load(ctx, keys...)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealed, err)
	}

	opened := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if len(e.Value) < aead.NonceSize()+aead.Overhead() {
			return nil, fmt.Errorf("%w: %s: value too short", ErrSealed, e.Key)
		}
		nonce, box := e.Value[:aead.NonceSize()], e.Value[aead.NonceSize():]
		plain, err := aead.Open(nil, nonce, box, []byte(e.Key))
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrSealed, e.Key)
		}
		opened = append(opened, Entry{Key: e.Key, Value: plain})
	}
	return opened, nil
}

func (s *Sealed) Save(ctx context.Context, entries ...Entry) error {
	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSealed, err)
	}

	sealed := make([]Entry, 0, len(entries))
	for _, e := range entries {
		nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(e.Value)+aead.Overhead())
		if _, err := rand.Read(nonce); err != nil {
			return fmt.Errorf("%w: nonce: %v", ErrSaveFailed, err)
		}
		sealed = append(sealed, Entry{Key: e.Key, Value: aead.Seal(nonce, nonce, e.Value, []byte(e.Key))})
	}
	return s.inner.Save(ctx, sealed...)
}

func (s *Sealed) Delete(ctx context.Context, keys ...string) error {
	return s.inner.Delete(ctx, keys...)
}
