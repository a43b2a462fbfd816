package credstore_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stadtwache/opsclient/credstore"
)

func TestSealed_StoresCiphertext(t *testing.T) {
	ctx := context.Background()
	inner := credstore.NewMemoryStore()
	sealed, err := credstore.NewSealed(inner, []byte("secret"))
	if err != nil {
		t.Fatalf("NewSealed() error = %v", err)
	}

	plain := []byte("eyJhbGciOiJIUzI1NiJ9.payload.sig")
	if err := sealed.Save(ctx, credstore.Entry{Key: "token", Value: plain}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, err := inner.Load(ctx, "token")
	if err != nil {
		t.Fatalf("inner Load() error = %v", err)
	}
	if bytes.Contains(raw[0].Value, plain) {
		t.Error("inner store holds the plaintext value")
	}

	opened, err := sealed.Load(ctx, "token")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !bytes.Equal(opened[0].Value, plain) {
		t.Errorf("got %q, want %q", opened[0].Value, plain)
	}
}

func TestSealed_WrongSecret(t *testing.T) {
	ctx := context.Background()
	inner := credstore.NewMemoryStore()

	a, _ := credstore.NewSealed(inner, []byte("secret-a"))
	b, _ := credstore.NewSealed(inner, []byte("secret-b"))

	a.Save(ctx, credstore.Entry{Key: "token", Value: []byte("t")})

	_, err := b.Load(ctx, "token")
	if !errors.Is(err, credstore.ErrSealed) {
		t.Errorf("Load() error = %v, want ErrSealed", err)
	}
}

func TestSealed_ValueBoundToKey(t *testing.T) {
	ctx := context.Background()
	inner := credstore.NewMemoryStore()
	sealed, _ := credstore.NewSealed(inner, []byte("secret"))

	sealed.Save(ctx, credstore.Entry{Key: "token", Value: []byte("t")})

	raw, _ := inner.Load(ctx, "token")
	inner.Save(ctx, credstore.Entry{Key: "other", Value: raw[0].Value})

	_, err := sealed.Load(ctx, "other")
	if !errors.Is(err, credstore.ErrSealed) {
		t.Errorf("Load() of moved value error = %v, want ErrSealed", err)
	}
}

func TestSealed_TruncatedValue(t *testing.T) {
	ctx := context.Background()
	inner := credstore.NewMemoryStore()
	sealed, _ := credstore.NewSealed(inner, []byte("secret"))

	inner.Save(ctx, credstore.Entry{Key: "token", Value: []byte("short")})

	_, err := sealed.Load(ctx, "token")
	if !errors.Is(err, credstore.ErrSealed) {
		t.Errorf("Load() error = %v, want ErrSealed", err)
	}
}

func TestNewSealed_EmptySecret(t *testing.T) {
	_, err := credstore.NewSealed(credstore.NewMemoryStore(), nil)
	if !errors.Is(err, credstore.ErrSealed) {
		t.Errorf("NewSealed() error = %v, want ErrSealed", err)
	}
}
