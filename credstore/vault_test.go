package credstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stadtwache/opsclient/credstore"
)

func TestVault_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	store := credstore.NewMemoryStore()
	vault := credstore.NewVault(store)

	rec := credstore.Record{Token: "tok", Profile: []byte(`{"id":7}`)}
	if err := vault.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	keys, _ := store.List(ctx)
	if len(keys) != 2 || keys[0] != credstore.TokenKey || keys[1] != credstore.ProfileKey {
		t.Errorf("stored keys = %v, want [%s %s]", keys, credstore.TokenKey, credstore.ProfileKey)
	}

	got, err := vault.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Token != rec.Token || string(got.Profile) != string(rec.Profile) {
		t.Errorf("Load() = %+v, want %+v", got, rec)
	}

	if err := vault.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := vault.Load(ctx); !errors.Is(err, credstore.ErrNoRecord) {
		t.Errorf("Load() after Clear error = %v, want ErrNoRecord", err)
	}
}

func TestVault_Load_Empty(t *testing.T) {
	_, err := credstore.NewVault(credstore.NewMemoryStore()).Load(context.Background())
	if !errors.Is(err, credstore.ErrNoRecord) {
		t.Errorf("Load() error = %v, want ErrNoRecord", err)
	}
}

func TestVault_Load_HalfRecordIsCleared(t *testing.T) {
	tests := []struct {
		name  string
		entry credstore.Entry
	}{
		{"token only", credstore.Entry{Key: credstore.TokenKey, Value: []byte("tok")}},
		{"profile only", credstore.Entry{Key: credstore.ProfileKey, Value: []byte(`{}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := credstore.NewMemoryStore()
			store.Save(ctx, tt.entry)

			_, err := credstore.NewVault(store).Load(ctx)
			if !errors.Is(err, credstore.ErrNoRecord) {
				t.Errorf("Load() error = %v, want ErrNoRecord", err)
			}

			keys, _ := store.List(ctx)
			if len(keys) != 0 {
				t.Errorf("half record left behind: %v", keys)
			}
		})
	}
}

func TestVault_Save_RejectsIncompleteRecord(t *testing.T) {
	ctx := context.Background()
	store := credstore.NewMemoryStore()
	vault := credstore.NewVault(store)

	for _, rec := range []credstore.Record{
		{Token: "", Profile: []byte(`{}`)},
		{Token: "tok"},
	} {
		if err := vault.Save(ctx, rec); !errors.Is(err, credstore.ErrSaveFailed) {
			t.Errorf("Save(%+v) error = %v, want ErrSaveFailed", rec, err)
		}
	}

	keys, _ := store.List(ctx)
	if len(keys) != 0 {
		t.Errorf("incomplete Save wrote keys: %v", keys)
	}
}

func TestVault_Clear_Idempotent(t *testing.T) {
	vault := credstore.NewVault(credstore.NewMemoryStore())
	for range 2 {
		if err := vault.Clear(context.Background()); err != nil {
			t.Errorf("Clear() error = %v", err)
		}
	}
}
