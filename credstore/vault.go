package credstore

import (
	"context"
	"errors"
	"fmt"
)

// Persistence keys of the credential pair.
const (
	TokenKey   = "stadtwache_token"
	ProfileKey = "stadtwache_user"
)

// Record is the persisted credential pair. Profile holds the serialized
// user profile exactly as it should be restored.
type Record struct {
	Token   string
	Profile []byte
}

// Vault reads and writes the credential pair on top of a Store. Both halves
// go through one Save or Delete call; a record missing either half is
// treated as absent.
type Vault struct {
	store Store
}

// NewVault wraps store.
func NewVault(store Store) *Vault {
	return &Vault{store: store}
}

// Load returns the persisted record, or ErrNoRecord when none is present.
// A half-written record is cleared before ErrNoRecord is returned.
func (v *Vault) Load(ctx context.Context) (Record, error) {
	entries, err := v.store.Load(ctx, TokenKey, ProfileKey)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			if cerr := v.store.Delete(ctx, TokenKey, ProfileKey); cerr != nil {
				return Record{}, cerr
			}
			return Record{}, ErrNoRecord
		}
		return Record{}, err
	}

	var rec Record
	for _, e := range entries {
		switch e.Key {
		case TokenKey:
			rec.Token = string(e.Value)
		case ProfileKey:
			rec.Profile = e.Value
		}
	}

	if rec.Token == "" || len(rec.Profile) == 0 {
		if err := v.Clear(ctx); err != nil {
			return Record{}, err
		}
		return Record{}, ErrNoRecord
	}
	return rec, nil
}

// Save writes both halves of rec in one call.
func (v *Vault) Save(ctx context.Context, rec Record) error {
	if rec.Token == "" || len(rec.Profile) == 0 {
		return fmt.Errorf("%w: incomplete credential record", ErrSaveFailed)
	}
	return v.store.Save(ctx,
		Entry{Key: TokenKey, Value: []byte(rec.Token)},
		Entry{Key: ProfileKey, Value: rec.Profile},
	)
}

// Clear removes both halves. Clearing an empty vault is not an error.
func (v *Vault) Clear(ctx context.Context) error {
	return v.store.Delete(ctx, TokenKey, ProfileKey)
}
