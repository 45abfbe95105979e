package keystore

import (
	"github.com/pkg/errors"

	"github.com/kms-shield/csp-lib/pkg/common/keyinfo"
	"github.com/kms-shield/csp-lib/pkg/common/keystore"
)

// KeyLinkedStore is a Store view bound to a single named key.
type KeyLinkedStore struct {
	name  string
	store *Store
}

func NewKeyLinkedStore(name string, store *Store) *KeyLinkedStore {
	return &KeyLinkedStore{name: name, store: store}
}

// Info returns the key's metadata without touching its material.
func (kls *KeyLinkedStore) Info() (*keyinfo.Info, error) {
	info, err := kls.store.infos.Get(kls.name)
	if errors.Is(err, keyinfo.ErrNotFound) {
		return nil, keystore.ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.WithMessage(err, "keystore: read key metadata")
	}
	return info, nil
}

func (kls *KeyLinkedStore) Get() (*keyinfo.Info, []byte, error) {
	return kls.store.Get(kls.name)
}

func (kls *KeyLinkedStore) Delete() error {
	return kls.store.Delete(kls.name)
}
