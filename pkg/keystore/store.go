package keystore

import (
	"github.com/pkg/errors"

	"github.com/kms-shield/csp-lib/pkg/common/keyinfo"
	"github.com/kms-shield/csp-lib/pkg/common/keystore"
	"github.com/kms-shield/csp-lib/pkg/common/vault"
)

// Store persists named keys by pairing a metadata store with a vault. The
// metadata record is the commit point: material is written to the vault
// first, under the record's fresh unique name, and the key becomes visible
// only once the record lands. An overwrite therefore never exposes partial
// state, and the displaced material is unreachable before it is removed.
type Store struct {
	v     vault.Vault
	infos keyinfo.Store
}

func NewStore(v vault.Vault, infos keyinfo.Store) *Store {
	return &Store{v: v, infos: infos}
}

func (s *Store) Import(info *keyinfo.Info, encoded []byte, overwrite bool) error {
	if info == nil || info.Name == "" {
		return errors.New("keystore: key must carry a name")
	}
	if info.UniqueName == "" {
		return errors.New("keystore: key must carry a unique name")
	}

	exists, err := s.infos.Exists(info.Name)
	if err != nil {
		return errors.WithMessage(err, "keystore: check for existing key")
	}
	if exists && !overwrite {
		return keystore.ErrKeyAlreadyExists
	}

	// store the material first; the key is not yet visible
	if err := s.v.Import(info.UniqueName, encoded); err != nil {
		return errors.WithMessage(err, "keystore: store key material")
	}

	// commit the metadata record, rolling back the vault write on failure
	displaced, err := s.infos.Import(info)
	if err != nil {
		_ = s.v.Delete(info.UniqueName)
		return errors.WithMessage(err, "keystore: store key metadata")
	}

	// The displaced record is unreachable now that the new record is in
	// place; removing its material is best effort.
	if displaced != nil && displaced.UniqueName != info.UniqueName {
		_ = s.v.Delete(displaced.UniqueName)
	}
	return nil
}

func (s *Store) Get(name string) (*keyinfo.Info, []byte, error) {
	info, err := s.infos.Get(name)
	if errors.Is(err, keyinfo.ErrNotFound) {
		return nil, nil, keystore.ErrKeyNotFound
	}
	if err != nil {
		return nil, nil, errors.WithMessage(err, "keystore: read key metadata")
	}

	encoded, err := s.v.Get(info.UniqueName)
	if errors.Is(err, vault.ErrKeyNotFound) {
		return nil, nil, errors.WithMessagef(keystore.ErrKeyNotFound, "material of %q is missing", name)
	}
	if err != nil {
		return nil, nil, errors.WithMessage(err, "keystore: read key material")
	}
	return info, encoded, nil
}

func (s *Store) Exists(name string) (bool, error) {
	return s.infos.Exists(name)
}

func (s *Store) List() ([]*keyinfo.Info, error) {
	return s.infos.List()
}

func (s *Store) Delete(name string) error {
	info, err := s.infos.Get(name)
	if errors.Is(err, keyinfo.ErrNotFound) {
		return keystore.ErrKeyNotFound
	}
	if err != nil {
		return errors.WithMessage(err, "keystore: read key metadata")
	}

	if err := s.v.Delete(info.UniqueName); err != nil {
		return errors.WithMessage(err, "keystore: remove key material")
	}
	return s.infos.Delete(name)
}

func (s *Store) WithName(name string) keystore.KeyLinkedStore {
	return NewKeyLinkedStore(name, s)
}
