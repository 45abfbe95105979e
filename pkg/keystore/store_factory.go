package keystore

import (
	"github.com/kms-shield/csp-lib/pkg/common/keyinfo"
	"github.com/kms-shield/csp-lib/pkg/common/keystore"
	"github.com/kms-shield/csp-lib/pkg/common/vault"
)

// StoreConfig carries the backends a StoreFactory binds into a Store.
type StoreConfig struct {
	Vault vault.Vault
	Infos keyinfo.Store
}

type StoreFactory struct{}

// NewKeystore creates a new Keystore instance for the given keystore
// configuration. cfg must be a StoreConfig with both backends set; any
// other value yields a nil Keystore.
func (f StoreFactory) NewKeystore(cfg interface{}) keystore.Keystore {
	c, ok := cfg.(StoreConfig)
	if !ok || c.Vault == nil || c.Infos == nil {
		return nil
	}
	return NewStore(c.Vault, c.Infos)
}
